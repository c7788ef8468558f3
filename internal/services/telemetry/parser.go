package telemetry

import (
	"bytes"
	"errors"
	"io"
	"iter"
	"mime"
	"strings"
)

// DefaultBoundary is the multipart boundary the camera uses when the
// response does not announce one.
const DefaultBoundary = "boundary"

// DefaultMaxBlockSize bounds the bytes buffered while waiting for a boundary.
const DefaultMaxBlockSize = 1 << 20

// BlockKind classifies the payload of a multipart section
type BlockKind string

const (
	BlockJSON  BlockKind = "json"
	BlockXML   BlockKind = "xml"
	BlockOther BlockKind = "other"
)

// Block is one boundary-delimited section of the stream
type Block struct {
	Kind        BlockKind
	ContentType string
	Body        []byte
}

// Parser splits a multipart byte stream into sections. Sections longer than
// the block size limit are dropped whole, so feeding the same input in any
// chunking yields the same blocks.
type Parser struct {
	delimiter    []byte
	buf          []byte
	scanned      int // prefix of buf known to hold no delimiter start
	discarding   bool
	maxBlockSize int
	overflows    int
}

// NewParser creates a parser for the given boundary (without the leading "--").
func NewParser(boundary string, maxBlockSize int) *Parser {
	boundary = strings.TrimPrefix(strings.TrimSpace(boundary), "--")
	if boundary == "" {
		boundary = DefaultBoundary
	}
	if maxBlockSize <= 0 {
		maxBlockSize = DefaultMaxBlockSize
	}
	return &Parser{
		delimiter:    []byte("--" + boundary),
		maxBlockSize: maxBlockSize,
	}
}

// BoundaryFromContentType extracts the boundary parameter of a multipart
// Content-Type header, or returns fallback.
func BoundaryFromContentType(contentType, fallback string) string {
	if contentType == "" {
		return fallback
	}
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		return fallback
	}
	if b := params["boundary"]; b != "" {
		return b
	}
	return fallback
}

// Feed appends a chunk and returns every section completed by it. Sections
// that carry neither JSON nor XML are returned with Kind BlockOther.
func (p *Parser) Feed(chunk []byte) []Block {
	if len(chunk) == 0 {
		return nil
	}
	p.buf = append(p.buf, chunk...)

	var blocks []Block
	consumed := 0
	from := p.scanned
	for {
		idx := bytes.Index(p.buf[from:], p.delimiter)
		if idx < 0 {
			break
		}
		end := from + idx
		segment := p.buf[consumed:end]
		switch {
		case p.discarding:
			p.discarding = false
		case len(segment) > p.maxBlockSize:
			p.overflows++
		default:
			if block, ok := parseSegment(segment); ok {
				blocks = append(blocks, block)
			}
		}
		consumed = end + len(p.delimiter)
		from = consumed
	}

	// A delimiter may be split across chunks, so the tail that could still
	// begin one is kept. Everything before it belongs to the open section.
	rest := p.buf[consumed:]
	keep := len(p.delimiter) - 1
	switch {
	case len(rest) > keep && (p.discarding || len(rest)-keep > p.maxBlockSize):
		if !p.discarding {
			p.overflows++
			p.discarding = true
		}
		p.buf = append([]byte(nil), rest[len(rest)-keep:]...)
	case len(rest) == 0:
		p.buf = nil
	case consumed > 0:
		// Emitted blocks alias the old buffer.
		p.buf = append([]byte(nil), rest...)
	}
	p.scanned = max(0, len(p.buf)-keep)

	return blocks
}

// Pending returns the number of buffered bytes not yet part of a section.
func (p *Parser) Pending() int {
	return len(p.buf)
}

// Overflows returns how many sections were dropped for exceeding the block
// size limit.
func (p *Parser) Overflows() int {
	return p.overflows
}

// Reset drops any buffered bytes.
func (p *Parser) Reset() {
	p.buf = nil
	p.scanned = 0
	p.discarding = false
}

// Blocks lazily reads r in chunks of chunkSize and yields every section
// found. The sequence ends with the first read error; io.EOF ends it
// without an error.
func (p *Parser) Blocks(r io.Reader, chunkSize int) iter.Seq2[Block, error] {
	if chunkSize <= 0 {
		chunkSize = 1024
	}
	return func(yield func(Block, error) bool) {
		chunk := make([]byte, chunkSize)
		for {
			n, err := r.Read(chunk)
			if n > 0 {
				for _, block := range p.Feed(chunk[:n]) {
					if !yield(block, nil) {
						return
					}
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					yield(Block{}, err)
				}
				return
			}
		}
	}
}

var (
	crlfcrlf = []byte("\r\n\r\n")
	lflf     = []byte("\n\n")
)

// parseSegment splits a section into headers and body. Sections without a
// header block are classified by sniffing the body.
func parseSegment(segment []byte) (Block, bool) {
	segment = bytes.TrimLeft(segment, "\r\n")
	if len(bytes.TrimSpace(segment)) == 0 {
		return Block{}, false
	}

	var header, body []byte
	if i := bytes.Index(segment, crlfcrlf); i >= 0 {
		header, body = segment[:i], segment[i+len(crlfcrlf):]
	} else if i := bytes.Index(segment, lflf); i >= 0 {
		header, body = segment[:i], segment[i+len(lflf):]
	} else {
		body = segment
	}

	contentType := headerValue(header, "Content-Type")
	block := Block{
		ContentType: contentType,
		Body:        bytes.TrimSpace(body),
	}

	lowered := strings.ToLower(contentType)
	switch {
	case strings.Contains(lowered, "json"):
		block.Kind = BlockJSON
	case strings.Contains(lowered, "xml"):
		block.Kind = BlockXML
	case contentType == "":
		block.Kind = sniff(block.Body)
	default:
		block.Kind = BlockOther
	}
	return block, true
}

func headerValue(header []byte, name string) string {
	for _, line := range strings.Split(string(header), "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(key), name) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func sniff(body []byte) BlockKind {
	switch {
	case len(body) == 0:
		return BlockOther
	case body[0] == '{':
		return BlockJSON
	case body[0] == '<':
		return BlockXML
	default:
		return BlockOther
	}
}
