package evidence

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"thermal-worker-go/internal/config"
	"thermal-worker-go/internal/logging"
	"thermal-worker-go/internal/models"
)

// FolderTimeLayout formats the timestamp prefix of an event directory
const FolderTimeLayout = "2006-01-02_15-04-05"

var (
	// ErrNotFound is returned for unknown events or files
	ErrNotFound = errors.New("event not found")
	// ErrInvalidFile is returned for file names outside the evidence manifest
	ErrInvalidFile = errors.New("invalid evidence file name")
)

// Store persists event bundles as one directory per event under a root
// directory:
//
//	<root>/<YYYY-MM-DD_HH-MM-SS>_<id[:8]>/data.json
//	                                     thermal_image.jpg
//	                                     normal_image.jpg
type Store struct {
	root   string
	logger zerolog.Logger
}

func NewStore(cfg *config.Config) (*Store, error) {
	if err := os.MkdirAll(cfg.EventsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create events directory %s: %w", cfg.EventsDir, err)
	}
	return &Store{
		root:   cfg.EventsDir,
		logger: logging.NewServiceLogger(cfg, "evidence"),
	}, nil
}

func (s *Store) Root() string {
	return s.root
}

// FolderName is the directory name of an event.
func FolderName(bundle *models.EventBundle) string {
	return bundle.Timestamp.UTC().Format(FolderTimeLayout) + "_" + bundle.ShortID()
}

// Write creates the event directory, stores the non-empty images and then the
// descriptor. The manifest only lists images that were written, so a failed
// image write degrades the event instead of failing it. bundle.Folder and
// bundle.Files are filled in.
func (s *Store) Write(bundle *models.EventBundle, thermal, normal []byte) error {
	folder := FolderName(bundle)
	dir := filepath.Join(s.root, folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create event directory: %w", err)
	}

	bundle.Folder = folder
	bundle.Files = models.FileManifest{EventData: models.DescriptorFileName}
	bundle.Files.ThermalImage = s.writeImage(dir, models.ThermalImageFileName, thermal)
	bundle.Files.NormalImage = s.writeImage(dir, models.NormalImageFileName, normal)

	data, err := json.MarshalIndent(bundle, "", "    ")
	if err != nil {
		return fmt.Errorf("encode descriptor: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(dir, models.DescriptorFileName), data); err != nil {
		return fmt.Errorf("write descriptor: %w", err)
	}
	return nil
}

func (s *Store) writeImage(dir, name string, data []byte) *string {
	if len(data) == 0 {
		return nil
	}
	if err := writeFileAtomic(filepath.Join(dir, name), data); err != nil {
		s.logger.Warn().Err(err).Str("file", name).Str("dir", dir).Msg("Failed to write evidence image")
		return nil
	}
	return models.StringPtr(name)
}

// List returns every readable event, newest first. Directories without a
// valid descriptor are skipped.
func (s *Store) List() ([]*models.EventBundle, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	bundles := make([]*models.EventBundle, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		bundle, err := s.load(entry.Name())
		if err != nil {
			s.logger.Debug().Err(err).Str("folder", entry.Name()).Msg("Skipping unreadable event directory")
			continue
		}
		bundles = append(bundles, bundle)
	}

	sort.Slice(bundles, func(i, j int) bool {
		if bundles[i].Timestamp.Equal(bundles[j].Timestamp) {
			return bundles[i].Folder > bundles[j].Folder
		}
		return bundles[i].Timestamp.After(bundles[j].Timestamp)
	})
	return bundles, nil
}

// Get returns the event with the given id.
func (s *Store) Get(eventID string) (*models.EventBundle, error) {
	if eventID == "" || strings.ContainsAny(eventID, `/\.*?[`) {
		return nil, ErrNotFound
	}
	short := (&models.EventBundle{EventID: eventID}).ShortID()

	matches, err := filepath.Glob(filepath.Join(s.root, "*_"+short))
	if err != nil {
		return nil, err
	}
	for _, match := range matches {
		bundle, err := s.load(filepath.Base(match))
		if err != nil {
			continue
		}
		if bundle.EventID == eventID {
			return bundle, nil
		}
	}
	return nil, ErrNotFound
}

// FilePath resolves a manifest file of an event to its path on disk.
func (s *Store) FilePath(eventID, name string) (string, error) {
	switch name {
	case models.DescriptorFileName, models.ThermalImageFileName, models.NormalImageFileName:
	default:
		return "", ErrInvalidFile
	}

	bundle, err := s.Get(eventID)
	if err != nil {
		return "", err
	}
	path := filepath.Join(s.root, bundle.Folder, name)
	if _, err := os.Stat(path); err != nil {
		return "", ErrNotFound
	}
	return path, nil
}

func (s *Store) load(folder string) (*models.EventBundle, error) {
	data, err := os.ReadFile(filepath.Join(s.root, folder, models.DescriptorFileName))
	if err != nil {
		return nil, err
	}
	var bundle models.EventBundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return nil, err
	}
	bundle.Folder = folder
	return &bundle, nil
}

// writeFileAtomic writes to a temporary file in the same directory and
// renames it, so readers never see a partial descriptor.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
