package anomaly

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"thermal-worker-go/internal/config"
	"thermal-worker-go/internal/models"
	"thermal-worker-go/internal/services/evidence"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakePTZ struct {
	position *models.PTZPosition
	err      error
	calls    atomic.Int32
}

func (f *fakePTZ) PTZPosition(ctx context.Context) (*models.PTZPosition, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.position, nil
}

type fakeSnapshot struct {
	data    []byte
	err     error
	panics  bool
	release chan struct{}
	calls   atomic.Int32
}

func (f *fakeSnapshot) Snapshot(ctx context.Context) ([]byte, error) {
	f.calls.Add(1)
	if f.release != nil {
		<-f.release
	}
	if f.panics {
		panic("decoder crashed")
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.data, nil
}

type failingStore struct{}

func (failingStore) Write(*models.EventBundle, []byte, []byte) error {
	return errors.New("disk full")
}

type recordingNotifier struct {
	mu        sync.Mutex
	summaries []models.EventSummary
	err       error
}

func (n *recordingNotifier) Notify(ctx context.Context, summary models.EventSummary) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.summaries = append(n.summaries, summary)
	return n.err
}

func (n *recordingNotifier) Count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.summaries)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		WorkerID:               "test",
		ISAPIBaseURL:           "http://camera.test",
		ISAPIThermometryPath:   "/ISAPI/Thermal/channels/2/thermometry/realTimethermometry/rules?format=json",
		AlarmTemperature:       75.0,
		EventCooldown:          60 * time.Second,
		StreamBoundary:         "boundary",
		StreamChunkSize:        7,
		StreamMaxBlockSize:     1 << 16,
		ReconnectInterval:      5 * time.Second,
		UnexpectedErrorBackoff: 10 * time.Second,
		EventsDir:              t.TempDir(),
	}
}

func newTestStore(t *testing.T, cfg *config.Config) *evidence.Store {
	t.Helper()
	store, err := evidence.NewStore(cfg)
	require.NoError(t, err)
	return store
}

func recordWithMax(celsius float64) *models.TelemetryRecord {
	upload := models.ThermometryUpload{
		LinePolygonThermCfg: &models.LinePolygonThermCfg{MaxTemperature: models.Float64(celsius)},
		HighestPoint:        &models.ThermalPoint{PositionX: models.Float64(0.4), PositionY: models.Float64(0.6)},
		Raw:                 []byte(`{"LinePolygonThermCfg":{"MaxTemperature":` + strconv.FormatFloat(celsius, 'f', -1, 64) + `}}`),
	}
	return &models.TelemetryRecord{
		UploadList: &models.ThermometryUploadList{ThermometryUpload: []models.ThermometryUpload{upload}},
		Source:     models.TelemetrySourceJSON,
	}
}
