package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	// Application
	Version     string
	Environment string
	WorkerID    string
	Port        int
	LogLevel    string

	// Logdy (lightweight web log viewer)
	LogdyEnabled bool
	LogdyHost    string
	LogdyPort    int

	// Camera
	CameraIP       string
	CameraHTTPPort int
	CameraUser     string
	CameraPass     string

	// RTSP sources for snapshots and live preview
	RTSPURLNormal  string
	RTSPURLThermal string

	// ISAPI
	ISAPIBaseURL         string
	ISAPIThermometryPath string
	ISAPIPTZChannel      int
	ISAPITimeout         time.Duration

	// Alarm
	AlarmTemperature float64
	EventCooldown    time.Duration

	// Thermometry stream
	StreamBoundary         string
	StreamConnectTimeout   time.Duration
	StreamReadTimeout      time.Duration
	StreamChunkSize        int
	StreamMaxBlockSize     int
	ReconnectInterval      time.Duration
	UnexpectedErrorBackoff time.Duration
	MaxReconnectAttempts   int // 0 = unlimited

	// Evidence
	EventsDir            string
	ImageQuality         int // JPEG quality (1-100)
	SnapshotWarmupFrames int
	SnapshotTimeout      time.Duration

	// Live preview
	LivePreviewEnabled  bool
	FrameStaleThreshold time.Duration
	PanicRestartDelay   time.Duration
	VideoBackoffMin     time.Duration
	VideoBackoffMax     time.Duration
	VideoBackoffJitter  int // percent
	MJPEGFrameInterval  time.Duration

	// NATS (event notifications)
	NatsEnabled        bool
	NatsURL            string
	NatsConnectTimeout time.Duration
	NatsReconnectWait  time.Duration
	NatsMaxReconnects  int
	EventsSubject      string

	// MQTT (event notifications)
	MQTTEnabled  bool
	MQTTBroker   string
	MQTTClientID string
	MQTTTopic    string
	MQTTQoS      int

	// Redis (event index)
	RedisEnabled   bool
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RedisKeyPrefix string
	RedisMaxEvents int

	// gRPC health service, 0 disables it
	GRPCHealthPort int

	// Health Check
	HealthCheckInterval time.Duration

	// Graceful Shutdown
	ShutdownTimeout time.Duration
}

func Load() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("No .env file found or error loading .env file, using environment variables and defaults")
	} else {
		log.Info().Msg("Loaded configuration from .env file")
	}

	cameraIP := getEnv("CAMERA_IP", "192.168.1.64")
	cameraUser := getEnv("CAMERA_USER", "admin")
	cameraPass := getEnv("CAMERA_PASS", "")
	cameraHTTPPort := getEnvInt("CAMERA_HTTP_PORT", 80)

	return &Config{
		// Application
		Version:     getEnv("VERSION", "1.0.0"),
		Environment: getEnv("ENVIRONMENT", "development"),
		WorkerID:    getEnv("WORKER_ID", "thermal-1"),
		Port:        getEnvInt("PORT", 8000),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		// Logdy
		LogdyEnabled: getEnvBool("LOGDY_ENABLED", false),
		LogdyHost:    getEnv("LOGDY_HOST", "localhost"),
		LogdyPort:    getEnvInt("LOGDY_PORT", 8080),

		// Camera
		CameraIP:       cameraIP,
		CameraHTTPPort: cameraHTTPPort,
		CameraUser:     cameraUser,
		CameraPass:     cameraPass,

		// Channel 101 is the visible sensor, 201 the thermal one
		RTSPURLNormal:  getEnv("RTSP_URL_NORMAL", rtspURL(cameraUser, cameraPass, cameraIP, 101)),
		RTSPURLThermal: getEnv("RTSP_URL_THERMAL", rtspURL(cameraUser, cameraPass, cameraIP, 201)),

		// ISAPI
		ISAPIBaseURL:         getEnv("ISAPI_BASE_URL", fmt.Sprintf("http://%s:%d", cameraIP, cameraHTTPPort)),
		ISAPIThermometryPath: getEnv("ISAPI_THERMOMETRY_PATH", "/ISAPI/Thermal/channels/2/thermometry/realTimethermometry/rules?format=json"),
		ISAPIPTZChannel:      getEnvInt("ISAPI_PTZ_CHANNEL", 1),
		ISAPITimeout:         getEnvDuration("ISAPI_TIMEOUT", 2*time.Second),

		// Alarm
		AlarmTemperature: getEnvFloat("ALARM_TEMPERATURE", 75.0),
		EventCooldown:    getEnvDuration("EVENT_COOLDOWN", 60*time.Second),

		// Thermometry stream
		StreamBoundary:         getEnv("STREAM_BOUNDARY", "boundary"),
		StreamConnectTimeout:   getEnvDuration("STREAM_CONNECT_TIMEOUT", 10*time.Second),
		StreamReadTimeout:      getEnvDuration("STREAM_READ_TIMEOUT", 65*time.Second),
		StreamChunkSize:        getEnvInt("STREAM_CHUNK_SIZE", 1024),
		StreamMaxBlockSize:     getEnvInt("STREAM_MAX_BLOCK_SIZE", 1024*1024),
		ReconnectInterval:      getEnvDuration("RECONNECT_INTERVAL", 5*time.Second),
		UnexpectedErrorBackoff: getEnvDuration("UNEXPECTED_ERROR_BACKOFF", 10*time.Second),
		MaxReconnectAttempts:   getEnvInt("MAX_RECONNECT_ATTEMPTS", 0),

		// Evidence
		EventsDir:            getEnv("EVENTS_DIR", "events"),
		ImageQuality:         getEnvInt("IMAGE_QUALITY", 95),
		SnapshotWarmupFrames: getEnvInt("SNAPSHOT_WARMUP_FRAMES", 5),
		SnapshotTimeout:      getEnvDuration("SNAPSHOT_TIMEOUT", 10*time.Second),

		// Live preview
		LivePreviewEnabled:  getEnvBool("LIVE_PREVIEW_ENABLED", true),
		FrameStaleThreshold: getEnvDuration("FRAME_STALE_THRESHOLD", 2*time.Second),
		PanicRestartDelay:   getEnvDuration("PANIC_RESTART_DELAY", 2*time.Second),
		VideoBackoffMin:     getEnvDuration("VIDEO_BACKOFF_MIN", time.Second),
		VideoBackoffMax:     getEnvDuration("VIDEO_BACKOFF_MAX", 30*time.Second),
		VideoBackoffJitter:  getEnvInt("VIDEO_BACKOFF_JITTER_PCT", 20),
		MJPEGFrameInterval:  getEnvDuration("MJPEG_FRAME_INTERVAL", 200*time.Millisecond),

		// NATS
		NatsEnabled:        getEnvBool("NATS_ENABLED", false),
		NatsURL:            getNatsURL(),
		NatsConnectTimeout: getEnvDuration("NATS_CONNECT_TIMEOUT", 10*time.Second),
		NatsReconnectWait:  getEnvDuration("NATS_RECONNECT_WAIT", 2*time.Second),
		NatsMaxReconnects:  getEnvInt("NATS_MAX_RECONNECTS", -1), // -1 = unlimited
		EventsSubject:      getEnv("EVENTS_SUBJECT", "thermal.events"),

		// MQTT
		MQTTEnabled:  getEnvBool("MQTT_ENABLED", false),
		MQTTBroker:   getEnv("MQTT_BROKER", "tcp://localhost:1883"),
		MQTTClientID: getEnv("MQTT_CLIENT_ID", "thermal-worker"),
		MQTTTopic:    getEnv("MQTT_TOPIC", "thermal/events"),
		MQTTQoS:      getEnvInt("MQTT_QOS", 1),

		// Redis
		RedisEnabled:   getEnvBool("REDIS_ENABLED", false),
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisDB:        getEnvInt("REDIS_DB", 0),
		RedisKeyPrefix: getEnv("REDIS_KEY_PREFIX", "thermal"),
		RedisMaxEvents: getEnvInt("REDIS_MAX_EVENTS", 100),

		GRPCHealthPort: getEnvInt("GRPC_HEALTH_PORT", 0),

		HealthCheckInterval: getEnvDuration("HEALTH_CHECK_INTERVAL", 5*time.Second),
		ShutdownTimeout:     getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

// ThermometryURL is the full URL of the real-time thermometry stream.
func (c *Config) ThermometryURL() string {
	return c.ISAPIBaseURL + c.ISAPIThermometryPath
}

func rtspURL(user, pass, ip string, channel int) string {
	return fmt.Sprintf("rtsp://%s:%s@%s:554/Streaming/Channels/%d", user, pass, ip, channel)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// Helper functions for Docker environment detection
func isRunningInDocker() bool {
	if os.Getenv("DOCKER_CONTAINER") == "true" {
		return true
	}

	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}

	return false
}

// getNatsURL returns the appropriate NATS URL based on environment
func getNatsURL() string {
	if envURL := os.Getenv("NATS_URL"); envURL != "" {
		return envURL
	}

	// If running in Docker, use service name; otherwise use localhost
	if isRunningInDocker() {
		return "nats://nats:4222"
	}

	return "nats://localhost:4222"
}
