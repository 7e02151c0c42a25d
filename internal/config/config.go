// Package config loads service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Configuration is the full service configuration.
type Configuration struct {
	Service       ServiceConfig
	Matcher       MatcherConfig
	Session       SessionConfig
	Speech        SpeechConfig
	Capture       CaptureConfig
	Catalog       CatalogConfig
	Bridge        BridgeConfig
	Kafka         KafkaConfig
	Observability ObservabilityConfig
}

type ServiceConfig struct {
	Principal string
	GRPCPort  string
	HTTPPort  string
	Env       string
}

type MatcherConfig struct {
	Threshold         float64
	ContainmentBase   float64
	ContainmentWeight float64
}

type SessionConfig struct {
	SettleDelay    time.Duration
	FeedbackWindow time.Duration
	SpeakErrors    bool
}

type SpeechConfig struct {
	Language        string
	GenderMarkers   []string
	PreferredVoices []string
	// Strategies is the ordered list of voice selection strategies.
	Strategies []string
	Pitch      float64
	Rate       float64
	Volume     float64
}

type CaptureConfig struct {
	// Provider is one of bridge, mock or google.
	Provider        string
	LanguageCode    string
	SampleRateHz    int32
	InterimResults  bool
	AudioEncoding   string
	SingleUtterance bool
	MaxAudioBytes   int64
	MaxDuration     time.Duration
	MockDelay       time.Duration
}

type CatalogConfig struct {
	// Path to a YAML command catalog. Empty uses the built-in catalog.
	Path string
}

type BridgeConfig struct {
	AllowedOrigins []string
	ReadLimit      int64
	WriteTimeout   time.Duration
}

type KafkaConfig struct {
	Enabled         bool
	Brokers         []string
	TopicRecognized string
	TopicDispatched string
	Principal       string
}

type ObservabilityConfig struct {
	MetricsAddr   string
	LogLevel      string
	LogFormat     string
	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
}

// Load reads the configuration from environment variables.
func Load() *Configuration {
	principal := envOrDefault("SERVICE_PRINCIPAL", "svc-voice-command")

	return &Configuration{
		Service: ServiceConfig{
			Principal: principal,
			GRPCPort:  envOrDefault("GRPC_PORT", "50051"),
			HTTPPort:  envOrDefault("HTTP_PORT", "8080"),
			Env:       envOrDefault("ENV", "prod"),
		},
		Matcher: MatcherConfig{
			Threshold:         envOrDefaultFloat("MATCH_THRESHOLD", 0.7),
			ContainmentBase:   envOrDefaultFloat("MATCH_CONTAINMENT_BASE", 0.8),
			ContainmentWeight: envOrDefaultFloat("MATCH_CONTAINMENT_WEIGHT", 0.2),
		},
		Session: SessionConfig{
			SettleDelay:    envOrDefaultDuration("SESSION_SETTLE_DELAY", 800*time.Millisecond),
			FeedbackWindow: envOrDefaultDuration("SESSION_FEEDBACK_WINDOW", 3*time.Second),
			SpeakErrors:    envOrDefaultBool("SESSION_SPEAK_ERRORS", true),
		},
		Speech: SpeechConfig{
			Language:        envOrDefault("SPEECH_LANGUAGE", "tr-TR"),
			GenderMarkers:   envOrDefaultList("SPEECH_GENDER_MARKERS", []string{"female", "kadın", "yelda", "emel", "filiz", "seda"}),
			PreferredVoices: envOrDefaultList("SPEECH_PREFERRED_VOICES", []string{"Google Türkçe", "Microsoft Emel", "Yelda", "Filiz"}),
			Strategies:      envOrDefaultList("SPEECH_STRATEGIES", []string{"locale_and_marker", "locale", "allow_list", "first_available"}),
			Pitch:           envOrDefaultFloat("SPEECH_PITCH", 1.0),
			Rate:            envOrDefaultFloat("SPEECH_RATE", 1.0),
			Volume:          envOrDefaultFloat("SPEECH_VOLUME", 1.0),
		},
		Capture: CaptureConfig{
			Provider:        envOrDefault("CAPTURE_PROVIDER", "bridge"),
			LanguageCode:    envOrDefault("CAPTURE_LANGUAGE_CODE", "tr-TR"),
			SampleRateHz:    envOrDefaultInt32("CAPTURE_SAMPLE_RATE_HZ", 16000),
			InterimResults:  envOrDefaultBool("CAPTURE_INTERIM_RESULTS", true),
			AudioEncoding:   envOrDefault("CAPTURE_AUDIO_ENCODING", "LINEAR16"),
			SingleUtterance: envOrDefaultBool("CAPTURE_SINGLE_UTTERANCE", true),
			MaxAudioBytes:   envOrDefaultInt64("CAPTURE_MAX_AUDIO_BYTES", 5*1024*1024),
			MaxDuration:     envOrDefaultDuration("CAPTURE_MAX_DURATION", 30*time.Second),
			MockDelay:       envOrDefaultDuration("CAPTURE_MOCK_DELAY", 300*time.Millisecond),
		},
		Catalog: CatalogConfig{
			Path: os.Getenv("CATALOG_PATH"),
		},
		Bridge: BridgeConfig{
			AllowedOrigins: envOrDefaultList("BRIDGE_ALLOWED_ORIGINS", nil),
			ReadLimit:      envOrDefaultInt64("BRIDGE_READ_LIMIT", 1<<20),
			WriteTimeout:   envOrDefaultDuration("BRIDGE_WRITE_TIMEOUT", 5*time.Second),
		},
		Kafka: KafkaConfig{
			Enabled:         envOrDefaultBool("KAFKA_ENABLED", false),
			Brokers:         envOrDefaultList("KAFKA_BROKERS", []string{"localhost:9092"}),
			TopicRecognized: envOrDefault("KAFKA_TOPIC_RECOGNIZED", "voice.command.recognized"),
			TopicDispatched: envOrDefault("KAFKA_TOPIC_DISPATCHED", "voice.command.dispatched"),
			Principal:       envOrDefault("KAFKA_PRINCIPAL", principal),
		},
		Observability: ObservabilityConfig{
			MetricsAddr:   envOrDefault("METRICS_ADDR", ":9090"),
			LogLevel:      envOrDefault("LOG_LEVEL", "info"),
			LogFormat:     envOrDefault("LOG_FORMAT", "json"),
			LogFile:       os.Getenv("LOG_FILE"),
			LogMaxSizeMB:  envOrDefaultInt("LOG_MAX_SIZE_MB", 50),
			LogMaxBackups: envOrDefaultInt("LOG_MAX_BACKUPS", 3),
			LogMaxAgeDays: envOrDefaultInt("LOG_MAX_AGE_DAYS", 14),
		},
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func envOrDefaultInt32(key string, def int32) int32 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 32); err == nil {
			return int32(i)
		}
	}
	return def
}

func envOrDefaultInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return def
}

func envOrDefaultFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// envOrDefaultList splits a comma-separated value, dropping empty items.
func envOrDefaultList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
