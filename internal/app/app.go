package app

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"voice-command-service/internal/bridge"
	"voice-command-service/internal/catalog"
	"voice-command-service/internal/config"
	"voice-command-service/internal/events"
	"voice-command-service/internal/matcher"
	"voice-command-service/internal/observability/logging"
	"voice-command-service/internal/observability/metrics"
	"voice-command-service/internal/ports"
	"voice-command-service/internal/schema"
	"voice-command-service/internal/service/capture/google"
	"voice-command-service/internal/service/capture/mock"
	"voice-command-service/internal/service/dispatch"
	"voice-command-service/internal/service/session"
	"voice-command-service/internal/service/speech"
)

// Application holds process-wide state for the service.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Configuration

	Metrics    *metrics.Metrics
	Catalog    *catalog.Catalog
	Session    *session.Machine
	Dispatcher *dispatch.Dispatcher
	Hub        *bridge.Hub
	Arbiter    *speech.Arbiter
	Publisher  *events.Publisher

	capture ports.CaptureService
	closers []func() error
	ready   atomic.Bool
	stopFwd func()
}

// New constructs the engine from the provided configuration.
func New(ctx context.Context, cfg *config.Configuration) (*Application, error) {
	a := &Application{
		Cfg:     cfg,
		Metrics: metrics.DefaultMetrics,
	}
	a.setupLogger()

	appLogger := a.Logger.With().
		Str("method", "New").
		Logger()

	a.Hub = bridge.New(bridge.Config{
		WriteTimeout:   cfg.Bridge.WriteTimeout,
		ReadLimit:      cfg.Bridge.ReadLimit,
		AllowedOrigins: cfg.Bridge.AllowedOrigins,
	}, a.Metrics)

	defs, err := loadDefinitions(cfg.Catalog.Path)
	if err != nil {
		return nil, err
	}
	if err := schema.New().Validate(defs); err != nil {
		return nil, fmt.Errorf("invalid command catalog: %w", err)
	}
	a.Catalog = catalog.Bind(defs, a.Hub)

	speechCfg := speech.Config{
		Language:        cfg.Speech.Language,
		GenderMarkers:   cfg.Speech.GenderMarkers,
		PreferredVoices: cfg.Speech.PreferredVoices,
		Pitch:           cfg.Speech.Pitch,
		Rate:            cfg.Speech.Rate,
		Volume:          cfg.Speech.Volume,
	}
	strategies, err := speech.StrategiesByName(cfg.Speech.Strategies, speechCfg)
	if err != nil {
		return nil, err
	}
	a.Arbiter = speech.New(speechCfg, a.Hub, strategies, a.Metrics)

	a.Publisher = events.New(&events.Config{
		Enabled:         cfg.Kafka.Enabled,
		Brokers:         cfg.Kafka.Brokers,
		TopicRecognized: cfg.Kafka.TopicRecognized,
		TopicDispatched: cfg.Kafka.TopicDispatched,
		Principal:       cfg.Kafka.Principal,
	})
	a.closers = append(a.closers, a.Publisher.Close)

	dispatchCfg := dispatch.DefaultConfig()
	dispatchCfg.SettleDelay = cfg.Session.SettleDelay
	dispatchCfg.FeedbackWindow = cfg.Session.FeedbackWindow
	dispatchCfg.Principal = cfg.Service.Principal
	a.Dispatcher = dispatch.New(dispatchCfg, a.Arbiter, a.Publisher, a.Metrics)

	a.capture, err = a.newCapture(ctx)
	if err != nil {
		return nil, err
	}

	rules := session.DefaultRules()
	rules.FeedbackWindow = cfg.Session.FeedbackWindow
	rules.SpeakErrors = cfg.Session.SpeakErrors

	a.Session = session.New(ctx, session.Deps{
		Catalog: a.Catalog,
		Matcher: matcher.New(matcher.Config{
			Threshold:         cfg.Matcher.Threshold,
			ContainmentBase:   cfg.Matcher.ContainmentBase,
			ContainmentWeight: cfg.Matcher.ContainmentWeight,
		}),
		Dispatcher: a.Dispatcher,
		Capture:    a.capture,
		Speaker:    a.Arbiter,
		Publisher:  a.Publisher,
		Metrics:    a.Metrics,
		Principal:  cfg.Service.Principal,
	}, rules)

	a.Hub.SetHandlers(bridge.Handlers{
		OnSessionStart: func() { a.Session.Start() },
		OnSessionStop:  func() { a.Session.Stop() },
		OnSpeechEnded:  a.Arbiter.OnUtteranceEnd,
	})

	appLogger.Info().
		Int("commands", a.Catalog.Len()).
		Str("captureProvider", cfg.Capture.Provider).
		Bool("kafkaEnabled", cfg.Kafka.Enabled).
		Msg("Voice command service application created")
	return a, nil
}

func loadDefinitions(path string) ([]catalog.Definition, error) {
	if path == "" {
		return catalog.DefaultDefinitions(), nil
	}
	defs, err := catalog.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load command catalog: %w", err)
	}
	return defs, nil
}

// newCapture builds the configured capture provider.
func (a *Application) newCapture(ctx context.Context) (ports.CaptureService, error) {
	cfg := a.Cfg.Capture
	switch cfg.Provider {
	case "bridge":
		return a.Hub, nil
	case "mock":
		return mock.New(nil, cfg.MockDelay), nil
	case "google":
		g, err := google.New(ctx, google.Config{
			LanguageCode:    cfg.LanguageCode,
			SampleRateHz:    cfg.SampleRateHz,
			InterimResults:  cfg.InterimResults,
			AudioEncoding:   cfg.AudioEncoding,
			SingleUtterance: cfg.SingleUtterance,
			MaxAudioBytes:   cfg.MaxAudioBytes,
			MaxDuration:     cfg.MaxDuration,
		}, a.Metrics)
		if err != nil {
			return nil, err
		}
		// Browsers stream microphone audio over the bridge.
		a.Hub.SetAudioSink(g)
		a.closers = append(a.closers, g.Close)
		return g, nil
	default:
		return nil, fmt.Errorf("unknown capture provider %q", cfg.Provider)
	}
}

// setupLogger configures zerolog for the service.
func (a *Application) setupLogger() {
	obs := a.Cfg.Observability
	logCfg := logging.DefaultConfig()
	logCfg.Level = obs.LogLevel
	logCfg.Format = obs.LogFormat
	logCfg.File = obs.LogFile
	logCfg.MaxSizeMB = obs.LogMaxSizeMB
	logCfg.MaxBackups = obs.LogMaxBackups
	logCfg.MaxAgeDays = obs.LogMaxAgeDays
	if a.Cfg.Service.Env == "dev" {
		logCfg.Format = "console"
	}
	logging.Init(logCfg)

	a.Logger = logging.WithComponent("application").With().
		Str("service", "voice-command-service").
		Logger()

	a.Logger.Info().
		Str("logLevel", logCfg.Level).
		Str("environment", a.Cfg.Service.Env).
		Msg("Logger setup completed")
}

// Start performs any startup work required before serving traffic.
func (a *Application) Start() error {
	startLogger := a.Logger.With().
		Str("method", "Start").
		Logger()

	a.StartupTime = time.Now().UTC()

	// Mirror every session state change to connected browsers.
	updates, cancel := a.Session.Subscribe()
	a.stopFwd = cancel
	go func() {
		for st := range updates {
			a.Hub.Publish(st)
		}
	}()

	a.ready.Store(true)
	startLogger.Info().
		Time("startupTime", a.StartupTime).
		Msg("Voice command service starting")

	return nil
}

// Ready reports whether the service has started and not yet shut down.
func (a *Application) Ready() bool {
	return a.ready.Load()
}

// Shutdown performs a best-effort cleanup before process exit.
func (a *Application) Shutdown() {
	shutdownLogger := a.Logger.With().
		Str("method", "Shutdown").
		Logger()

	a.ready.Store(false)
	a.Session.Stop()
	if a.stopFwd != nil {
		a.stopFwd()
	}
	// Both wait for their event publications; the publisher closes below.
	a.Session.Close()
	a.Dispatcher.Close()
	a.Hub.Close()

	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			shutdownLogger.Warn().Err(err).Msg("Close failed during shutdown")
		}
	}

	shutdownLogger.Info().Msg("Voice command service shutting down")
}
