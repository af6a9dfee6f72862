package bootstrap

import (
	"olivia/internal/config"
	"olivia/internal/intake"
	"olivia/internal/observability/logging"
	"olivia/internal/observability/metrics"
	"olivia/internal/ports"
	"olivia/internal/providers/mockintake"
	"olivia/internal/providers/mockvoice"
	"olivia/internal/providers/tavus"
	"olivia/internal/providers/voicegateway"
	"olivia/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Controller *usecase.CallController
	Results    *usecase.ResultAggregator
	// Avatar is nil when no avatar API key is configured.
	Avatar        ports.AvatarAPI
	MetricsServer *metrics.Server
	Config        config.Config
}

// Build wires all backend dependencies for the current runtime.
func Build(eventSink ports.EventSink) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}

	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	logger := logging.WithComponent("bootstrap")

	backend := buildBackend(cfg)
	controller := usecase.NewCallController(
		buildVoiceProvider(cfg),
		backend,
		eventSink,
		usecase.Config{
			UserID:         cfg.User.ID,
			PersistTimeout: cfg.Backend.PersistTimeout,
			Metrics:        metrics.DefaultMetrics,
		},
	)
	results := usecase.NewResultAggregator(backend, usecase.ResultsConfig{
		PollAttempts: cfg.Results.PollAttempts,
		PollInterval: cfg.Results.PollInterval,
		Metrics:      metrics.DefaultMetrics,
	})

	services := Services{
		Controller: controller,
		Results:    results,
		Config:     cfg,
	}

	if cfg.Avatar.APIKey != "" {
		services.Avatar = tavus.NewClient(tavus.Config{
			APIKey:    cfg.Avatar.APIKey,
			BaseURL:   cfg.Avatar.APIBaseURL,
			ReplicaID: cfg.Avatar.ReplicaID,
			PersonaID: cfg.Avatar.PersonaID,
			Timeout:   cfg.Backend.RequestTimeout,
		})
	}
	if cfg.Metrics.Addr != "" {
		services.MetricsServer = metrics.NewServer(cfg.Metrics.Addr)
	}

	logger.Info().
		Str("intakeMode", string(cfg.Backend.Mode)).
		Str("voiceMode", string(cfg.Voice.Mode)).
		Str("backendUrl", cfg.Backend.BaseURL).
		Bool("avatar", services.Avatar != nil).
		Msg("Services built")

	return services, nil
}

func buildBackend(cfg config.Config) ports.IntakeBackend {
	if cfg.Backend.Mode == config.ModeMock {
		return mockintake.NewBackend(cfg.Mock.Latency)
	}
	return intake.NewClient(intake.Config{
		BaseURL: cfg.Backend.BaseURL,
		Timeout: cfg.Backend.RequestTimeout,
		Metrics: metrics.DefaultMetrics,
	})
}

func buildVoiceProvider(cfg config.Config) ports.VoiceProvider {
	if cfg.Voice.Mode == config.ModeMock {
		return mockvoice.NewProvider(mockvoice.Config{UserName: cfg.User.Name})
	}
	return voicegateway.NewProvider(voicegateway.Config{URL: cfg.Voice.GatewayURL})
}
