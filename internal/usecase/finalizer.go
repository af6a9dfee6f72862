package usecase

import (
	"context"
	"time"

	"olivia/internal/domain"
	"olivia/internal/observability/logging"
	"olivia/internal/observability/metrics"
	"olivia/internal/ports"
)

// callFinalizer persists a finished call's transcript. Saves are best-effort:
// failures are logged and counted, never retried or surfaced.
type callFinalizer struct {
	backend ports.IntakeBackend
	metrics *metrics.Metrics
	timeout time.Duration
}

func newCallFinalizer(backend ports.IntakeBackend, m *metrics.Metrics, timeout time.Duration) callFinalizer {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return callFinalizer{backend: backend, metrics: m, timeout: timeout}
}

// Persist saves the transcript in the background. It returns immediately.
func (f callFinalizer) Persist(callID string, transcript []domain.TranscriptMessage) {
	if callID == "" || len(transcript) == 0 {
		return
	}
	go f.save(callID, domain.CloneTranscript(transcript))
}

func (f callFinalizer) save(callID string, transcript []domain.TranscriptMessage) {
	logger := logging.WithCall("call-finalizer", callID)

	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()

	if err := f.backend.SaveCallData(ctx, callID, transcript); err != nil {
		f.metrics.RecordPersistFailure()
		logger.Warn().Err(err).Int("messages", len(transcript)).Msg("Failed to save call data")
		return
	}
	logger.Info().Int("messages", len(transcript)).Msg("Call data saved")
}
