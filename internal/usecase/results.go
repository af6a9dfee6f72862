package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"olivia/internal/domain"
	"olivia/internal/observability/logging"
	"olivia/internal/observability/metrics"
	"olivia/internal/ports"
)

var (
	ErrGenerationFailed = errors.New("failed to generate call results")
	ErrPollingExhausted = errors.New("call results are not available")
	ErrNotReady         = errors.New("call is not ready for results")
)

const (
	artifactSummary      = "summary"
	artifactGoalAnalysis = "goal_analysis"

	sourceGenerate = "generate"
	sourcePoll     = "poll"
)

// ResultsRequest identifies a finished call and what it needs for results.
type ResultsRequest struct {
	CallID     string
	Transcript []domain.TranscriptMessage
	UserID     string
	UserName   string
	CallEnded  bool
}

// ResultsConfig controls polling for stored results.
type ResultsConfig struct {
	PollAttempts int
	PollInterval time.Duration
	Metrics      *metrics.Metrics
}

// ResultAggregator turns a finished call into a summary and a goal analysis.
type ResultAggregator struct {
	backend ports.IntakeBackend
	goals   ports.GoalLister
	cfg     ResultsConfig
	logger  zerolog.Logger

	mu       sync.Mutex
	resolved map[string]*resolution
}

type resolution struct {
	done   chan struct{}
	result domain.CallResults
	err    error
}

func NewResultAggregator(backend ports.IntakeBackend, cfg ResultsConfig) *ResultAggregator {
	if cfg.PollAttempts <= 0 {
		cfg.PollAttempts = 30
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.DefaultMetrics
	}
	goals, _ := backend.(ports.GoalLister)
	return &ResultAggregator{
		backend:  backend,
		goals:    goals,
		cfg:      cfg,
		logger:   logging.WithComponent("result-aggregator"),
		resolved: make(map[string]*resolution),
	}
}

// Generate requests the summary and the goal analysis concurrently. Each
// request keeps its own outcome; an error is returned only when both fail.
func (a *ResultAggregator) Generate(ctx context.Context, req ResultsRequest) (domain.CallResults, error) {
	result := domain.CallResults{CallID: req.CallID}

	var (
		wg          sync.WaitGroup
		summaryErr  error
		analysisErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		summary, err := a.backend.GenerateSummary(ctx, req.CallID, req.Transcript)
		a.cfg.Metrics.RecordArtifact(artifactSummary, sourceGenerate, err)
		if err != nil {
			summaryErr = err
			return
		}
		result.Summary = &summary
	}()
	go func() {
		defer wg.Done()
		analysis, err := a.backend.AnalyzeGoalAchievement(ctx, ports.GoalAnalysisRequest{
			CallID:      req.CallID,
			Transcript:  req.Transcript,
			PatientID:   req.UserID,
			PatientName: req.UserName,
		})
		a.cfg.Metrics.RecordArtifact(artifactGoalAnalysis, sourceGenerate, err)
		if err != nil {
			analysisErr = err
			return
		}
		result.GoalAnalysis = &analysis
	}()
	wg.Wait()

	logger := logging.WithCall("result-aggregator", req.CallID)
	if summaryErr != nil && analysisErr != nil {
		logger.Error().AnErr("summaryErr", summaryErr).AnErr("analysisErr", analysisErr).Msg("Result generation failed")
		return result, fmt.Errorf("%w: %w", ErrGenerationFailed, errors.Join(summaryErr, analysisErr))
	}
	if summaryErr != nil {
		logger.Warn().Err(summaryErr).Msg("Summary generation failed")
	}
	if analysisErr != nil {
		logger.Warn().Err(analysisErr).Msg("Goal analysis failed")
	}
	return result, nil
}

// Poll fetches stored results for callID until both are available, the
// attempt budget runs out, or ctx is done. It returns whatever was retrieved.
func (a *ResultAggregator) Poll(ctx context.Context, callID string) (domain.CallResults, error) {
	return a.poll(ctx, domain.CallResults{CallID: callID})
}

func (a *ResultAggregator) poll(ctx context.Context, result domain.CallResults) (domain.CallResults, error) {
	logger := logging.WithCall("result-aggregator", result.CallID)

	for attempt := 1; attempt <= a.cfg.PollAttempts && !result.Complete(); attempt++ {
		if attempt > 1 {
			timer := time.NewTimer(a.cfg.PollInterval)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return result, ctx.Err()
			}
		}

		a.cfg.Metrics.RecordPollAttempt()
		if result.Summary == nil {
			summary, err := a.backend.GetSummary(ctx, result.CallID)
			if err == nil && summary != nil {
				result.Summary = summary
				a.cfg.Metrics.RecordArtifact(artifactSummary, sourcePoll, nil)
			}
		}
		if result.GoalAnalysis == nil {
			analysis, err := a.backend.GetGoalAnalysis(ctx, result.CallID)
			if err == nil && analysis != nil {
				result.GoalAnalysis = analysis
				a.cfg.Metrics.RecordArtifact(artifactGoalAnalysis, sourcePoll, nil)
			}
		}
		logger.Debug().Int("attempt", attempt).Bool("complete", result.Complete()).Msg("Polled call results")
	}

	if result.Empty() {
		return result, ErrPollingExhausted
	}
	return result, nil
}

// Resolve produces the results for a finished call. The first call for a call
// id generates them, polling for anything generation did not return; later
// calls for the same id wait for and share that result. A resolution cut short
// by its context is not kept.
func (a *ResultAggregator) Resolve(ctx context.Context, req ResultsRequest) (domain.CallResults, error) {
	if req.CallID == "" || len(req.Transcript) == 0 || !req.CallEnded {
		return domain.CallResults{}, ErrNotReady
	}

	for {
		a.mu.Lock()
		r, joined := a.resolved[req.CallID]
		if !joined {
			r = &resolution{done: make(chan struct{})}
			a.resolved[req.CallID] = r
		}
		a.mu.Unlock()

		if !joined {
			r.result, r.err = a.resolve(ctx, req)
			if canceled(r.err) {
				// Let a later caller retry a resolution nobody waited for.
				a.mu.Lock()
				delete(a.resolved, req.CallID)
				a.mu.Unlock()
			}
			close(r.done)
		}

		select {
		case <-r.done:
		case <-ctx.Done():
			return domain.CallResults{}, ctx.Err()
		}
		if joined && canceled(r.err) && ctx.Err() == nil {
			// The owner gave up, but this caller still wants the results.
			continue
		}
		return r.result, r.err
	}
}

func canceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (a *ResultAggregator) resolve(ctx context.Context, req ResultsRequest) (domain.CallResults, error) {
	logger := logging.WithCall("result-aggregator", req.CallID)

	result, genErr := a.Generate(ctx, req)
	var err error
	if !result.Complete() {
		var pollErr error
		result, pollErr = a.poll(ctx, result)
		if result.Empty() {
			err = pollErr
			if genErr != nil {
				err = genErr
			}
		}
	}

	if a.goals != nil {
		goals, goalsErr := a.goals.ListGoals(ctx, req.UserID)
		if goalsErr != nil {
			logger.Warn().Err(goalsErr).Msg("Failed to list care-plan goals")
		} else {
			result.Goals = goals
		}
	}

	if err != nil {
		result.Error = err.Error()
		return result, err
	}
	logger.Info().
		Bool("summary", result.Summary != nil).
		Bool("goalAnalysis", result.GoalAnalysis != nil).
		Msg("Call results resolved")
	return result, nil
}
