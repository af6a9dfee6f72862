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
	ErrSDKUnavailable    = errors.New("voice SDK is not available")
	ErrCredentialRequest = errors.New("failed to request call credentials")
	ErrSessionFailed     = errors.New("voice session failed")
	ErrNoActiveCall      = errors.New("no active call")

	errStopTimeout = errors.New("timed out stopping voice session")
)

// Config controls call session behavior.
type Config struct {
	UserID         string
	TickInterval   time.Duration
	PersistTimeout time.Duration
	StopTimeout    time.Duration
	Metrics        *metrics.Metrics
}

// CallController owns the lifecycle of one voice call at a time.
type CallController struct {
	provider  ports.VoiceProvider
	backend   ports.IntakeBackend
	events    ports.EventSink
	finalizer callFinalizer
	cfg       Config
	logger    zerolog.Logger

	mu      sync.Mutex
	current *activeCall
}

// NewCallController builds a controller. provider may be nil when no voice
// SDK could be loaded; StartCall then fails with ErrSDKUnavailable.
func NewCallController(
	provider ports.VoiceProvider,
	backend ports.IntakeBackend,
	events ports.EventSink,
	cfg Config,
) *CallController {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 5 * time.Second
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.DefaultMetrics
	}
	return &CallController{
		provider:  provider,
		backend:   backend,
		events:    events,
		finalizer: newCallFinalizer(backend, cfg.Metrics, cfg.PersistTimeout),
		cfg:       cfg,
		logger:    logging.WithComponent("call-controller"),
	}
}

// StartCall requests call credentials and starts a voice session. A call that
// is still running is ended first.
func (c *CallController) StartCall(ctx context.Context) error {
	c.mu.Lock()
	previous := c.current
	c.current = nil
	c.mu.Unlock()

	if previous != nil {
		c.endCall(previous)
	}

	active := newActiveCall()
	c.mu.Lock()
	c.current = active
	c.mu.Unlock()

	c.apply(active, domain.CallStateConnecting, "")

	if c.provider == nil {
		c.fail(active, domain.ErrorCodeSDKUnavailable, "Voice service is unavailable. Please try again later.")
		return ErrSDKUnavailable
	}

	call, err := c.backend.CreateWebCall(ctx, c.cfg.UserID)
	if err != nil {
		c.logger.Error().Err(err).Str("userId", c.cfg.UserID).Msg("Failed to create web call")
		c.fail(active, domain.ErrorCodeCredential, "Could not connect to the call service. Please try again.")
		return fmt.Errorf("%w: %w", ErrCredentialRequest, err)
	}
	active.setCallID(call.CallID)

	sessionCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	session, err := c.provider.StartCall(sessionCtx, call.AccessToken)
	if err != nil {
		cancel()
		logger := logging.WithCall("call-controller", call.CallID)
		logger.Error().Err(err).Msg("Failed to start voice session")
		c.fail(active, domain.ErrorCodeSession, "Failed to start the call. Please try again.")
		return fmt.Errorf("%w: %w", ErrSessionFailed, err)
	}

	active.attach(session, cancel)
	_, eventsDone := active.getSession()
	go c.consumeEvents(active, session, eventsDone)

	if active.getState().Terminal() {
		// Ended while the session was starting.
		c.releaseSession(active)
		return nil
	}

	logger := logging.WithCall("call-controller", call.CallID)
	logger.Info().Msg("Voice session started")
	return nil
}

// EndCall hangs up the active call and returns what the results view needs.
// Ending a call the SDK already ended returns the same outcome.
func (c *CallController) EndCall(_ context.Context) (domain.CallOutcome, error) {
	active, err := c.getCurrent()
	if err != nil {
		return domain.CallOutcome{}, err
	}

	c.endCall(active)
	return active.outcome(), nil
}

// ToggleMute flips the microphone and returns the new muted state.
func (c *CallController) ToggleMute() (bool, error) {
	active, err := c.getCurrent()
	if err != nil {
		return false, err
	}
	session, _ := active.getSession()
	if session == nil || active.getState().Terminal() {
		return active.isMuted(), ErrNoActiveCall
	}

	muted := !active.isMuted()
	if muted {
		err = session.Mute()
	} else {
		err = session.Unmute()
	}
	if err != nil {
		return active.isMuted(), err
	}
	active.setMuted(muted)
	return muted, nil
}

// Status returns the UI-visible state of the current call.
func (c *CallController) Status() domain.CallStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return domain.CallStatus{State: domain.CallStateIdle}
	}
	return c.current.status()
}

// Transcript returns the latest transcript snapshot.
func (c *CallController) Transcript() []domain.TranscriptMessage {
	active, err := c.getCurrent()
	if err != nil {
		return []domain.TranscriptMessage{}
	}
	return active.transcript.Snapshot()
}

// Duration returns the connected seconds of the current call.
func (c *CallController) Duration() int {
	active, err := c.getCurrent()
	if err != nil {
		return 0
	}
	return active.getDuration()
}

// Muted reports whether the microphone of the current call is muted.
func (c *CallController) Muted() bool {
	active, err := c.getCurrent()
	if err != nil {
		return false
	}
	return active.isMuted()
}

// Close tears down the current call when its view goes away. A live call is
// ended as by EndCall.
func (c *CallController) Close() {
	c.mu.Lock()
	active := c.current
	c.current = nil
	c.mu.Unlock()

	if active != nil {
		c.endCall(active)
	}
}

func (c *CallController) getCurrent() (*activeCall, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil, ErrNoActiveCall
	}
	return c.current, nil
}

func (c *CallController) endCall(active *activeCall) {
	c.apply(active, domain.CallStateEnded, "")
	c.releaseSession(active)
}

// releaseSession stops the voice session and waits for its events to drain.
func (c *CallController) releaseSession(active *activeCall) {
	active.takeTicker().Stop()

	session, eventsDone := active.getSession()
	if session == nil {
		return
	}
	if err := stopVoiceSession(session, c.cfg.StopTimeout); err != nil {
		logger := logging.WithCall("call-controller", active.getCallID())
		logger.Warn().Err(err).Msg("Voice session did not stop cleanly")
	}
	active.cancel()
	if eventsDone != nil {
		<-eventsDone
	}
}

func (c *CallController) consumeEvents(active *activeCall, session ports.VoiceSession, done chan struct{}) {
	defer close(done)

	for event := range session.Events() {
		c.handleEvent(active, session, event)
	}

	// The session went away without saying how it ended.
	if err := session.Wait(); err != nil {
		c.fail(active, domain.ErrorCodeSession, err.Error())
		return
	}
	c.apply(active, domain.CallStateEnded, "")
}

func (c *CallController) handleEvent(active *activeCall, session ports.VoiceSession, event domain.VoiceEvent) {
	switch event.Type {
	case domain.VoiceEventCallStarted:
		c.apply(active, domain.CallStateConnected, "")
	case domain.VoiceEventCallEnded:
		c.apply(active, domain.CallStateEnded, "")
	case domain.VoiceEventError:
		message := event.Message
		if message == "" {
			message = "The call ran into a problem."
		}
		if c.fail(active, domain.ErrorCodeSession, message) {
			// Stopping waits for this consumer, so hang up off the event loop.
			go func() {
				if err := stopVoiceSession(session, c.cfg.StopTimeout); err != nil {
					logger := logging.WithCall("call-controller", active.getCallID())
					logger.Warn().Err(err).Msg("Voice session did not stop after error")
				}
			}()
		}
	case domain.VoiceEventAgentStartTalking, domain.VoiceEventAgentStopTalking:
		if active.getState() == domain.CallStateConnected {
			c.events.AgentTalking(event.Type == domain.VoiceEventAgentStartTalking)
		}
	case domain.VoiceEventUpdate:
		if active.getState().Terminal() {
			return
		}
		active.transcript.Replace(event.Transcript)
		c.cfg.Metrics.RecordTranscriptSnapshot()
		c.events.TranscriptUpdated(active.transcript.Snapshot())
	}
}

// apply performs one lifecycle transition and its side effects. It reports
// false when the transition is not allowed from the current state.
func (c *CallController) apply(active *activeCall, state domain.CallState, errMsg string) bool {
	prev, ok := active.transition(state, errMsg)
	if !ok {
		return false
	}

	switch state {
	case domain.CallStateConnected:
		c.cfg.Metrics.RecordCallStarted()
		ticker := startDurationTicker(active, c.cfg.TickInterval, c.events)
		if !active.setTicker(ticker) {
			ticker.Stop()
		}
	case domain.CallStateEnded, domain.CallStateError:
		active.takeTicker().Stop()
		if prev == domain.CallStateConnected {
			c.cfg.Metrics.RecordCallFinished(float64(active.getDuration()))
		}
	}

	c.events.CallStatusChanged(active.status())

	if state == domain.CallStateEnded {
		active.persistOnce.Do(func() {
			c.finalizer.Persist(active.getCallID(), active.transcript.Snapshot())
		})
	}
	return true
}

func (c *CallController) fail(active *activeCall, code domain.ErrorCode, message string) bool {
	if !c.apply(active, domain.CallStateError, message) {
		return false
	}
	c.cfg.Metrics.RecordCallFailed(string(code))
	c.events.CallError(code, message)
	return true
}
