package usecase

import (
	"sync"

	"olivia/internal/domain"
	"olivia/internal/ports"
)

type activeCall struct {
	cancel  func()
	session ports.VoiceSession

	stateMu  sync.Mutex
	state    domain.CallState
	callID   string
	errMsg   string
	muted    bool
	duration int

	transcript *transcriptSnapshot
	ticker     *durationTicker
	eventsDone chan struct{}

	persistOnce sync.Once
}

func newActiveCall() *activeCall {
	return &activeCall{
		cancel:     func() {},
		state:      domain.CallStateIdle,
		transcript: newTranscriptSnapshot(),
	}
}

// allowedTransitions is the call lifecycle. Anything not listed is ignored.
var allowedTransitions = map[domain.CallState][]domain.CallState{
	domain.CallStateIdle:       {domain.CallStateConnecting},
	domain.CallStateConnecting: {domain.CallStateConnected, domain.CallStateEnded, domain.CallStateError},
	domain.CallStateConnected:  {domain.CallStateEnded, domain.CallStateError},
}

func canTransition(from, to domain.CallState) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// transition moves the call to state and reports the previous state. It is a
// no-op returning false when the lifecycle does not allow the move.
func (c *activeCall) transition(state domain.CallState, errMsg string) (domain.CallState, bool) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	prev := c.state
	if !canTransition(prev, state) {
		return prev, false
	}
	c.state = state
	if state == domain.CallStateError {
		c.errMsg = errMsg
	}
	return prev, true
}

func (c *activeCall) getState() domain.CallState {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.state
}

func (c *activeCall) status() domain.CallStatus {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return domain.CallStatus{State: c.state, CallID: c.callID, Error: c.errMsg}
}

func (c *activeCall) setCallID(callID string) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	c.callID = callID
}

func (c *activeCall) getCallID() string {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.callID
}

func (c *activeCall) attach(session ports.VoiceSession, cancel func()) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	c.session = session
	c.cancel = cancel
	c.eventsDone = make(chan struct{})
}

func (c *activeCall) getSession() (ports.VoiceSession, chan struct{}) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.session, c.eventsDone
}

// setTicker hands t to the call. It reports false once the call is terminal,
// in which case the caller still owns t.
func (c *activeCall) setTicker(t *durationTicker) bool {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if c.state.Terminal() {
		return false
	}
	c.ticker = t
	return true
}

func (c *activeCall) takeTicker() *durationTicker {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	t := c.ticker
	c.ticker = nil
	return t
}

func (c *activeCall) tick() (int, bool) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if c.state != domain.CallStateConnected {
		return c.duration, false
	}
	c.duration++
	return c.duration, true
}

func (c *activeCall) getDuration() int {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.duration
}

func (c *activeCall) setMuted(muted bool) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	c.muted = muted
}

func (c *activeCall) isMuted() bool {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.muted
}

func (c *activeCall) outcome() domain.CallOutcome {
	return domain.CallOutcome{
		CallID:     c.getCallID(),
		Transcript: c.transcript.Snapshot(),
		Duration:   c.getDuration(),
	}
}
