package usecase

import (
	"time"

	"olivia/internal/ports"
)

// durationTicker counts connected seconds for one call.
type durationTicker struct {
	stop chan struct{}
	done chan struct{}
}

func startDurationTicker(call *activeCall, interval time.Duration, events ports.EventSink) *durationTicker {
	if interval <= 0 {
		interval = time.Second
	}
	t := &durationTicker{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	go func() {
		defer close(t.done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if seconds, ok := call.tick(); ok {
					events.DurationTick(seconds)
				}
			case <-t.stop:
				return
			}
		}
	}()
	return t
}

// Stop cancels the ticker and waits until no further ticks can be counted.
func (t *durationTicker) Stop() {
	if t == nil {
		return
	}
	select {
	case <-t.stop:
	default:
		close(t.stop)
	}
	<-t.done
}

// stopVoiceSession asks the session to hang up and gives up waiting after
// timeout.
func stopVoiceSession(session ports.VoiceSession, timeout time.Duration) error {
	done := make(chan error, 1)
	go func() {
		done <- session.Stop()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		return errStopTimeout
	}
}
