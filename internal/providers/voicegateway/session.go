package voicegateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"olivia/internal/domain"
	"olivia/internal/ports"
)

const defaultStopGrace = 2 * time.Second

// Config controls the voice gateway websocket.
type Config struct {
	URL              string
	HandshakeTimeout time.Duration
	StopGrace        time.Duration
}

// Provider implements ports.VoiceProvider over the voice gateway websocket.
type Provider struct {
	cfg Config
}

func NewProvider(cfg Config) *Provider {
	if cfg.URL == "" {
		cfg.URL = "wss://api.retellai.com/web-call"
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if cfg.StopGrace <= 0 {
		cfg.StopGrace = defaultStopGrace
	}
	return &Provider{cfg: cfg}
}

func (p *Provider) StartCall(ctx context.Context, accessToken string) (ports.VoiceSession, error) {
	if strings.TrimSpace(accessToken) == "" {
		return nil, errors.New("voice access token is empty")
	}

	callURL, err := buildCallURL(p.cfg.URL, accessToken)
	if err != nil {
		return nil, err
	}

	dialer := websocket.Dialer{HandshakeTimeout: p.cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, callURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to voice gateway: %w", err)
	}

	session := &voiceSession{
		conn:      conn,
		events:    make(chan domain.VoiceEvent, 64),
		control:   make(chan controlFrame, 8),
		readDone:  make(chan struct{}),
		done:      make(chan struct{}),
		closing:   make(chan struct{}),
		stopGrace: p.cfg.StopGrace,
	}

	session.wg.Add(2)
	go session.readLoop()
	go session.writeLoop()
	go func() {
		session.wg.Wait()
		close(session.events)
		close(session.done)
		_ = conn.Close()
	}()

	go func() {
		select {
		case <-ctx.Done():
			_ = session.Stop()
		case <-session.done:
		}
	}()

	return session, nil
}

type controlFrame struct {
	Type string `json:"type"`
}

type voiceSession struct {
	conn      *websocket.Conn
	stopGrace time.Duration

	events   chan domain.VoiceEvent
	control  chan controlFrame
	readDone chan struct{}
	done     chan struct{}
	closing  chan struct{}

	wg sync.WaitGroup

	errMu sync.Mutex
	err   error

	stopOnce      sync.Once
	closeOnce     sync.Once
	controlMu     sync.RWMutex
	controlClosed bool
}

func (s *voiceSession) Events() <-chan domain.VoiceEvent {
	return s.events
}

func (s *voiceSession) Mute() error {
	return s.sendControl("mute")
}

func (s *voiceSession) Unmute() error {
	return s.sendControl("unmute")
}

// Stop asks the gateway to end the call and waits briefly for it to hang up
// before closing the connection.
func (s *voiceSession) Stop() error {
	s.stopOnce.Do(func() {
		s.controlMu.Lock()
		s.controlClosed = true
		close(s.control)
		s.controlMu.Unlock()
	})

	timer := time.NewTimer(s.stopGrace)
	defer timer.Stop()
	select {
	case <-s.done:
	case <-timer.C:
		s.forceClose()
		<-s.done
	}
	return s.waitErr()
}

func (s *voiceSession) Wait() error {
	<-s.done
	return s.waitErr()
}

func (s *voiceSession) forceClose() {
	s.closeOnce.Do(func() {
		close(s.closing)
		_ = s.conn.Close()
	})
}

func (s *voiceSession) sendControl(kind string) error {
	s.controlMu.RLock()
	defer s.controlMu.RUnlock()
	if s.controlClosed {
		return errors.New("voice session is already stopped")
	}

	select {
	case s.control <- controlFrame{Type: kind}:
		return nil
	case <-s.done:
		if err := s.waitErr(); err != nil {
			return err
		}
		return errors.New("voice session closed")
	}
}

func (s *voiceSession) waitErr() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *voiceSession) setErr(err error) {
	if err == nil {
		return
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) {
		return
	}
	select {
	case <-s.closing:
		// Reads fail once the connection is force-closed.
		return
	default:
	}

	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *voiceSession) writeLoop() {
	defer s.wg.Done()

	for {
		select {
		case frame, ok := <-s.control:
			if !ok {
				s.hangUp()
				return
			}
			if err := s.conn.WriteJSON(frame); err != nil {
				s.setErr(fmt.Errorf("failed to send %s: %w", frame.Type, err))
				return
			}
		case <-s.readDone:
			return
		}
	}
}

func (s *voiceSession) hangUp() {
	if err := s.conn.WriteJSON(controlFrame{Type: "stop"}); err != nil {
		s.setErr(fmt.Errorf("failed to stop call: %w", err))
		return
	}
	deadline := time.Now().Add(time.Second)
	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "call ended")
	if err := s.conn.WriteControl(websocket.CloseMessage, closeMsg, deadline); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		s.setErr(fmt.Errorf("failed to close call: %w", err))
	}
}

func (s *voiceSession) readLoop() {
	defer s.wg.Done()
	defer close(s.readDone)

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			s.setErr(fmt.Errorf("failed to read voice event: %w", err))
			return
		}

		var frame gatewayEvent
		if err := json.Unmarshal(payload, &frame); err != nil {
			continue
		}

		event, ok := frame.toDomain()
		if !ok {
			continue
		}
		s.emit(event)

		if event.Type == domain.VoiceEventError {
			s.setErr(errors.New(event.Message))
			return
		}
	}
}

func (s *voiceSession) emit(event domain.VoiceEvent) {
	select {
	case s.events <- event:
	case <-s.closing:
	}
}

type gatewayEvent struct {
	EventType  string `json:"event_type"`
	Message    string `json:"message"`
	Transcript []struct {
		Role      string `json:"role"`
		Content   string `json:"content"`
		Timestamp int64  `json:"timestamp"`
	} `json:"transcript"`
}

func (e gatewayEvent) toDomain() (domain.VoiceEvent, bool) {
	kind := domain.VoiceEventType(strings.TrimSpace(e.EventType))
	switch kind {
	case domain.VoiceEventCallStarted,
		domain.VoiceEventCallEnded,
		domain.VoiceEventAgentStartTalking,
		domain.VoiceEventAgentStopTalking:
		return domain.VoiceEvent{Type: kind}, true
	case domain.VoiceEventUpdate:
		transcript := make([]domain.TranscriptMessage, 0, len(e.Transcript))
		now := domain.NowMillis()
		for _, item := range e.Transcript {
			ts := item.Timestamp
			if ts == 0 {
				ts = now
			}
			transcript = append(transcript, domain.TranscriptMessage{
				Role:      domain.ParseRole(item.Role),
				Content:   item.Content,
				Timestamp: ts,
			})
		}
		return domain.VoiceEvent{Type: kind, Transcript: transcript}, true
	case domain.VoiceEventError:
		message := strings.TrimSpace(e.Message)
		if message == "" {
			message = "voice gateway returned an unknown error"
		}
		return domain.VoiceEvent{Type: kind, Message: message}, true
	default:
		return domain.VoiceEvent{}, false
	}
}

func buildCallURL(base string, accessToken string) (string, error) {
	base = strings.TrimSpace(base)
	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}

	callURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid voice gateway URL: %w", err)
	}
	if callURL.Scheme != "ws" && callURL.Scheme != "wss" {
		return "", fmt.Errorf("invalid voice gateway URL scheme %q", callURL.Scheme)
	}

	query := callURL.Query()
	query.Set("access_token", accessToken)
	callURL.RawQuery = query.Encode()
	return callURL.String(), nil
}
