// Package mockvoice plays a scripted intake conversation in place of the live
// voice SDK.
package mockvoice

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"olivia/internal/domain"
	"olivia/internal/ports"
)

// Line is one scripted utterance. {name} in Content is replaced with the
// caller's first name.
type Line struct {
	Role    domain.Role
	Content string
}

// Config controls mock call pacing.
type Config struct {
	UserName        string
	ConnectDelay    time.Duration
	MessageInterval time.Duration
	Script          []Line
}

// DefaultScript is the development-mode intake conversation.
func DefaultScript() []Line {
	return []Line{
		{Role: domain.RoleAgent, Content: "Hi {name}! I'm Olivia, your AI health companion. I'd like to learn about your daily routines to help personalize your care. Does now work for you?"},
		{Role: domain.RoleUser, Content: "Yes, sounds good!"},
		{Role: domain.RoleAgent, Content: "Great! I'll ask about your eating, sleep, and lifestyle. The more detail you share, the better I can help. Ready?"},
		{Role: domain.RoleUser, Content: "Sure, I'm ready."},
		{Role: domain.RoleAgent, Content: "Let's start with your meals. Can you tell me about what you typically eat for breakfast, lunch, and dinner?"},
		{Role: domain.RoleUser, Content: "For breakfast I usually have oatmeal with berries. Lunch is typically a salad with grilled chicken. Dinner is usually lean protein with vegetables, sometimes brown rice."},
		{Role: domain.RoleAgent, Content: "That sounds like a balanced diet! How about exercise? What does your typical weekly routine look like?"},
		{Role: domain.RoleUser, Content: "I go to the gym 3-4 times per week, mostly cardio and light weights. I also walk about 30 minutes every day."},
		{Role: domain.RoleAgent, Content: "Excellent! And how about your sleep? How many hours do you typically get per night?"},
		{Role: domain.RoleUser, Content: "I try to get 7-8 hours. I usually go to bed around 11 PM and wake up at 7 AM."},
		{Role: domain.RoleAgent, Content: "Perfect! Thank you for sharing all this information, {name}. This will really help us personalize your care plan."},
	}
}

// Provider implements ports.VoiceProvider with a scripted conversation.
type Provider struct {
	cfg Config
}

func NewProvider(cfg Config) *Provider {
	if cfg.ConnectDelay <= 0 {
		cfg.ConnectDelay = time.Second
	}
	if cfg.MessageInterval <= 0 {
		cfg.MessageInterval = 2500 * time.Millisecond
	}
	if cfg.Script == nil {
		cfg.Script = DefaultScript()
	}
	return &Provider{cfg: cfg}
}

func (p *Provider) StartCall(ctx context.Context, accessToken string) (ports.VoiceSession, error) {
	if strings.TrimSpace(accessToken) == "" {
		return nil, errors.New("voice access token is empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := &session{
		cfg:    p.cfg,
		name:   firstName(p.cfg.UserName),
		events: make(chan domain.VoiceEvent, 3*len(p.cfg.Script)+2),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go s.run(ctx)
	return s, nil
}

type session struct {
	cfg  Config
	name string

	events chan domain.VoiceEvent
	stop   chan struct{}
	done   chan struct{}

	stopOnce sync.Once

	mu    sync.Mutex
	muted bool
}

func (s *session) Events() <-chan domain.VoiceEvent {
	return s.events
}

func (s *session) Mute() error {
	return s.setMuted(true)
}

func (s *session) Unmute() error {
	return s.setMuted(false)
}

// Muted reports the last mute state requested by the caller.
func (s *session) Muted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted
}

func (s *session) setMuted(muted bool) error {
	select {
	case <-s.done:
		return errors.New("voice session is already stopped")
	default:
	}
	s.mu.Lock()
	s.muted = muted
	s.mu.Unlock()
	return nil
}

func (s *session) Stop() error {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
	return nil
}

func (s *session) Wait() error {
	<-s.done
	return nil
}

func (s *session) run(ctx context.Context) {
	defer close(s.done)
	defer close(s.events)

	if !s.sleep(ctx, s.cfg.ConnectDelay) {
		return
	}
	if !s.emit(domain.VoiceEvent{Type: domain.VoiceEventCallStarted}) {
		return
	}

	transcript := make([]domain.TranscriptMessage, 0, len(s.cfg.Script))
	for i, line := range s.cfg.Script {
		if i > 0 && !s.sleep(ctx, s.cfg.MessageInterval) {
			return
		}

		transcript = append(transcript, domain.TranscriptMessage{
			Role:      line.Role,
			Content:   strings.ReplaceAll(line.Content, "{name}", s.name),
			Timestamp: domain.NowMillis(),
		})

		if line.Role == domain.RoleAgent && !s.emit(domain.VoiceEvent{Type: domain.VoiceEventAgentStartTalking}) {
			return
		}
		if !s.emit(domain.VoiceEvent{Type: domain.VoiceEventUpdate, Transcript: domain.CloneTranscript(transcript)}) {
			return
		}
		if line.Role == domain.RoleAgent && !s.emit(domain.VoiceEvent{Type: domain.VoiceEventAgentStopTalking}) {
			return
		}
	}

	select {
	case <-s.stop:
		s.emitFinal()
	case <-ctx.Done():
	}
}

func (s *session) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-s.stop:
		s.emitFinal()
		return false
	case <-ctx.Done():
		return false
	}
}

func (s *session) emit(event domain.VoiceEvent) bool {
	select {
	case s.events <- event:
		return true
	case <-s.stop:
		s.emitFinal()
		return false
	}
}

// emitFinal reports the hang-up without blocking a caller that stopped reading.
func (s *session) emitFinal() {
	select {
	case s.events <- domain.VoiceEvent{Type: domain.VoiceEventCallEnded}:
	default:
	}
}

func firstName(full string) string {
	fields := strings.Fields(full)
	if len(fields) == 0 {
		return "there"
	}
	return fields[0]
}
