package usecase

import (
	"sync"

	"olivia/internal/domain"
)

// transcriptSnapshot holds the latest transcript delivered by the voice SDK.
// Each update replaces the previous snapshot, it is never merged.
type transcriptSnapshot struct {
	mu       sync.Mutex
	messages []domain.TranscriptMessage
}

func newTranscriptSnapshot() *transcriptSnapshot {
	return &transcriptSnapshot{}
}

func (s *transcriptSnapshot) Replace(messages []domain.TranscriptMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = domain.CloneTranscript(messages)
}

func (s *transcriptSnapshot) Snapshot() []domain.TranscriptMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.messages == nil {
		return []domain.TranscriptMessage{}
	}
	return domain.CloneTranscript(s.messages)
}
