package enricher

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/kovalyov-valentin/crypto-intel/internal/model"
)

// Счетчики прогона обогащения
type Progress struct {
	SessionID  string    `json:"sessionId"`
	Running    bool      `json:"running"`
	Cancelled  bool      `json:"cancelled"`
	Total      int       `json:"total"`
	Processed  int       `json:"processed"`
	Completed  int       `json:"completed"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
	Remaining  int       `json:"remaining"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt,omitempty"`
}

// Session это один прогон обогащения: флаг отмены и счетчики.
// Отмена мягкая, текущая пачка всегда дорабатывает.
type Session struct {
	id        string
	used      atomic.Bool
	cancelled atomic.Bool
	done      chan struct{}

	mu       sync.Mutex
	progress Progress
	err      error
}

func NewSession() *Session {
	id := uuid.NewString()
	return &Session{
		id:       id,
		done:     make(chan struct{}),
		progress: Progress{SessionID: id},
	}
}

func (s *Session) ID() string {
	return s.id
}

// claim помечает сессию занятой. Сессия проходит через движок только один раз
func (s *Session) claim() bool {
	return s.used.CompareAndSwap(false, true)
}

func (s *Session) Cancel() {
	s.cancelled.Store(true)
}

func (s *Session) Cancelled() bool {
	return s.cancelled.Load()
}

// Done закрывается когда прогон закончился
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err возвращает ошибку, с которой закончился прогон
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Session) Progress() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.progress
	p.Cancelled = s.Cancelled()
	return p
}

func (s *Session) start(now time.Time, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.progress.Running = true
	s.progress.StartedAt = now
	s.progress.Total = total
	s.progress.Remaining = total
}

func (s *Session) record(status model.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.progress.Processed++
	switch status {
	case model.StatusCompleted:
		s.progress.Completed++
	case model.StatusSkipped:
		s.progress.Skipped++
	case model.StatusFailed:
		s.progress.Failed++
	}
}

func (s *Session) setRemaining(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress.Remaining = n
}

func (s *Session) finish(now time.Time, err error) {
	s.mu.Lock()
	s.progress.Running = false
	s.progress.FinishedAt = now
	if err != nil {
		s.progress.Error = err.Error()
	}
	s.err = err
	s.mu.Unlock()

	close(s.done)
}
