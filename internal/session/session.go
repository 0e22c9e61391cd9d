// Package session runs translation sessions over a document. A session
// moves Idle → Scanning → Running → Settled, or through Stopping when the
// user stops it; a Controller makes sure at most one session is live.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/valpere/bilingua/internal"
)

type State int

const (
	Idle State = iota
	Scanning
	Running
	Stopping
	Settled
)

func (s State) String() string {
	switch s {
	case Scanning:
		return "scanning"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Settled:
		return "settled"
	default:
		return "idle"
	}
}

// Final statuses of a settled session.
const (
	StatusNothingFound = "nothing found"
	StatusCompleted    = "completed"
	StatusStopped      = "stopped"
)

// Session is one translation run. Its counters are safe for concurrent use.
type Session struct {
	ID string

	mu         sync.Mutex
	state      State
	status     string
	total      int
	completed  int
	failed     int
	units      []internal.TranslationUnit
	startedAt  time.Time
	finishedAt time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

func newSession(id string, cancel context.CancelFunc) *Session {
	return &Session{
		ID:        id,
		state:     Idle,
		startedAt: time.Now(),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

// Snapshot is a consistent copy of a session's progress.
type Snapshot struct {
	ID        string
	State     State
	Status    string
	Total     int
	Completed int
	Failed    int
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		ID:        s.ID,
		State:     s.state,
		Status:    s.status,
		Total:     s.total,
		Completed: s.completed,
		Failed:    s.failed,
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed once the session has settled.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// live reports whether the session still owns the document.
func (s *Session) live() bool {
	st := s.State()
	return st == Scanning || st == Running || st == Stopping
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// beginStop moves a live session to Stopping. It reports false if the
// session was not running.
func (s *Session) beginStop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Scanning && s.state != Running {
		return false
	}
	s.state = Stopping
	return true
}

// scanned fixes the unit set and total at the end of Scanning.
func (s *Session) scanned(units []internal.TranslationUnit) {
	s.mu.Lock()
	s.units = units
	s.total = len(units)
	if s.state == Scanning {
		s.state = Running
	}
	s.mu.Unlock()
}

func (s *Session) selected() []internal.TranslationUnit {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.units
}

// progress records the completed count; it never moves backwards.
func (s *Session) progress(done int) {
	s.mu.Lock()
	if done > s.completed {
		s.completed = done
	}
	s.mu.Unlock()
}

func (s *Session) addFailed(n int) {
	s.mu.Lock()
	s.failed += n
	s.mu.Unlock()
}

// settle finalises the session. A run counts as completed only when every
// unit was injected; a session stopped while scanning is stopped even when
// the scan found nothing.
func (s *Session) settle(nothingFound bool) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case nothingFound && s.state == Stopping:
		s.status = StatusStopped
	case nothingFound:
		s.status = StatusNothingFound
	case s.completed == s.total:
		s.status = StatusCompleted
	default:
		s.status = StatusStopped
	}
	s.state = Settled
	s.finishedAt = time.Now()
	return s.status
}

func (s *Session) record(document, url, lang string) internal.RunRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return internal.RunRecord{
		ID:         s.ID,
		Document:   document,
		PageURL:    url,
		TargetLang: lang,
		State:      s.state.String(),
		Status:     s.status,
		Total:      s.total,
		Completed:  s.completed,
		Failed:     s.failed,
		StartedAt:  s.startedAt,
		FinishedAt: s.finishedAt,
	}
}
