package query

import (
	"strings"
	"sync"
	"time"
)

const DefaultDebounce = 500 * time.Millisecond

type Phase int

const (
	Idle Phase = iota
	Editing
	Committed
)

func (p Phase) String() string {
	switch p {
	case Editing:
		return "editing"
	case Committed:
		return "committed"
	default:
		return "idle"
	}
}

// Search holds the raw text being typed and the debounced text that queries
// actually use. onCommit is called, outside any lock, each time the debounced
// text changes.
type Search struct {
	mu        sync.Mutex
	text      string
	debounced string
	phase     Phase
	immediate bool
	deb       *Debouncer
	onCommit  func(string)
}

// NewSearch returns a search that commits delay after the last edit. With
// immediate set every edit commits synchronously.
func NewSearch(delay time.Duration, sched Scheduler, immediate bool, onCommit func(string)) *Search {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Search{
		immediate: immediate,
		deb:       NewDebouncer(delay, sched),
		onCommit:  onCommit,
	}
}

// SetText records an edit and (re)starts the debounce window.
func (s *Search) SetText(text string) {
	s.mu.Lock()
	s.text = text
	if s.immediate {
		s.mu.Unlock()
		s.commit()
		return
	}
	s.phase = Editing
	s.mu.Unlock()
	s.deb.Trigger(s.commit)
}

// Flush commits a pending edit immediately.
func (s *Search) Flush() {
	s.deb.Flush()
}

func (s *Search) commit() {
	s.mu.Lock()
	changed := normalize(s.text) != s.debounced
	s.debounced = normalize(s.text)
	s.phase = Committed
	cb := s.onCommit
	value := s.debounced
	s.mu.Unlock()
	if changed && cb != nil {
		cb(value)
	}
}

// restore sets both texts without notifying; used when loading from a URL.
func (s *Search) restore(text string) {
	s.deb.Cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.text = text
	s.debounced = normalize(text)
	if s.debounced == "" {
		s.phase = Idle
	} else {
		s.phase = Committed
	}
}

// Reset clears both texts and drops any pending edit.
func (s *Search) Reset() {
	s.restore("")
}

func (s *Search) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text
}

func (s *Search) Debounced() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.debounced
}

func (s *Search) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *Search) Pending() bool { return s.deb.Pending() }

// Close cancels the pending timer.
func (s *Search) Close() { s.deb.Close() }

func normalize(s string) string { return strings.TrimSpace(s) }
