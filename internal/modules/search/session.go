package search

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"geotag/internal/maps"
	"geotag/internal/modules/location"
)

// Searcher is the forward half of the geocoding client.
type Searcher interface {
	Search(ctx context.Context, query string) ([]location.Location, error)
}

// Session drives one search box. Every Type call supersedes whatever came
// before it: the pending debounce timer is stopped, the in-flight request is
// cancelled and its response, if it still arrives, is discarded because its
// generation is no longer current.
type Session struct {
	mu       sync.Mutex
	searcher Searcher
	debounce time.Duration
	minLen   int
	onSelect func(location.Location)

	ctx    context.Context
	stop   context.CancelFunc
	timer  *time.Timer
	cancel context.CancelFunc
	gen    uint64
	state  State
	closed bool

	updates chan State
}

type SessionOption func(*Session)

func WithDebounce(d time.Duration) SessionOption {
	return func(s *Session) { s.debounce = d }
}

func WithMinLength(n int) SessionOption {
	return func(s *Session) { s.minLen = n }
}

// OnSelect registers the single selection callback.
func OnSelect(fn func(location.Location)) SessionOption {
	return func(s *Session) { s.onSelect = fn }
}

func NewSession(ctx context.Context, searcher Searcher, opts ...SessionOption) *Session {
	ctx, stop := context.WithCancel(ctx)
	s := &Session{
		searcher: searcher,
		debounce: DefaultDebounce,
		minLen:   DefaultMinLength,
		ctx:      ctx,
		stop:     stop,
		state:    State{Phase: PhaseIdle},
		updates:  make(chan State, 16),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Type records a keystroke. Queries shorter than the minimum length reset
// the session to idle.
func (s *Session) Type(query string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	s.gen++
	gen := s.gen
	s.stopPendingLocked()

	trimmed := strings.TrimSpace(query)
	if utf8.RuneCountInString(trimmed) < s.minLen {
		s.setLocked(State{Phase: PhaseIdle, Query: query, Generation: gen})
		return
	}
	s.state.Query = query
	s.state.Generation = gen
	s.timer = time.AfterFunc(s.debounce, func() { s.dispatch(gen, trimmed) })
}

func (s *Session) dispatch(gen uint64, query string) {
	s.mu.Lock()
	if s.closed || gen != s.gen {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(s.ctx)
	s.cancel = cancel
	s.setLocked(State{Phase: PhaseSearching, Query: s.state.Query, Generation: gen})
	s.mu.Unlock()

	results, err := s.searcher.Search(ctx, query)
	cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || gen != s.gen {
		return
	}
	s.cancel = nil
	next := State{Query: s.state.Query, Generation: gen}
	switch {
	case err != nil:
		next.Phase = PhaseError
		next.Error = searchErrorMessage(err)
	case len(results) == 0:
		next.Phase = PhaseNoResults
	default:
		next.Phase = PhaseResults
		next.Results = results
	}
	s.setLocked(next)
}

// Select emits the result with the given id through the selection callback
// and clears the transient search state.
func (s *Session) Select(id string) (location.Location, bool) {
	s.mu.Lock()
	var picked location.Location
	found := false
	for _, r := range s.state.Results {
		if r.ID == id {
			picked, found = r, true
			break
		}
	}
	if !found {
		s.mu.Unlock()
		return location.Location{}, false
	}
	s.clearLocked()
	cb := s.onSelect
	s.mu.Unlock()

	if cb != nil {
		cb(picked)
	}
	return picked, true
}

// Clear drops the query and results and supersedes any pending request.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Updates delivers state snapshots. When the consumer falls behind, older
// snapshots are dropped in favour of the newest.
func (s *Session) Updates() <-chan State {
	return s.updates
}

// Close stops timers and cancels the in-flight request. It is safe to call twice.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.stopPendingLocked()
	s.stop()
	close(s.updates)
}

func (s *Session) clearLocked() {
	if s.closed {
		return
	}
	s.gen++
	s.stopPendingLocked()
	s.setLocked(State{Phase: PhaseIdle, Generation: s.gen})
}

func (s *Session) stopPendingLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Session) setLocked(st State) {
	s.state = st
	if s.closed {
		return
	}
	select {
	case s.updates <- st:
		return
	default:
	}
	select {
	case <-s.updates:
	default:
	}
	select {
	case s.updates <- st:
	default:
	}
}

func searchErrorMessage(err error) string {
	switch {
	case maps.IsTransport(err):
		return "Location search is unavailable right now. Please try again."
	case errors.Is(err, context.DeadlineExceeded):
		return "Location search timed out. Please try again."
	default:
		return "Location search failed."
	}
}
