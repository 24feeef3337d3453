// README: Picker composes the three acquisition paths (search, map, device/custom)
// behind one open/close lifecycle and forwards the chosen location upstream.
package picker

import (
	"context"
	"sync"
	"time"

	"geotag/internal/modules/location"
	"geotag/internal/modules/mapview"
	"geotag/internal/modules/search"
)

const DefaultInstructionsTimeout = 5 * time.Second

type State struct {
	Open                bool `json:"open"`
	ShowMap             bool `json:"show_map"`
	InstructionsVisible bool `json:"instructions_visible"`
}

// Picker is owned by one edit session. Opening creates a fresh search
// session and map view; every path ends in Select.
type Picker struct {
	mu       sync.Mutex
	search   *search.Service
	reverser mapview.Reverser
	region   location.Region
	onSelect func(location.Location)
	timeout  time.Duration

	state   State
	opened  uint64
	timer   *time.Timer
	session *search.Session
	view    *mapview.View
}

func New(svc *search.Service, reverser mapview.Reverser, region location.Region, onSelect func(location.Location)) *Picker {
	return &Picker{
		search:   svc,
		reverser: reverser,
		region:   region,
		onSelect: onSelect,
		timeout:  DefaultInstructionsTimeout,
	}
}

// WithInstructionsTimeout overrides how long the usage hint stays visible.
func (p *Picker) WithInstructionsTimeout(d time.Duration) *Picker {
	p.timeout = d
	return p
}

// Open shows the picker with instructions and reports whether it did.
// Opening an open picker is a no-op that keeps the current search session.
func (p *Picker) Open(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state.Open {
		return false
	}
	p.state = State{Open: true, InstructionsVisible: true}
	p.session = p.search.NewSession(ctx, func(loc location.Location) { p.Select(loc) })
	p.view = mapview.New(p.reverser, p.region, func(loc location.Location) { p.Select(loc) })
	p.opened++
	gen := p.opened
	p.timer = time.AfterFunc(p.timeout, func() { p.expireInstructions(gen) })
	return true
}

func (p *Picker) DismissInstructions() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.InstructionsVisible = false
	p.stopTimerLocked()
}

// expireInstructions ignores timers left over from an earlier open.
func (p *Picker) expireInstructions(gen uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.opened || !p.state.Open {
		return
	}
	p.state.InstructionsVisible = false
	p.timer = nil
}

func (p *Picker) ToggleMap() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.state.Open {
		return false
	}
	p.state.ShowMap = !p.state.ShowMap
	return p.state.ShowMap
}

// Search is nil while the picker is closed.
func (p *Picker) Search() *search.Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session
}

// Map is nil while the picker is closed.
func (p *Picker) Map() *mapview.View {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.view
}

func (p *Picker) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Select forwards loc unchanged and closes the picker. Selections arriving
// after close are dropped.
func (p *Picker) Select(loc location.Location) bool {
	p.mu.Lock()
	if !p.state.Open {
		p.mu.Unlock()
		return false
	}
	cb := p.onSelect
	session := p.closeLocked()
	p.mu.Unlock()

	if session != nil {
		session.Close()
	}
	if cb != nil {
		cb(loc)
	}
	return true
}

func (p *Picker) Close() {
	p.mu.Lock()
	session := p.closeLocked()
	p.mu.Unlock()
	if session != nil {
		session.Close()
	}
}

func (p *Picker) closeLocked() *search.Session {
	p.stopTimerLocked()
	session := p.session
	p.session = nil
	p.view = nil
	p.state = State{}
	return session
}

func (p *Picker) stopTimerLocked() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}
