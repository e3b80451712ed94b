package web

// views.go holds the table views mounted by browsers.
//
// A view is one engine over one screen. Views are ephemeral: they live in
// memory and are swept once idle for longer than the configured TTL. Each
// view serializes access to its engine with its own mutex.

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/fleetdesk/internal/fleet"
	"github.com/JonMunkholm/fleetdesk/internal/table"
)

// Event types reported by a view.
const (
	EventSelection = "selection"
	EventRowClick  = "rowClick"
)

// ViewEvent is a table event the browser has not seen yet.
type ViewEvent struct {
	Type  string `json:"type"`
	Rows  []any  `json:"rows,omitempty"`
	Row   any    `json:"row,omitempty"`
	Index int    `json:"index"`
}

type view struct {
	id     string
	screen fleet.Screen

	mu     sync.Mutex
	engine *table.Engine
	events []ViewEvent

	// lastUsed is guarded by the store's mutex.
	lastUsed time.Time

	closeOnce   sync.Once
	unsubscribe func()
}

func newView(screen fleet.Screen) *view {
	return &view{
		id:     uuid.NewString(),
		screen: screen,
	}
}

// listeners returns engine options that queue the view's events. They run
// while the caller holds v.mu.
func (v *view) listeners() []table.EngineOption {
	return []table.EngineOption{
		table.WithSelectionListener(table.SelectionFunc(func(rows []any) {
			v.events = append(v.events, ViewEvent{Type: EventSelection, Rows: rows, Index: -1})
		})),
		table.WithRowClickListener(table.RowClickFunc(func(row any, index int) {
			v.events = append(v.events, ViewEvent{Type: EventRowClick, Row: row, Index: index})
		})),
	}
}

// drain returns and clears the queued events. Callers hold v.mu.
func (v *view) drain() []ViewEvent {
	out := v.events
	v.events = nil
	if out == nil {
		out = []ViewEvent{}
	}
	return out
}

// apply hands a new config to the engine. A view whose mount failed has no
// engine and ignores it.
func (v *view) apply(cfg *table.Config) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.engine == nil {
		return nil
	}
	return v.engine.ApplyConfig(cfg)
}

func (v *view) close() {
	v.closeOnce.Do(func() {
		if v.unsubscribe != nil {
			v.unsubscribe()
		}
	})
}

// viewStore keeps the mounted views by id.
type viewStore struct {
	ttl time.Duration
	max int
	now func() time.Time

	mu    sync.Mutex
	views map[string]*view
}

func newViewStore(ttl time.Duration, max int) *viewStore {
	return &viewStore{
		ttl:   ttl,
		max:   max,
		now:   time.Now,
		views: make(map[string]*view),
	}
}

func (s *viewStore) add(v *view) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.max > 0 && len(s.views) >= s.max {
		return errTooManyViews
	}
	v.lastUsed = s.now()
	s.views[v.id] = v
	return nil
}

// get returns the view and marks it used.
func (s *viewStore) get(id string) (*view, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.views[id]
	if !ok {
		return nil, errViewNotFound
	}
	v.lastUsed = s.now()
	return v, nil
}

func (s *viewStore) remove(id string) bool {
	s.mu.Lock()
	v, ok := s.views[id]
	delete(s.views, id)
	s.mu.Unlock()
	if ok {
		v.close()
	}
	return ok
}

func (s *viewStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.views)
}

// sweep removes views idle for longer than the TTL and returns how many went.
func (s *viewStore) sweep() int {
	if s.ttl <= 0 {
		return 0
	}
	cutoff := s.now().Add(-s.ttl)

	s.mu.Lock()
	var expired []*view
	for id, v := range s.views {
		if v.lastUsed.Before(cutoff) {
			expired = append(expired, v)
			delete(s.views, id)
		}
	}
	s.mu.Unlock()

	for _, v := range expired {
		v.close()
	}
	return len(expired)
}

// closeAll removes every view.
func (s *viewStore) closeAll() {
	s.mu.Lock()
	views := s.views
	s.views = make(map[string]*view)
	s.mu.Unlock()
	for _, v := range views {
		v.close()
	}
}

// runSweeper sweeps idle views every interval until ctx is cancelled.
func (s *viewStore) runSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	slog.Info("view sweeper started", "ttl", s.ttl, "interval", interval)

	s.sweepOnce()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("view sweeper stopped")
			return
		case <-ticker.C:
			s.sweepOnce()
		}
	}
}

func (s *viewStore) sweepOnce() {
	if n := s.sweep(); n > 0 {
		slog.Info("swept idle views", "removed", n, "remaining", s.len())
	}
}
