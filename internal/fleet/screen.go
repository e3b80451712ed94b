package fleet

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/JonMunkholm/fleetdesk/internal/backend"
	"github.com/JonMunkholm/fleetdesk/internal/table"
)

// ErrNoView is returned when a screen is built before its layout is attached.
var ErrNoView = errors.New("screen has no view")

// ErrNoRowID is returned by row actions on rows without an id.
var ErrNoRowID = errors.New("row has no id")

// ScreenInfo contains display information about a screen.
type ScreenInfo struct {
	Key      string           `json:"key"`      // Unique identifier: "buses"
	Group    string           `json:"group"`    // Menu section: "fleet", "operations"
	Label    string           `json:"label"`    // Display name: "Autobuses"
	Resource backend.Resource `json:"resource"` // Collection the rows come from
}

// FetchFunc loads and decorates the rows of a screen.
type FetchFunc func(ctx context.Context, c *backend.Client) ([]any, error)

// HandlersFunc returns the row action handlers of a screen, keyed by action name.
type HandlersFunc func(c *backend.Client) map[string]table.ActionHandler

// Screen contains everything needed to show one back-office table.
type Screen struct {
	Info  ScreenInfo
	View  *View
	Fetch FetchFunc

	// Optional behaviour bound onto the view's declarations.
	Handlers   HandlersFunc
	Disabled   map[string]table.RowPredicate
	Footer     table.FooterProvider
	RowClass   table.RowClassifier
	Selectable table.RowPredicate
}

// Build fetches the screen's rows and returns a fresh config over them.
func (s Screen) Build(ctx context.Context, c *backend.Client) (*table.Config, error) {
	if s.View == nil {
		return nil, fmt.Errorf("%s: %w", s.Info.Key, ErrNoView)
	}
	rows, err := s.Fetch(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", s.Info.Key, err)
	}
	var handlers map[string]table.ActionHandler
	if s.Handlers != nil {
		handlers = s.Handlers(c)
	}
	return s.Assemble(rows, handlers)
}

// Assemble binds rows and handlers to the screen's view. Actions without a
// handler stay visible but cannot be invoked.
func (s Screen) Assemble(rows []any, handlers map[string]table.ActionHandler) (*table.Config, error) {
	if s.View == nil {
		return nil, fmt.Errorf("%s: %w", s.Info.Key, ErrNoView)
	}
	cfg := s.View.config(rows)
	for i := range cfg.Actions {
		a := &cfg.Actions[i]
		a.Handler = handlers[a.Name]
		a.Disabled = s.Disabled[a.Name]
	}
	cfg.Footer = s.Footer
	cfg.RowClass = s.RowClass
	cfg.RowSelectable = s.Selectable
	return cfg, nil
}

// Defaults fills table settings a view leaves open.
type Defaults struct {
	RowsPerPage        int
	RowsPerPageOptions []int
	Locale             string
}

// Apply sets unset page sizes and column locales on cfg. It must run before
// cfg is handed to an engine.
func (d Defaults) Apply(cfg *table.Config) {
	if cfg.RowsPerPage == 0 && len(cfg.RowsPerPageOptions) == 0 {
		cfg.RowsPerPage = d.RowsPerPage
		cfg.RowsPerPageOptions = slices.Clone(d.RowsPerPageOptions)
	}
	if d.Locale == "" {
		return
	}
	var cols []table.Column
	for i, col := range cfg.Columns {
		if col.Locale != "" || (col.Type != table.TypeNumber && col.Type != table.TypeDate) {
			continue
		}
		if cols == nil {
			cols = slices.Clone(cfg.Columns)
		}
		cols[i].Locale = d.Locale
	}
	if cols != nil {
		cfg.Columns = cols
	}
}

// rowID returns the row's id as a string.
func rowID(row any) (string, error) {
	id := table.Stringify(table.Resolve(row, "id"))
	if id == "" {
		return "", ErrNoRowID
	}
	return id, nil
}

type decorator interface{ decorate() }

// listOf fetches a collection of T and decorates each item.
func listOf[T any, PT interface {
	*T
	decorator
}](res backend.Resource) FetchFunc {
	return func(ctx context.Context, c *backend.Client) ([]any, error) {
		items, err := backend.ListAs[T](ctx, c, res, nil)
		if err != nil {
			return nil, err
		}
		rows := make([]any, len(items))
		for i := range items {
			p := PT(&items[i])
			p.decorate()
			rows[i] = p
		}
		return rows, nil
	}
}
