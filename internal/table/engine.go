package table

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/JonMunkholm/fleetdesk/internal/dates"
)

// DefaultBreakpoint is the viewport width below which the mobile layout is used.
const DefaultBreakpoint = 1024

// DefaultRowsPerPage applies when a config sets neither RowsPerPage nor options.
const DefaultRowsPerPage = 10

// SortDir is a column sort direction. The zero value means unsorted.
type SortDir int

const (
	SortNone SortDir = 0
	SortAsc  SortDir = 1
	SortDesc SortDir = -1
)

func (d SortDir) String() string {
	switch d {
	case SortAsc:
		return "asc"
	case SortDesc:
		return "desc"
	default:
		return ""
	}
}

// SelectionListener is told about every selection change made by the user.
type SelectionListener interface {
	SelectionChanged(rows []any)
}

// SelectionFunc adapts a function to SelectionListener.
type SelectionFunc func(rows []any)

func (f SelectionFunc) SelectionChanged(rows []any) { f(rows) }

// RowClickListener is told about row clicks. index is the row's position in Config.Data.
type RowClickListener interface {
	RowClicked(row any, index int)
}

// RowClickFunc adapts a function to RowClickListener.
type RowClickFunc func(row any, index int)

func (f RowClickFunc) RowClicked(row any, index int) { f(row, index) }

// PermissionChecker decides whether a row action's permission is granted.
type PermissionChecker interface {
	Allowed(permission string) bool
}

// PermissionFunc adapts a function to PermissionChecker.
type PermissionFunc func(permission string) bool

func (f PermissionFunc) Allowed(permission string) bool { return f(permission) }

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithBreakpoint sets the mobile breakpoint in pixels.
func WithBreakpoint(px int) EngineOption {
	return func(e *Engine) {
		if px > 0 {
			e.breakpoint = px
		}
	}
}

// WithViewportWidth sets the initial viewport width.
func WithViewportWidth(px int) EngineOption {
	return func(e *Engine) {
		if px > 0 {
			e.width = px
		}
	}
}

// WithSelectionListener registers a selection listener.
func WithSelectionListener(l SelectionListener) EngineOption {
	return func(e *Engine) { e.onSelect = append(e.onSelect, l) }
}

// WithRowClickListener registers a row click listener.
func WithRowClickListener(l RowClickListener) EngineOption {
	return func(e *Engine) { e.onClick = append(e.onClick, l) }
}

// WithPermissions sets the checker consulted for actions that name a permission.
// Without one, every action is permitted.
func WithPermissions(p PermissionChecker) EngineOption {
	return func(e *Engine) { e.perms = p }
}

// Engine holds the view state of one mounted table. It is not safe for
// concurrent use; callers serialize access.
type Engine struct {
	cfg *Config

	breakpoint int
	width      int
	onSelect   []SelectionListener
	onClick    []RowClickListener
	perms      PermissionChecker

	globalText   string // as typed
	globalActive string // as applied
	filters      map[string]any
	pending      map[string]any

	sortField string
	sortDir   SortDir

	first       int
	rowsPerPage int

	selection []any
	selKeys   map[string]struct{}

	expanded int // index into cfg.Data, -1 when collapsed

	footer Footer

	dirty    bool
	filtered []int // indices into cfg.Data, filtered and sorted
}

// New validates cfg and returns an engine showing its first page.
func New(cfg *Config, opts ...EngineOption) (*Engine, error) {
	e := &Engine{
		breakpoint: DefaultBreakpoint,
		filters:    make(map[string]any),
		pending:    make(map[string]any),
		expanded:   -1,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.width == 0 {
		e.width = e.breakpoint
	}
	if err := e.ApplyConfig(cfg); err != nil {
		return nil, err
	}
	return e, nil
}

// Config returns the applied config.
func (e *Engine) Config() *Config { return e.cfg }

// ApplyConfig swaps in a new config. Applying the config that is already
// applied does nothing. A new config clears the global and column filters.
// Selection survives by DataKey, or by reference when no key is set; rows that
// disappeared are dropped without notifying listeners.
// An invalid config is rejected and the previous one stays applied.
func (e *Engine) ApplyConfig(cfg *Config) error {
	if cfg == nil {
		return ErrNilConfig
	}
	if cfg == e.cfg {
		return nil
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	first := e.cfg == nil
	e.cfg = cfg

	e.rowsPerPage = e.pickRowsPerPage(first)

	// A new config starts unfiltered.
	clear(e.filters)
	clear(e.pending)
	e.globalText, e.globalActive = "", ""

	if e.sortField != "" {
		if col, ok := cfg.Column(e.sortField); !ok || !col.Sortable {
			e.sortField, e.sortDir = "", SortNone
		}
	}

	e.reconcileSelection()
	e.expanded = -1
	e.footer = Footer{}
	if cfg.Footer != nil {
		e.footer = cfg.Footer.Footer(nonNil(cfg.Data))
	}

	e.dirty = true
	e.refresh()
	return nil
}

// pickRowsPerPage keeps the current page size when the new config still allows it.
func (e *Engine) pickRowsPerPage(first bool) int {
	cfg := e.cfg
	if !first && e.rowsPerPage > 0 && (len(cfg.RowsPerPageOptions) == 0 || slices.Contains(cfg.RowsPerPageOptions, e.rowsPerPage)) {
		return e.rowsPerPage
	}
	if cfg.RowsPerPage > 0 {
		return cfg.RowsPerPage
	}
	if len(cfg.RowsPerPageOptions) > 0 {
		return cfg.RowsPerPageOptions[0]
	}
	return DefaultRowsPerPage
}

// ----------------------------------------------------------------------------
// Filtering
// ----------------------------------------------------------------------------

// SetGlobalFilter records the global search text. With manual filtering the
// text is held until ApplyFilters.
func (e *Engine) SetGlobalFilter(text string) error {
	if !e.cfg.GlobalFilter {
		return ErrFilteringDisabled
	}
	e.globalText = text
	if !e.cfg.ManualFiltering && e.globalActive != text {
		e.globalActive = text
		e.filtersChanged()
	}
	return nil
}

// GlobalFilter returns the typed and the applied global search text.
func (e *Engine) GlobalFilter() (typed, applied string) {
	return e.globalText, e.globalActive
}

// ApplyFilters commits the typed global search text.
func (e *Engine) ApplyFilters() {
	if e.globalActive != e.globalText {
		e.globalActive = e.globalText
		e.filtersChanged()
	}
}

// SetColumnFilter sets or, for an empty value, removes a column filter.
// A date range with a single endpoint is held pending and the previously
// committed filter stays in force.
func (e *Engine) SetColumnFilter(field string, value any) error {
	if !e.cfg.ColumnFilters {
		return ErrFilteringDisabled
	}
	col, ok := e.cfg.Column(field)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownColumn, field)
	}
	ft := col.effectiveFilterType()
	if ft == FilterNone || col.IsAction {
		return fmt.Errorf("%w: %s", ErrNotFilterable, field)
	}

	if isEmptyFilter(value) {
		_, had := e.filters[field]
		delete(e.filters, field)
		delete(e.pending, field)
		if had {
			e.filtersChanged()
		}
		return nil
	}

	if ft == FilterDate {
		if _, _, isRange := rangeBounds(value); isRange && !rangeComplete(value) {
			e.pending[field] = value
			return nil
		}
	}

	delete(e.pending, field)
	e.filters[field] = value
	e.filtersChanged()
	return nil
}

// ClearFilters removes the global filter and every column filter.
func (e *Engine) ClearFilters() {
	e.globalText, e.globalActive = "", ""
	clear(e.filters)
	clear(e.pending)
	e.filtersChanged()
}

// Filters returns the committed column filters merged with pending ranges.
func (e *Engine) Filters() map[string]any {
	out := make(map[string]any, len(e.filters)+len(e.pending))
	for k, v := range e.filters {
		out[k] = v
	}
	for k, v := range e.pending {
		out[k] = v
	}
	return out
}

func (e *Engine) filtersChanged() {
	e.first = 0
	e.expanded = -1
	e.dirty = true
}

// ----------------------------------------------------------------------------
// Sorting
// ----------------------------------------------------------------------------

// Sort cycles the sort of a sortable column: ascending, descending, unsorted.
// Sorting a different column starts again at ascending.
func (e *Engine) Sort(field string) error {
	col, ok := e.cfg.Column(field)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownColumn, field)
	}
	if !col.Sortable {
		return fmt.Errorf("%w: %s", ErrNotSortable, field)
	}

	switch {
	case e.sortField != field:
		e.sortField, e.sortDir = field, SortAsc
	case e.sortDir == SortAsc:
		e.sortDir = SortDesc
	default:
		e.sortField, e.sortDir = "", SortNone
	}
	e.expanded = -1
	e.dirty = true
	return nil
}

// SortState returns the sorted field and direction.
func (e *Engine) SortState() (string, SortDir) {
	return e.sortField, e.sortDir
}

// compareRows orders two rows by col. Missing values sort first.
func compareRows(col Column, a, b any) int {
	va, vb := Resolve(a, col.Field), Resolve(b, col.Field)
	switch {
	case va == nil && vb == nil:
		return 0
	case va == nil:
		return -1
	case vb == nil:
		return 1
	}

	switch col.Type {
	case TypeDate:
		ta, okA := dates.Parse(va)
		tb, okB := dates.Parse(vb)
		if okA && okB {
			return ta.Compare(tb)
		}
	case TypeNumber:
		na, okA := ToNumber(va)
		nb, okB := ToNumber(vb)
		if okA && okB {
			return cmp.Compare(na, nb)
		}
	}

	if isNumeric(va) && isNumeric(vb) {
		na, _ := ToNumber(va)
		nb, _ := ToNumber(vb)
		return cmp.Compare(na, nb)
	}
	if ta, ok := va.(time.Time); ok {
		if tb, ok := vb.(time.Time); ok {
			return ta.Compare(tb)
		}
	}
	if ba, ok := va.(bool); ok {
		if bb, ok := vb.(bool); ok {
			switch {
			case ba == bb:
				return 0
			case !ba:
				return -1
			default:
				return 1
			}
		}
	}
	return strings.Compare(strings.ToLower(Stringify(va)), strings.ToLower(Stringify(vb)))
}

// ----------------------------------------------------------------------------
// Derived rows
// ----------------------------------------------------------------------------

// refresh recomputes the filtered and sorted index list when stale and
// clamps the page offset to it.
func (e *Engine) refresh() {
	if !e.dirty {
		return
	}
	e.dirty = false

	cfg := e.cfg
	fields := cfg.globalFields()

	out := e.filtered[:0]
	for i, row := range cfg.Data {
		if isNilRow(row) {
			continue
		}
		if cfg.GlobalFilter && !cfg.matchesGlobal(row, fields, e.globalActive) {
			continue
		}
		if !e.matchesColumns(row) {
			continue
		}
		out = append(out, i)
	}

	if e.sortField != "" && e.sortDir != SortNone {
		col, _ := cfg.Column(e.sortField)
		dir := int(e.sortDir)
		slices.SortStableFunc(out, func(a, b int) int {
			return dir * compareRows(col, cfg.Data[a], cfg.Data[b])
		})
	}
	e.filtered = out
	e.clampPage()
}

func (e *Engine) matchesColumns(row any) bool {
	for field, value := range e.filters {
		col, ok := e.cfg.Column(field)
		if !ok {
			continue
		}
		if !matchesColumn(col, row, value) {
			return false
		}
	}
	return true
}

// Filtered returns every row that passes the filters, in sort order.
func (e *Engine) Filtered() []any {
	e.refresh()
	out := make([]any, len(e.filtered))
	for i, idx := range e.filtered {
		out[i] = e.cfg.Data[idx]
	}
	return out
}

// TotalRecords is the number of filtered rows.
func (e *Engine) TotalRecords() int {
	e.refresh()
	return len(e.filtered)
}

// ----------------------------------------------------------------------------
// Pagination
// ----------------------------------------------------------------------------

// SetPage moves to the page containing the row offset first.
func (e *Engine) SetPage(first int) {
	e.refresh()
	if first < 0 {
		first = 0
	}
	first -= first % e.rowsPerPage
	if first != e.first {
		e.expanded = -1
	}
	e.first = first
	e.clampPage()
}

// SetRowsPerPage changes the page size. When the config lists options, n must
// be one of them. The current first row stays on screen.
func (e *Engine) SetRowsPerPage(n int) error {
	if n <= 0 || (len(e.cfg.RowsPerPageOptions) > 0 && !slices.Contains(e.cfg.RowsPerPageOptions, n)) {
		return fmt.Errorf("%w: %d", ErrInvalidRowsPerPage, n)
	}
	e.rowsPerPage = n
	e.SetPage(e.first)
	return nil
}

// Paging returns the page offset and size.
func (e *Engine) Paging() (first, rows int) {
	e.refresh()
	return e.first, e.rowsPerPage
}

func (e *Engine) clampPage() {
	total := len(e.filtered)
	if e.first >= total {
		if total == 0 {
			e.first = 0
		} else {
			e.first = ((total - 1) / e.rowsPerPage) * e.rowsPerPage
		}
	}
}

// pageIndices returns the Config.Data indices shown on the current page.
func (e *Engine) pageIndices() []int {
	e.refresh()
	end := min(e.first+e.rowsPerPage, len(e.filtered))
	if e.first >= end {
		return nil
	}
	return e.filtered[e.first:end]
}

// visibleRow maps a page position to its Config.Data index and row.
func (e *Engine) visibleRow(i int) (int, any, error) {
	page := e.pageIndices()
	if i < 0 || i >= len(page) {
		return -1, nil, fmt.Errorf("%w: %d", ErrRowOutOfRange, i)
	}
	idx := page[i]
	return idx, e.cfg.Data[idx], nil
}

// Visible returns the rows on the current page.
func (e *Engine) Visible() []any {
	page := e.pageIndices()
	out := make([]any, len(page))
	for i, idx := range page {
		out[i] = e.cfg.Data[idx]
	}
	return out
}

// ----------------------------------------------------------------------------
// Viewport and row interaction
// ----------------------------------------------------------------------------

// SetViewportWidth records the viewport width. Leaving the mobile layout
// collapses any expanded row.
func (e *Engine) SetViewportWidth(px int) {
	if px <= 0 {
		return
	}
	e.width = px
	if !e.Mobile() {
		e.expanded = -1
	}
}

// Mobile reports whether the condensed layout is active.
func (e *Engine) Mobile() bool {
	return e.width < e.breakpoint
}

// ToggleExpanded expands the visible row i and collapses any other, or
// collapses row i when it is already expanded.
func (e *Engine) ToggleExpanded(i int) error {
	if !e.Mobile() {
		return ErrNotMobile
	}
	idx, _, err := e.visibleRow(i)
	if err != nil {
		return err
	}
	if e.expanded == idx {
		e.expanded = -1
	} else {
		e.expanded = idx
	}
	return nil
}

// Expanded returns the page position of the expanded row, or -1.
func (e *Engine) Expanded() int {
	if e.expanded < 0 {
		return -1
	}
	for i, idx := range e.pageIndices() {
		if idx == e.expanded {
			return i
		}
	}
	return -1
}

// TapRow handles a tap on the visible row i, on the cell of field ("" for the
// row body). On mobile a tap toggles expansion unless it lands on a clickable
// cell, which fires a row click instead. On desktop every tap is a row click.
func (e *Engine) TapRow(i int, field string) error {
	idx, row, err := e.visibleRow(i)
	if err != nil {
		return err
	}
	if !e.Mobile() {
		e.fireClick(row, idx)
		return nil
	}
	if col, ok := e.cfg.Column(field); ok && col.Clickable {
		e.fireClick(row, idx)
		return nil
	}
	return e.ToggleExpanded(i)
}

// ClickRow is a tap on the row body.
func (e *Engine) ClickRow(i int) error {
	return e.TapRow(i, "")
}

func (e *Engine) fireClick(row any, idx int) {
	for _, l := range e.onClick {
		l.RowClicked(row, idx)
	}
}

// ----------------------------------------------------------------------------
// Actions and export
// ----------------------------------------------------------------------------

// permitted reports whether the action may be shown and run.
func (e *Engine) permitted(a RowAction) bool {
	return a.Permission == "" || e.perms == nil || e.perms.Allowed(a.Permission)
}

// InvokeAction runs the named action on the visible row i.
func (e *Engine) InvokeAction(ctx context.Context, name string, i int) error {
	action, ok := e.cfg.Action(name)
	if !ok || action.Handler == nil {
		return fmt.Errorf("%w: %s", ErrActionNotFound, name)
	}
	if !e.permitted(action) {
		return fmt.Errorf("%w: %s", ErrActionForbidden, name)
	}
	idx, row, err := e.visibleRow(i)
	if err != nil {
		return err
	}
	if action.Disabled != nil && action.Disabled.Test(row) {
		return fmt.Errorf("%w: %s", ErrActionDisabled, name)
	}
	if err := action.Handler.Handle(ctx, row, idx); err != nil {
		return fmt.Errorf("action %s: %w", name, err)
	}
	return nil
}

// Export hands every filtered row, across all pages, to the config's exporter.
func (e *Engine) Export(ctx context.Context) error {
	if e.cfg.Exporter == nil {
		return ErrNoExporter
	}
	return e.cfg.Exporter.Export(ctx, e.Filtered())
}

// ExportTo runs exp over the filtered rows regardless of the config's exporter.
func (e *Engine) ExportTo(ctx context.Context, exp Exporter) error {
	return exp.Export(ctx, e.Filtered())
}

// FooterRow returns the summary row computed for the applied config.
func (e *Engine) FooterRow() Footer { return e.footer }

func nonNil(rows []any) []any {
	out := make([]any, 0, len(rows))
	for _, r := range rows {
		if !isNilRow(r) {
			out = append(out, r)
		}
	}
	return out
}
