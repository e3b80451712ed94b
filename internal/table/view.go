package table

import (
	"strconv"
	"strings"
)

// ColumnView is a column header as rendered.
type ColumnView struct {
	Field      string     `json:"field"`
	Header     string     `json:"header"`
	Type       ColumnType `json:"type"`
	FilterType FilterType `json:"filterType"`
	Sortable   bool       `json:"sortable"`
	SortDir    string     `json:"sortDir,omitempty"`
	Width      string     `json:"width,omitempty"`
	MinWidth   string     `json:"minWidth,omitempty"`
	MaxWidth   string     `json:"maxWidth,omitempty"`
	Align      string     `json:"align,omitempty"`
	CSSClass   string     `json:"cssClass,omitempty"`
	IsAction   bool       `json:"isAction,omitempty"`
	Options    []Option   `json:"options,omitempty"`
}

// CellView is one formatted cell.
type CellView struct {
	Field     string `json:"field"`
	Header    string `json:"header,omitempty"`
	Value     string `json:"value"`
	Clickable bool   `json:"clickable,omitempty"`
}

// ActionView is a row action button.
type ActionView struct {
	Name     string `json:"name"`
	Icon     string `json:"icon"`
	Label    string `json:"label,omitempty"`
	Severity string `json:"severity,omitempty"`
	Tooltip  string `json:"tooltip,omitempty"`
	Disabled bool   `json:"disabled"`
}

// RowView is one rendered row. Index is its position on the page.
type RowView struct {
	Index      int          `json:"index"`
	Key        string       `json:"key,omitempty"`
	Cells      []CellView   `json:"cells"`
	Detail     []CellView   `json:"detail,omitempty"`
	Class      string       `json:"class,omitempty"`
	Selected   bool         `json:"selected"`
	Selectable bool         `json:"selectable"`
	Expanded   bool         `json:"expanded,omitempty"`
	Actions    []ActionView `json:"actions,omitempty"`
}

// PageView is the render model of the current page.
type PageView struct {
	Columns       []ColumnView `json:"columns"`
	DetailColumns []ColumnView `json:"detailColumns,omitempty"`
	Rows          []RowView    `json:"rows"`
	Mobile        bool         `json:"mobile"`

	First              int    `json:"first"`
	RowsPerPage        int    `json:"rowsPerPage"`
	RowsPerPageOptions []int  `json:"rowsPerPageOptions,omitempty"`
	TotalRecords       int    `json:"totalRecords"`
	CurrentPage        int    `json:"currentPage"`
	TotalPages         int    `json:"totalPages"`
	Report             string `json:"report"`

	GlobalFilter  bool           `json:"globalFilter"`
	ColumnFilters bool           `json:"columnFilters"`
	SearchText    string         `json:"searchText,omitempty"`
	Filters       map[string]any `json:"filters,omitempty"`
	SortField     string         `json:"sortField,omitempty"`
	SortDir       string         `json:"sortDir,omitempty"`

	Selection     bool `json:"selection"`
	SelectedCount int  `json:"selectedCount"`
	AllSelected   bool `json:"allSelected"`
	Indeterminate bool `json:"indeterminate"`

	Footer *Footer `json:"footer,omitempty"`
}

// Page renders the current page.
func (e *Engine) Page() PageView {
	cfg := e.cfg
	mobile := e.Mobile()

	var inline, detail []Column
	for _, col := range cfg.Columns {
		switch {
		case !mobile && col.MobileOnly:
		case mobile && !col.IsMobileVisible():
			detail = append(detail, col)
		default:
			inline = append(inline, col)
		}
	}

	first, rows := e.Paging()
	total := e.TotalRecords()

	pv := PageView{
		Columns:            e.columnViews(inline),
		DetailColumns:      e.columnViews(detail),
		Mobile:             mobile,
		First:              first,
		RowsPerPage:        rows,
		RowsPerPageOptions: cfg.RowsPerPageOptions,
		TotalRecords:       total,
		GlobalFilter:       cfg.GlobalFilter,
		ColumnFilters:      cfg.ColumnFilters,
		SearchText:         e.globalText,
		Filters:            e.Filters(),
		SortField:          e.sortField,
		SortDir:            e.sortDir.String(),
		Selection:          cfg.Selection,
		SelectedCount:      len(e.selection),
		AllSelected:        e.AllVisibleSelected(),
		Indeterminate:      e.Indeterminate(),
	}
	pv.CurrentPage, pv.TotalPages = pageNumbers(first, rows, total)
	pv.Report = e.pageReport(first, rows, total, pv.CurrentPage, pv.TotalPages)

	page := e.pageIndices()
	pv.Rows = make([]RowView, 0, len(page))
	for i, idx := range page {
		row := cfg.Data[idx]
		rv := RowView{
			Index:      i,
			Cells:      cellViews(inline, row),
			Selected:   e.IsSelected(row),
			Selectable: cfg.Selection && e.selectable(row),
			Expanded:   mobile && idx == e.expanded,
			Actions:    e.actionViews(row),
		}
		if cfg.DataKey != "" {
			rv.Key, _ = keyOf(row, cfg.DataKey)
		}
		if mobile {
			rv.Detail = cellViews(detail, row)
		}
		if cfg.RowClass != nil {
			rv.Class = cfg.RowClass.RowClass(row)
		}
		pv.Rows = append(pv.Rows, rv)
	}

	if len(e.footer.Cells) > 0 && len(nonNil(cfg.Data)) > 0 {
		f := e.footer
		pv.Footer = &f
	}
	return pv
}

func (e *Engine) columnViews(cols []Column) []ColumnView {
	out := make([]ColumnView, 0, len(cols))
	for _, col := range cols {
		cv := ColumnView{
			Field:    col.Field,
			Header:   col.Header,
			Type:     col.Type,
			Sortable: col.Sortable,
			Width:    col.Width,
			MinWidth: col.MinWidth,
			MaxWidth: col.MaxWidth,
			Align:    col.Align,
			CSSClass: col.CSSClass,
			IsAction: col.IsAction,
			Options:  col.Options,
		}
		if e.cfg.ColumnFilters && !col.IsAction {
			cv.FilterType = col.effectiveFilterType()
		} else {
			cv.FilterType = FilterNone
		}
		if col.Field == e.sortField {
			cv.SortDir = e.sortDir.String()
		}
		out = append(out, cv)
	}
	return out
}

func cellViews(cols []Column, row any) []CellView {
	out := make([]CellView, 0, len(cols))
	for _, col := range cols {
		cv := CellView{Field: col.Field, Header: col.Header, Clickable: col.Clickable}
		if !col.IsAction {
			cv.Value = CellValue(col, row)
		}
		out = append(out, cv)
	}
	return out
}

func (e *Engine) actionViews(row any) []ActionView {
	var out []ActionView
	for _, a := range e.cfg.Actions {
		if !e.permitted(a) {
			continue
		}
		out = append(out, ActionView{
			Name:     a.Name,
			Icon:     a.Icon,
			Label:    a.Label,
			Severity: a.Severity,
			Tooltip:  a.Tooltip,
			Disabled: a.Disabled != nil && a.Disabled.Test(row),
		})
	}
	return out
}

func pageNumbers(first, rows, total int) (current, pages int) {
	if total == 0 {
		return 0, 0
	}
	return first/rows + 1, (total + rows - 1) / rows
}

// pageReport fills the report template. {first} and {last} are 1-based and
// both 0 when there are no rows.
func (e *Engine) pageReport(first, rows, total, current, pages int) string {
	tmpl := e.cfg.PageReportTemplate
	if tmpl == "" {
		tmpl = DefaultPageReport
	}
	from, to := 0, 0
	if total > 0 {
		from = first + 1
		to = min(first+rows, total)
	}
	return strings.NewReplacer(
		"{first}", strconv.Itoa(from),
		"{last}", strconv.Itoa(to),
		"{totalRecords}", strconv.Itoa(total),
		"{currentPage}", strconv.Itoa(current),
		"{totalPages}", strconv.Itoa(pages),
		"{rows}", strconv.Itoa(rows),
	).Replace(tmpl)
}
