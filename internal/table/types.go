// Package table is a configurable, filterable, sortable, paginated, selectable
// table engine over an arbitrary row collection.
//
// A host builds a *Config from its rows and hands it to an Engine. The engine
// owns all view state (filters, sort, page, selection, mobile expansion) and
// re-derives it whenever a new config is applied. Hosts must treat an applied
// config as immutable and build a fresh one on every data change.
package table

import (
	"context"
	"io"
)

// ColumnType controls how a cell value is formatted.
type ColumnType string

const (
	TypeText     ColumnType = "text"
	TypeNumber   ColumnType = "number"
	TypeDate     ColumnType = "date"
	TypeBoolean  ColumnType = "boolean"
	TypeDropdown ColumnType = "dropdown"
	TypeCustom   ColumnType = "custom"
)

// FilterType selects the column filter predicate.
type FilterType string

const (
	FilterText     FilterType = "text"
	FilterNumber   FilterType = "number"
	FilterDate     FilterType = "date"
	FilterDropdown FilterType = "dropdown"
	FilterNone     FilterType = "none"
)

// Placeholder is rendered for missing or unreadable cell values.
const Placeholder = "-"

// DefaultLocale is used for number and date formatting when a column sets none.
const DefaultLocale = "es-ES"

// DefaultPageReport is the current-page report template.
const DefaultPageReport = "Mostrando {first} a {last} de {totalRecords}"

// Option is one value/label pair of a dropdown column.
type Option struct {
	Label string `json:"label" yaml:"label" validate:"required"`
	Value any    `json:"value" yaml:"value"`
}

// LabelResolver maps a raw dropdown value to its display label.
// The bool result reports whether the value is known.
type LabelResolver interface {
	Label(value any) (string, bool)
}

// LabelFunc adapts a function to LabelResolver.
type LabelFunc func(value any) (string, bool)

func (f LabelFunc) Label(value any) (string, bool) { return f(value) }

// Column describes one table column.
type Column struct {
	Field         string     `json:"field" yaml:"field" validate:"required_without=IsAction"`
	Header        string     `json:"header" yaml:"header"`
	Type          ColumnType `json:"type,omitempty" yaml:"type" validate:"omitempty,oneof=text number date boolean dropdown custom"`
	FilterType    FilterType `json:"filterType,omitempty" yaml:"filterType" validate:"omitempty,oneof=text number date dropdown none"`
	Width         string     `json:"width,omitempty" yaml:"width"`
	MinWidth      string     `json:"minWidth,omitempty" yaml:"minWidth"`
	MaxWidth      string     `json:"maxWidth,omitempty" yaml:"maxWidth"`
	Sortable      bool       `json:"sortable,omitempty" yaml:"sortable"`
	MobileVisible *bool      `json:"mobileVisible,omitempty" yaml:"mobileVisible"`
	MobileOnly    bool       `json:"mobileOnly,omitempty" yaml:"mobileOnly"`
	Align         string     `json:"align,omitempty" yaml:"align" validate:"omitempty,oneof=left center right"`
	NumberFormat  string     `json:"numberFormat,omitempty" yaml:"numberFormat"`
	Locale        string     `json:"locale,omitempty" yaml:"locale" validate:"omitempty,bcp47_language_tag"`
	DateFormat    string     `json:"dateFormat,omitempty" yaml:"dateFormat"`
	Options       []Option   `json:"options,omitempty" yaml:"options" validate:"dive"`
	IsAction      bool       `json:"isAction,omitempty" yaml:"isAction"`
	CSSClass      string     `json:"cssClass,omitempty" yaml:"cssClass"`
	GlobalFilter  *bool      `json:"globalFilter,omitempty" yaml:"globalFilter"`
	Clickable     bool       `json:"clickable,omitempty" yaml:"clickable"`

	// Labels overrides Options when set.
	Labels LabelResolver `json:"-" yaml:"-"`
}

// IsMobileVisible reports whether the column is shown inline on mobile.
func (c Column) IsMobileVisible() bool {
	return c.MobileVisible == nil || *c.MobileVisible
}

// InGlobalFilter reports whether the column takes part in the global filter
// when the config lists no explicit fields.
func (c Column) InGlobalFilter() bool {
	if c.Type == TypeCustom || c.IsAction {
		return false
	}
	return c.GlobalFilter == nil || *c.GlobalFilter
}

// effectiveFilterType falls back to a filter matching the column type.
func (c Column) effectiveFilterType() FilterType {
	if c.FilterType != "" {
		return c.FilterType
	}
	switch c.Type {
	case TypeNumber:
		return FilterNumber
	case TypeDate:
		return FilterDate
	case TypeDropdown:
		return FilterDropdown
	case TypeCustom:
		return FilterNone
	default:
		return FilterText
	}
}

// RowPredicate answers a yes/no question about a row.
type RowPredicate interface {
	Test(row any) bool
}

// RowPredicateFunc adapts a function to RowPredicate.
type RowPredicateFunc func(row any) bool

func (f RowPredicateFunc) Test(row any) bool { return f(row) }

// ActionHandler runs a row action. index is the row's position in Config.Data.
type ActionHandler interface {
	Handle(ctx context.Context, row any, index int) error
}

// ActionFunc adapts a function to ActionHandler.
type ActionFunc func(ctx context.Context, row any, index int) error

func (f ActionFunc) Handle(ctx context.Context, row any, index int) error { return f(ctx, row, index) }

// RowAction is a per-row button.
type RowAction struct {
	Name       string `json:"name" yaml:"name" validate:"required"`
	Icon       string `json:"icon" yaml:"icon"`
	Label      string `json:"label,omitempty" yaml:"label"`
	Severity   string `json:"severity,omitempty" yaml:"severity" validate:"omitempty,oneof=primary secondary success info warning danger help contrast"`
	Tooltip    string `json:"tooltip,omitempty" yaml:"tooltip"`
	Permission string `json:"permission,omitempty" yaml:"permission"`

	Disabled RowPredicate  `json:"-" yaml:"-"`
	Handler  ActionHandler `json:"-" yaml:"-"`
}

// RowClassifier returns extra CSS classes for a row.
type RowClassifier interface {
	RowClass(row any) string
}

// RowClassFunc adapts a function to RowClassifier.
type RowClassFunc func(row any) string

func (f RowClassFunc) RowClass(row any) string { return f(row) }

// FooterCell is one cell of the summary row.
type FooterCell struct {
	Value    string `json:"value"`
	ColSpan  int    `json:"colSpan,omitempty"`
	Align    string `json:"align,omitempty"`
	CSSClass string `json:"cssClass,omitempty"`
}

// Footer is the summary row returned by a FooterProvider.
type Footer struct {
	Cells []FooterCell `json:"cells"`
}

// FooterProvider computes the summary row from the config's rows.
type FooterProvider interface {
	Footer(rows []any) Footer
}

// FooterFunc adapts a function to FooterProvider.
type FooterFunc func(rows []any) Footer

func (f FooterFunc) Footer(rows []any) Footer { return f(rows) }

// Exporter receives the filtered row set on export.
type Exporter interface {
	Export(ctx context.Context, rows []any) error
}

// ExportFunc adapts a function to Exporter.
type ExportFunc func(ctx context.Context, rows []any) error

func (f ExportFunc) Export(ctx context.Context, rows []any) error { return f(ctx, rows) }

// CSVExporter writes the filtered rows as CSV using the config's columns.
type CSVExporter struct {
	W       io.Writer
	Columns []Column
}

func (e CSVExporter) Export(_ context.Context, rows []any) error {
	return WriteCSV(e.W, e.Columns, rows)
}

// Config is the entire input contract of an Engine.
type Config struct {
	Columns []Column    `json:"columns" validate:"required,min=1,dive"`
	Actions []RowAction `json:"actions,omitempty" validate:"dive"`

	// Data may contain nil entries; they are never rendered or selected.
	Data []any `json:"-"`

	RowsPerPage        int   `json:"rowsPerPage" validate:"gte=0"`
	RowsPerPageOptions []int `json:"rowsPerPageOptions,omitempty" validate:"dive,gt=0"`

	GlobalFilter       bool     `json:"globalFilter"`
	ColumnFilters      bool     `json:"columnFilters"`
	GlobalFilterFields []string `json:"globalFilterFields,omitempty"`
	ManualFiltering    bool     `json:"manualFiltering"`

	Selection bool   `json:"selection"`
	DataKey   string `json:"dataKey,omitempty"`

	PageReportTemplate string `json:"pageReportTemplate,omitempty"`

	Footer        FooterProvider `json:"-"`
	RowSelectable RowPredicate   `json:"-"`
	RowClass      RowClassifier  `json:"-"`
	Exporter      Exporter       `json:"-"`
}

// Column returns the column for field.
func (c *Config) Column(field string) (Column, bool) {
	for _, col := range c.Columns {
		if col.Field == field && field != "" {
			return col, true
		}
	}
	return Column{}, false
}

// Action returns the row action with the given name.
func (c *Config) Action(name string) (RowAction, bool) {
	for _, a := range c.Actions {
		if a.Name == name {
			return a, true
		}
	}
	return RowAction{}, false
}

// globalFields returns the fields searched by the global filter.
func (c *Config) globalFields() []string {
	if len(c.GlobalFilterFields) > 0 {
		return c.GlobalFilterFields
	}
	var fields []string
	for _, col := range c.Columns {
		if col.Field != "" && col.InGlobalFilter() {
			fields = append(fields, col.Field)
		}
	}
	return fields
}
