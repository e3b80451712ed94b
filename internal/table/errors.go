package table

import "errors"

// Sentinel errors returned by Engine operations. Hosts match them with errors.Is.
var (
	ErrNilConfig          = errors.New("table: nil config")
	ErrUnknownColumn      = errors.New("table: unknown column")
	ErrNotFilterable      = errors.New("table: column is not filterable")
	ErrNotSortable        = errors.New("table: column is not sortable")
	ErrFilteringDisabled  = errors.New("table: filtering disabled")
	ErrSelectionDisabled  = errors.New("table: selection disabled")
	ErrRowNotSelectable   = errors.New("table: row is not selectable")
	ErrRowOutOfRange      = errors.New("table: row index out of range")
	ErrActionNotFound     = errors.New("table: unknown row action")
	ErrActionDisabled     = errors.New("table: row action disabled")
	ErrActionForbidden    = errors.New("table: row action not permitted")
	ErrInvalidRowsPerPage = errors.New("table: rows per page not allowed")
	ErrNoExporter         = errors.New("table: no exporter configured")
	ErrNotMobile          = errors.New("table: row expansion requires mobile layout")
)
