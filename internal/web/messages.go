package web

// # Error Codes Reference
//
// Every error answered by the API carries a code that users can quote to
// support staff. Codes are grouped by category:
//
// # View Errors (VIEW001-VIEW099)
//
//	VIEW001 - View not found: The table view expired or was closed
//	          Action: Reopen the screen
//	VIEW002 - Too many views: The server holds too many open tables
//	          Action: Close unused tabs and try again
//	VIEW003 - Unknown screen: The requested screen does not exist
//	          Action: Pick a screen from the menu
//	VIEW004 - Screen not configured: The screen has no column layout
//	          Action: Contact support
//
// # Table Errors (TBL001-TBL099)
//
//	TBL001 - Unknown column
//	TBL002 - Column cannot be filtered
//	TBL003 - Column cannot be sorted
//	TBL004 - Filtering is off for this table
//	TBL005 - Rows cannot be selected
//	TBL006 - Row is no longer on the page
//	TBL007 - Unknown action
//	TBL008 - Action not available for this row
//	TBL009 - Action not permitted
//	TBL010 - Page size not offered
//	TBL011 - Row details need the mobile layout
//	TBL012 - Row has no id
//
// # Fleet API Errors (API001-API099)
//
//	API001 - Not authorized by the fleet API
//	API002 - Record not found in the fleet API
//	API003 - Fleet API rejected the request
//	API004 - Fleet API unavailable
//	API005 - Fleet API timed out
//
// # Request Errors (REQ001-REQ099)
//
//	REQ001 - Malformed request body
//	REQ002 - Malformed row index
//
// # Rate Limiting (RATE001)
//
//	RATE001 - Too many requests
//
// # Default Error (ERR000)
//
// Fallback when nothing matches.
//
// # Matching
//
// Sentinel targets are matched with errors.Is first. Patterns are then matched
// case-insensitively with strings.Contains. The first match wins.

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/JonMunkholm/fleetdesk/internal/backend"
	"github.com/JonMunkholm/fleetdesk/internal/fleet"
	"github.com/JonMunkholm/fleetdesk/internal/table"
)

var (
	errViewNotFound  = errors.New("view not found")
	errTooManyViews  = errors.New("too many views")
	errUnknownScreen = errors.New("unknown screen")
	errBadRequest    = errors.New("invalid request body")
	errBadRowIndex   = errors.New("invalid row index")
	errRateLimited   = errors.New("rate limit exceeded")
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorPattern struct {
	target  error
	pattern string
	status  int
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// Views
	{target: errViewNotFound, status: http.StatusNotFound,
		msg: UserMessage{"La tabla ya no está abierta", "Vuelva a abrir la pantalla", "VIEW001"}},
	{target: errTooManyViews, status: http.StatusServiceUnavailable,
		msg: UserMessage{"Hay demasiadas tablas abiertas", "Cierre pestañas sin uso e inténtelo de nuevo", "VIEW002"}},
	{target: errUnknownScreen, status: http.StatusNotFound,
		msg: UserMessage{"La pantalla no existe", "Elija una pantalla del menú", "VIEW003"}},
	{target: fleet.ErrNoView, status: http.StatusInternalServerError,
		msg: UserMessage{"La pantalla no está configurada", "Contacte con soporte", "VIEW004"}},

	// Table engine
	{target: table.ErrUnknownColumn, status: http.StatusBadRequest,
		msg: UserMessage{"La columna no existe", "Recargue la pantalla", "TBL001"}},
	{target: table.ErrNotFilterable, status: http.StatusBadRequest,
		msg: UserMessage{"La columna no admite filtros", "Filtre por otra columna", "TBL002"}},
	{target: table.ErrNotSortable, status: http.StatusBadRequest,
		msg: UserMessage{"La columna no admite ordenación", "Ordene por otra columna", "TBL003"}},
	{target: table.ErrFilteringDisabled, status: http.StatusBadRequest,
		msg: UserMessage{"Esta tabla no admite filtros", "", "TBL004"}},
	{target: table.ErrSelectionDisabled, status: http.StatusBadRequest,
		msg: UserMessage{"Esta tabla no admite selección", "", "TBL005"}},
	{target: table.ErrRowNotSelectable, status: http.StatusConflict,
		msg: UserMessage{"La fila no se puede seleccionar", "", "TBL005"}},
	{target: table.ErrRowOutOfRange, status: http.StatusNotFound,
		msg: UserMessage{"La fila ya no está en la página", "Recargue la tabla", "TBL006"}},
	{target: table.ErrActionNotFound, status: http.StatusNotFound,
		msg: UserMessage{"La acción no existe", "Recargue la pantalla", "TBL007"}},
	{target: table.ErrActionDisabled, status: http.StatusConflict,
		msg: UserMessage{"La acción no está disponible para esta fila", "", "TBL008"}},
	{target: table.ErrActionForbidden, status: http.StatusForbidden,
		msg: UserMessage{"No tiene permiso para esta acción", "Solicite acceso a un administrador", "TBL009"}},
	{target: table.ErrInvalidRowsPerPage, status: http.StatusBadRequest,
		msg: UserMessage{"Tamaño de página no permitido", "Elija un tamaño de la lista", "TBL010"}},
	{target: table.ErrNotMobile, status: http.StatusConflict,
		msg: UserMessage{"El detalle de fila solo existe en la vista móvil", "", "TBL011"}},
	{target: fleet.ErrNoRowID, status: http.StatusUnprocessableEntity,
		msg: UserMessage{"La fila no tiene identificador", "Recargue la tabla", "TBL012"}},

	// Fleet API
	{target: backend.ErrUnauthorized, status: http.StatusBadGateway,
		msg: UserMessage{"La API de flota rechazó las credenciales", "Vuelva a iniciar sesión", "API001"}},
	{target: backend.ErrNotFound, status: http.StatusNotFound,
		msg: UserMessage{"El registro ya no existe", "Recargue la tabla", "API002"}},
	{target: context.DeadlineExceeded, status: http.StatusGatewayTimeout,
		msg: UserMessage{"La API de flota tardó demasiado", "Inténtelo de nuevo", "API005"}},
	{pattern: "connection refused", status: http.StatusBadGateway,
		msg: UserMessage{"La API de flota no está disponible", "Inténtelo de nuevo en unos minutos", "API004"}},
	{pattern: "timeout", status: http.StatusGatewayTimeout,
		msg: UserMessage{"La API de flota tardó demasiado", "Inténtelo de nuevo", "API005"}},

	// Requests
	{target: errBadRequest, status: http.StatusBadRequest,
		msg: UserMessage{"Solicitud no válida", "Revise los datos enviados", "REQ001"}},
	{target: errBadRowIndex, status: http.StatusBadRequest,
		msg: UserMessage{"Índice de fila no válido", "", "REQ002"}},

	// Rate limiting
	{target: errRateLimited, pattern: "rate limit", status: http.StatusTooManyRequests,
		msg: UserMessage{"Demasiadas solicitudes", "Espere un momento antes de reintentar", "RATE001"}},
}

var defaultMessage = UserMessage{
	Message: "Se produjo un error inesperado",
	Action:  "Inténtelo de nuevo o contacte con soporte",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
func MapError(err error) UserMessage {
	if p, ok := lookup(err); ok {
		return p.msg
	}
	return defaultMessage
}

// statusFor returns the HTTP status that answers err.
func statusFor(err error) int {
	if p, ok := lookup(err); ok {
		return p.status
	}
	return http.StatusInternalServerError
}

func lookup(err error) (errorPattern, bool) {
	if err == nil {
		return errorPattern{}, false
	}
	for _, p := range errorPatterns {
		if p.target != nil && errors.Is(err, p.target) {
			return p, true
		}
	}
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) {
		return apiPattern(apiErr), true
	}
	text := strings.ToLower(err.Error())
	for _, p := range errorPatterns {
		if p.pattern != "" && strings.Contains(text, p.pattern) {
			return p, true
		}
	}
	return errorPattern{}, false
}

// apiPattern covers fleet API statuses not matched by a sentinel.
func apiPattern(e *backend.APIError) errorPattern {
	if e.Temporary() {
		return errorPattern{status: http.StatusBadGateway,
			msg: UserMessage{"La API de flota no está disponible", "Inténtelo de nuevo en unos minutos", "API004"}}
	}
	return errorPattern{status: http.StatusUnprocessableEntity,
		msg: UserMessage{"La API de flota rechazó la solicitud: " + e.Message, "Revise los datos del registro", "API003"}}
}
