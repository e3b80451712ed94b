package web

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/fleetdesk/internal/backend"
	"github.com/JonMunkholm/fleetdesk/internal/config"
	"github.com/JonMunkholm/fleetdesk/internal/fleet"
)

func TestMain(m *testing.M) {
	if err := fleet.Setup(""); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

var testBuses = []fleet.Bus{
	{ID: 1, Plate: "1234-ABC", Model: "Citaro", Capacity: 90, Status: fleet.BusActive},
	{ID: 2, Plate: "0001-ZZZ", Model: "Urbino", Capacity: 80, Status: fleet.BusMaintenance},
	{ID: 3, Plate: "5555-KLM", Model: "Citaro", Capacity: 60, Status: fleet.BusInactive},
}

type apiCall struct {
	Method string
	Path   string
}

type fixture struct {
	srv   *Server
	inbox *fleet.Inbox

	mu    sync.Mutex
	calls []apiCall
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{RequestTimeout: 5 * time.Second},
		Table: config.TableConfig{
			RowsPerPage:        10,
			RowsPerPageOptions: []int{10, 25, 50},
			Breakpoint:         1024,
			Locale:             "es-ES",
			ViewTTL:            time.Minute,
			SweepInterval:      time.Minute,
			MaxViews:           10,
		},
		Rate:     config.RateLimitConfig{RequestsPerMinute: 300, ActionLimit: 30},
		Security: config.SecurityConfig{EnableCSP: true},
	}
}

// newFixture serves the dashboard over a fake fleet API holding testBuses.
func newFixture(t *testing.T, mutate func(*config.Config)) *fixture {
	t.Helper()
	f := &fixture{}

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.calls = append(f.calls, apiCall{Method: r.Method, Path: r.URL.Path})
		f.mu.Unlock()

		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/buses":
			_ = json.NewEncoder(w).Encode(testBuses)
		case r.Method == http.MethodGet && r.URL.Path == "/notifications":
			_ = json.NewEncoder(w).Encode([]fleet.Notification{})
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	t.Cleanup(api.Close)

	client, err := backend.NewClient(api.URL, backend.WithRateLimit(0, 0))
	require.NoError(t, err)

	cfg := testConfig()
	if mutate != nil {
		mutate(cfg)
	}
	f.inbox, err = fleet.NewInbox(client, fleet.Defaults{RowsPerPage: 10, Locale: "es-ES"})
	require.NoError(t, err)

	f.srv = NewServer(cfg, client, f.inbox, nil)
	return f
}

func (f *fixture) apiCalls() []apiCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]apiCall(nil), f.calls...)
}

func (f *fixture) do(t *testing.T, method, path string, body any, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	f.srv.Router().ServeHTTP(rec, req)
	return rec
}

func (f *fixture) mount(t *testing.T, screen string, header ...string) ViewResponse {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/screens/"+screen+"/views", nil, header...)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[ViewResponse](t, rec)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func plates(resp ViewResponse) []string {
	var out []string
	for _, row := range resp.Page.Rows {
		for _, c := range row.Cells {
			if c.Field == "plate" {
				out = append(out, c.Value)
			}
		}
	}
	return out
}

// ---- Catalogue Tests ----

func TestHealth(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[map[string]any](t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 0, body["views"])
	assert.EqualValues(t, 0, body["unread"])
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))
}

func TestListScreens(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodGet, "/api/screens", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	groups := decode[[]screenGroup](t, rec)
	var names []string
	for _, g := range groups {
		names = append(names, g.Group)
	}
	assert.Equal(t, []string{"fleet", "inbox", "operations"}, names)
	require.NotEmpty(t, groups[0].Screens)
	assert.Equal(t, "Autobuses", groups[0].Screens[0].Title)
}

// ---- View Lifecycle Tests ----

func TestMountView(t *testing.T) {
	f := newFixture(t, nil)
	resp := f.mount(t, fleet.BusesKey)

	assert.NotEmpty(t, resp.ViewID)
	assert.Equal(t, fleet.BusesKey, resp.Screen)
	assert.Equal(t, "Autobuses", resp.Title)
	assert.Equal(t, 3, resp.Page.TotalRecords)
	assert.Equal(t, []string{"1234-ABC", "0001-ZZZ", "5555-KLM"}, plates(resp))
	assert.Empty(t, resp.Events)
	require.NotNil(t, resp.Page.Footer)
}

func TestMountView_UnknownScreen(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodPost, "/api/screens/ferries/views", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "VIEW003", decode[ErrorResponse](t, rec).Code)
}

func TestMountView_MobileWidth(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodPost, "/api/screens/buses/views?width=400", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, decode[ViewResponse](t, rec).Page.Mobile)

	rec = f.do(t, http.MethodPost, "/api/screens/buses/views?width=wide", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMountView_TooManyViews(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.Table.MaxViews = 1 })
	f.mount(t, fleet.BusesKey)

	rec := f.do(t, http.MethodPost, "/api/screens/buses/views", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "VIEW002", decode[ErrorResponse](t, rec).Code)
}

func TestViewNotFound(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodGet, "/api/views/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "VIEW001", decode[ErrorResponse](t, rec).Code)
}

func TestDeleteView(t *testing.T) {
	f := newFixture(t, nil)
	resp := f.mount(t, fleet.BusesKey)

	rec := f.do(t, http.MethodDelete, "/api/views/"+resp.ViewID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/views/"+resp.ViewID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReloadRefetches(t *testing.T) {
	f := newFixture(t, nil)
	resp := f.mount(t, fleet.BusesKey)

	rec := f.do(t, http.MethodPost, "/api/views/"+resp.ViewID+"/reload", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var gets int
	for _, c := range f.apiCalls() {
		if c.Method == http.MethodGet && c.Path == "/buses" {
			gets++
		}
	}
	assert.Equal(t, 2, gets)
}

// ---- View State Tests ----

func TestSortCycles(t *testing.T) {
	f := newFixture(t, nil)
	id := f.mount(t, fleet.BusesKey).ViewID

	rec := f.do(t, http.MethodPost, "/api/views/"+id+"/sort/plate", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[ViewResponse](t, rec)
	assert.Equal(t, []string{"0001-ZZZ", "1234-ABC", "5555-KLM"}, plates(resp))
	assert.Equal(t, "plate", resp.Page.SortField)

	rec = f.do(t, http.MethodPost, "/api/views/"+id+"/sort/plate", nil)
	assert.Equal(t, []string{"5555-KLM", "1234-ABC", "0001-ZZZ"}, plates(decode[ViewResponse](t, rec)))

	rec = f.do(t, http.MethodPost, "/api/views/"+id+"/sort/nothing", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "TBL001", decode[ErrorResponse](t, rec).Code)
}

func TestSearchAndFilters(t *testing.T) {
	f := newFixture(t, nil)
	id := f.mount(t, fleet.BusesKey).ViewID

	rec := f.do(t, http.MethodPut, "/api/views/"+id+"/search", map[string]any{"text": "citaro"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decode[ViewResponse](t, rec).Page.TotalRecords)

	rec = f.do(t, http.MethodPut, "/api/views/"+id+"/filters/status", map[string]any{"value": []string{"INACTIVE"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"5555-KLM"}, plates(decode[ViewResponse](t, rec)))

	rec = f.do(t, http.MethodDelete, "/api/views/"+id+"/filters", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, decode[ViewResponse](t, rec).Page.TotalRecords)
}

func TestPageSize(t *testing.T) {
	f := newFixture(t, nil)
	id := f.mount(t, fleet.BusesKey).ViewID

	rec := f.do(t, http.MethodPut, "/api/views/"+id+"/page", map[string]any{"first": 0, "rows": 25})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 25, decode[ViewResponse](t, rec).Page.RowsPerPage)

	rec = f.do(t, http.MethodPut, "/api/views/"+id+"/page", map[string]any{"first": 0, "rows": 7})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "TBL010", decode[ErrorResponse](t, rec).Code)

	rec = f.do(t, http.MethodPut, "/api/views/"+id+"/page", map[string]any{"first": -1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "REQ001", decode[ErrorResponse](t, rec).Code)
}

func TestBadBody(t *testing.T) {
	f := newFixture(t, nil)
	id := f.mount(t, fleet.BusesKey).ViewID

	req := httptest.NewRequest(http.MethodPut, "/api/views/"+id+"/viewport", strings.NewReader(`{"width":`))
	rec := httptest.NewRecorder()
	f.srv.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPut, "/api/views/"+id+"/viewport", map[string]any{"height": 3})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "REQ001", decode[ErrorResponse](t, rec).Code)
}

func TestViewportSwitchesLayout(t *testing.T) {
	f := newFixture(t, nil)
	id := f.mount(t, fleet.BusesKey).ViewID

	rec := f.do(t, http.MethodPut, "/api/views/"+id+"/viewport", map[string]any{"width": 375})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[ViewResponse](t, rec).Page.Mobile)

	// A tap on the row body expands it on mobile.
	rec = f.do(t, http.MethodPost, "/api/views/"+id+"/rows/0/tap", map[string]any{"field": "model"})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[ViewResponse](t, rec)
	assert.True(t, resp.Page.Rows[0].Expanded)
	assert.Empty(t, resp.Events)
}

// ---- Row Tests ----

func TestSelectionEventsAreDrained(t *testing.T) {
	f := newFixture(t, nil)
	id := f.mount(t, fleet.BusesKey).ViewID

	rec := f.do(t, http.MethodPost, "/api/views/"+id+"/rows/1/select", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[ViewResponse](t, rec)
	assert.Equal(t, 1, resp.Page.SelectedCount)
	require.Len(t, resp.Events, 1)
	assert.Equal(t, EventSelection, resp.Events[0].Type)
	assert.Len(t, resp.Events[0].Rows, 1)

	rec = f.do(t, http.MethodGet, "/api/views/"+id, nil)
	assert.Empty(t, decode[ViewResponse](t, rec).Events)

	rec = f.do(t, http.MethodPost, "/api/views/"+id+"/select-all", map[string]any{"checked": true})
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decode[ViewResponse](t, rec)
	assert.True(t, resp.Page.AllSelected)
	assert.Equal(t, 3, resp.Page.SelectedCount)
}

func TestRowIndex(t *testing.T) {
	f := newFixture(t, nil)
	id := f.mount(t, fleet.BusesKey).ViewID

	rec := f.do(t, http.MethodPost, "/api/views/"+id+"/rows/x/select", nil)
	assert.Equal(t, "REQ002", decode[ErrorResponse](t, rec).Code)

	rec = f.do(t, http.MethodPost, "/api/views/"+id+"/rows/9/select", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "TBL006", decode[ErrorResponse](t, rec).Code)
}

func TestClickEvent(t *testing.T) {
	f := newFixture(t, nil)
	id := f.mount(t, fleet.BusesKey).ViewID

	rec := f.do(t, http.MethodPost, "/api/views/"+id+"/rows/2/click", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[ViewResponse](t, rec)
	require.Len(t, resp.Events, 1)
	assert.Equal(t, EventRowClick, resp.Events[0].Type)
	assert.Equal(t, 2, resp.Events[0].Index)
	row, ok := resp.Events[0].Row.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "5555-KLM", row["plate"])
}

func TestActionDeletesAndReloads(t *testing.T) {
	f := newFixture(t, nil)
	id := f.mount(t, fleet.BusesKey).ViewID

	rec := f.do(t, http.MethodPost, "/api/views/"+id+"/rows/1/actions/delete", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	calls := f.apiCalls()
	assert.Contains(t, calls, apiCall{Method: http.MethodDelete, Path: "/buses/2"})
	assert.Equal(t, apiCall{Method: http.MethodGet, Path: "/buses"}, calls[len(calls)-1])
}

func TestActionPermissions(t *testing.T) {
	f := newFixture(t, nil)
	id := f.mount(t, fleet.BusesKey, PermissionsHeader, "trips:write").ViewID

	rec := f.do(t, http.MethodPost, "/api/views/"+id+"/rows/0/actions/delete", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "TBL009", decode[ErrorResponse](t, rec).Code)

	id = f.mount(t, fleet.BusesKey, PermissionsHeader, "trips:write, fleet:write").ViewID
	rec = f.do(t, http.MethodPost, "/api/views/"+id+"/rows/0/actions/delete", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestActionUnknown(t *testing.T) {
	f := newFixture(t, nil)
	id := f.mount(t, fleet.BusesKey).ViewID

	rec := f.do(t, http.MethodPost, "/api/views/"+id+"/rows/0/actions/launch", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "TBL007", decode[ErrorResponse](t, rec).Code)
}

// ---- Export Tests ----

func TestExportCSV(t *testing.T) {
	f := newFixture(t, nil)
	id := f.mount(t, fleet.BusesKey).ViewID
	f.do(t, http.MethodPut, "/api/views/"+id+"/page", map[string]any{"first": 0, "rows": 10})
	f.do(t, http.MethodPut, "/api/views/"+id+"/search", map[string]any{"text": "citaro"})

	rec := f.do(t, http.MethodGet, "/api/views/"+id+"/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "buses_")

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "Matrícula,Modelo"), lines[0])
	assert.NotContains(t, lines[0], "Acciones")
}

// ---- Inbox Tests ----

func TestNotificationViewFollowsInbox(t *testing.T) {
	f := newFixture(t, nil)
	resp := f.mount(t, fleet.NotificationsKey)
	assert.Equal(t, 0, resp.Page.TotalRecords)

	require.NoError(t, f.inbox.Add(fleet.Notification{ID: 7, Title: "Avería en línea 3", Type: fleet.NotificationIncident}))

	rec := f.do(t, http.MethodGet, "/api/views/"+resp.ViewID, nil)
	resp = decode[ViewResponse](t, rec)
	require.Equal(t, 1, resp.Page.TotalRecords)
	assert.Equal(t, "row-unread", resp.Page.Rows[0].Class)

	rec = f.do(t, http.MethodPost, "/api/views/"+resp.ViewID+"/rows/0/actions/markRead", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.Eventually(t, func() bool {
		rec := f.do(t, http.MethodGet, "/api/views/"+resp.ViewID, nil)
		page := decode[ViewResponse](t, rec).Page
		return len(page.Rows) == 1 && page.Rows[0].Class == ""
	}, 5*time.Second, 10*time.Millisecond)
	assert.Contains(t, f.apiCalls(), apiCall{Method: http.MethodPut, Path: "/notifications/7"})
}

func TestDeletedViewStopsFollowingInbox(t *testing.T) {
	f := newFixture(t, nil)
	id := f.mount(t, fleet.NotificationsKey).ViewID
	v, err := f.srv.views.get(id)
	require.NoError(t, err)

	f.do(t, http.MethodDelete, "/api/views/"+id, nil)
	require.NoError(t, f.inbox.Add(fleet.Notification{ID: 1, Title: "Retraso"}))

	v.mu.Lock()
	defer v.mu.Unlock()
	assert.Equal(t, 0, v.engine.TotalRecords())
}

// ---- Middleware Wiring Tests ----

func TestAPIKeyRequired(t *testing.T) {
	f := newFixture(t, func(c *config.Config) {
		c.Security.RequireAPIKey = true
		c.Security.APIKeys = []string{"k1"}
	})

	rec := f.do(t, http.MethodGet, "/api/screens", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/screens", nil, "X-API-Key", "k1")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code, "health stays open")
}

func TestRateLimited(t *testing.T) {
	f := newFixture(t, func(c *config.Config) {
		c.Rate.Enabled = true
		c.Rate.RequestsPerMinute = 2
	})

	for range 2 {
		assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/healthz", nil).Code)
	}
	rec := f.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE001", decode[ErrorResponse](t, rec).Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestActionRateLimited(t *testing.T) {
	f := newFixture(t, func(c *config.Config) {
		c.Rate.Enabled = true
		c.Rate.ActionLimit = 1
	})
	id := f.mount(t, fleet.BusesKey).ViewID

	rec := f.do(t, http.MethodPost, "/api/views/"+id+"/rows/0/actions/delete", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = f.do(t, http.MethodPost, "/api/views/"+id+"/rows/0/actions/delete", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/views/"+id, nil)
	assert.Equal(t, http.StatusOK, rec.Code, "other routes keep the general limit")
}
