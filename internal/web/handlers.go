package web

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/JonMunkholm/fleetdesk/internal/fleet"
	"github.com/JonMunkholm/fleetdesk/internal/logging"
	"github.com/JonMunkholm/fleetdesk/internal/table"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// PermissionsHeader carries the caller's permissions, comma separated, as
// set by the gateway in front of the dashboard. Without it every action is
// allowed.
const PermissionsHeader = "X-Permissions"

// ViewResponse is the body returned by every view endpoint.
type ViewResponse struct {
	ViewID string         `json:"viewId"`
	Screen string         `json:"screen"`
	Title  string         `json:"title"`
	Page   table.PageView `json:"page"`
	Events []ViewEvent    `json:"events"`
}

type screenGroup struct {
	Group   string        `json:"group"`
	Screens []screenEntry `json:"screens"`
}

type screenEntry struct {
	fleet.ScreenInfo
	Title string `json:"title"`
}

// Request bodies.
type (
	viewportRequest struct {
		Width int `json:"width" validate:"gt=0"`
	}
	searchRequest struct {
		Text string `json:"text" validate:"max=200"`
	}
	filterRequest struct {
		Value any `json:"value"`
	}
	pageRequest struct {
		First int `json:"first" validate:"gte=0"`
		Rows  int `json:"rows" validate:"gte=0"`
	}
	selectAllRequest struct {
		Checked bool `json:"checked"`
	}
	tapRequest struct {
		Field string `json:"field"`
	}
)

// ---- Catalogue ----

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status": "ok",
		"views":  s.views.len(),
	}
	if s.inbox != nil {
		resp["unread"] = s.inbox.Unread()
	}
	if s.hub != nil {
		resp["clients"] = s.hub.Count()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListScreens(w http.ResponseWriter, r *http.Request) {
	groups := make([]screenGroup, 0)
	for _, g := range fleet.Groups() {
		var entries []screenEntry
		for _, sc := range fleet.ByGroup(g) {
			e := screenEntry{ScreenInfo: sc.Info}
			if sc.View != nil {
				e.Title = sc.View.Title
			}
			entries = append(entries, e)
		}
		groups = append(groups, screenGroup{Group: g, Screens: entries})
	}
	writeJSON(w, http.StatusOK, groups)
}

// ---- View lifecycle ----

// handleMountView builds a fresh view over a screen. An optional width query
// parameter sets the initial viewport.
func (s *Server) handleMountView(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "screen")
	screen, ok := fleet.Get(key)
	if !ok {
		respondError(w, r, fmt.Errorf("%w: %s", errUnknownScreen, key))
		return
	}

	opts := []table.EngineOption{table.WithBreakpoint(s.cfg.Table.Breakpoint)}
	if raw := r.URL.Query().Get("width"); raw != "" {
		width, err := strconv.Atoi(raw)
		if err != nil || width <= 0 {
			respondError(w, r, fmt.Errorf("%w: width %q", errBadRequest, raw))
			return
		}
		opts = append(opts, table.WithViewportWidth(width))
	}
	if perms := permissionsFrom(r); perms != nil {
		opts = append(opts, table.WithPermissions(perms))
	}

	v := newView(screen)
	opts = append(opts, v.listeners()...)

	if err := s.mount(r.Context(), v, opts); err != nil {
		v.close()
		respondError(w, r, err)
		return
	}
	if err := s.views.add(v); err != nil {
		v.close()
		respondError(w, r, err)
		return
	}

	logging.ForView(r.Context(), v.id, key).Info("view mounted")

	v.mu.Lock()
	defer v.mu.Unlock()
	writeJSON(w, http.StatusCreated, s.viewResponse(v))
}

// mount creates the view's engine. Notification views follow the inbox and
// every later inbox change reaches the engine through ApplyConfig.
func (s *Server) mount(ctx context.Context, v *view, opts []table.EngineOption) error {
	if s.live(v) {
		v.mu.Lock()
		defer v.mu.Unlock()
		log := logging.ForView(ctx, v.id, v.screen.Info.Key)
		v.unsubscribe = s.inbox.Subscribe(func(cfg *table.Config) {
			if err := v.apply(cfg); err != nil {
				log.Error("apply inbox config", "error", err)
			}
		})
		engine, err := table.New(s.inbox.Config(), opts...)
		if err != nil {
			return err
		}
		v.engine = engine
		return nil
	}

	cfg, err := s.build(ctx, v.screen)
	if err != nil {
		return err
	}
	engine, err := table.New(cfg, opts...)
	if err != nil {
		return err
	}
	v.mu.Lock()
	v.engine = engine
	v.mu.Unlock()
	return nil
}

// live reports whether the view's rows come from the inbox.
func (s *Server) live(v *view) bool {
	return s.inbox != nil && v.screen.Info.Key == fleet.NotificationsKey
}

func (s *Server) build(ctx context.Context, screen fleet.Screen) (*table.Config, error) {
	cfg, err := screen.Build(ctx, s.client)
	if err != nil {
		return nil, err
	}
	s.defaults.Apply(cfg)
	return cfg, nil
}

// reload refetches the view's rows. It must be called without v.mu held.
func (s *Server) reload(ctx context.Context, v *view) error {
	if s.live(v) {
		return s.inbox.Load(ctx)
	}
	cfg, err := s.build(ctx, v.screen)
	if err != nil {
		return err
	}
	return v.apply(cfg)
}

func (s *Server) handleGetView(w http.ResponseWriter, r *http.Request) {
	s.withView(w, r, func(*view) error { return nil })
}

func (s *Server) handleDeleteView(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "viewID")
	if !s.views.remove(id) {
		respondError(w, r, errViewNotFound)
		return
	}
	logging.FromContext(r.Context()).Info("view closed", "view_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	v, err := s.views.get(chi.URLParam(r, "viewID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	if err := s.reload(r.Context(), v); err != nil {
		respondError(w, r, err)
		return
	}
	s.respondView(w, v)
}

// handleExport streams the filtered rows, across all pages, as CSV.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	v, err := s.views.get(chi.URLParam(r, "viewID"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	cfg := v.engine.Config()
	filename := fmt.Sprintf("%s_%s.csv", v.screen.Info.Key, time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	exp := table.CSVExporter{W: w, Columns: cfg.Columns}
	if err := v.engine.ExportTo(r.Context(), exp); err != nil {
		// Headers are gone once the first record is written.
		logging.ForView(r.Context(), v.id, v.screen.Info.Key).Error("export failed", "error", err)
	}
}

// ---- Layout and paging ----

func (s *Server) handleViewport(w http.ResponseWriter, r *http.Request) {
	var req viewportRequest
	if !bind(w, r, &req) {
		return
	}
	s.withView(w, r, func(v *view) error {
		v.engine.SetViewportWidth(req.Width)
		return nil
	})
}

// handlePage moves to the page starting at first. A non-zero rows changes
// the page size first.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	var req pageRequest
	if !bind(w, r, &req) {
		return
	}
	s.withView(w, r, func(v *view) error {
		if req.Rows != 0 {
			if err := v.engine.SetRowsPerPage(req.Rows); err != nil {
				return err
			}
		}
		v.engine.SetPage(req.First)
		return nil
	})
}

// ---- Filtering and sorting ----

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !bind(w, r, &req) {
		return
	}
	s.withView(w, r, func(v *view) error {
		return v.engine.SetGlobalFilter(req.Text)
	})
}

func (s *Server) handleApplySearch(w http.ResponseWriter, r *http.Request) {
	s.withView(w, r, func(v *view) error {
		v.engine.ApplyFilters()
		return nil
	})
}

func (s *Server) handleSetFilter(w http.ResponseWriter, r *http.Request) {
	var req filterRequest
	if !bind(w, r, &req) {
		return
	}
	field := chi.URLParam(r, "field")
	s.withView(w, r, func(v *view) error {
		return v.engine.SetColumnFilter(field, req.Value)
	})
}

func (s *Server) handleClearFilters(w http.ResponseWriter, r *http.Request) {
	s.withView(w, r, func(v *view) error {
		v.engine.ClearFilters()
		return nil
	})
}

func (s *Server) handleSort(w http.ResponseWriter, r *http.Request) {
	field := chi.URLParam(r, "field")
	s.withView(w, r, func(v *view) error {
		return v.engine.Sort(field)
	})
}

// ---- Rows ----

func (s *Server) handleSelectAll(w http.ResponseWriter, r *http.Request) {
	var req selectAllRequest
	if !bind(w, r, &req) {
		return
	}
	s.withView(w, r, func(v *view) error {
		return v.engine.SetAllVisibleSelected(req.Checked)
	})
}

func (s *Server) handleToggleRow(w http.ResponseWriter, r *http.Request) {
	i, ok := rowIndex(w, r)
	if !ok {
		return
	}
	s.withView(w, r, func(v *view) error {
		return v.engine.ToggleRow(i)
	})
}

// handleTap takes an optional {field} body naming the tapped cell.
func (s *Server) handleTap(w http.ResponseWriter, r *http.Request) {
	i, ok := rowIndex(w, r)
	if !ok {
		return
	}
	var req tapRequest
	if r.ContentLength != 0 && !bind(w, r, &req) {
		return
	}
	s.withView(w, r, func(v *view) error {
		return v.engine.TapRow(i, req.Field)
	})
}

func (s *Server) handleClick(w http.ResponseWriter, r *http.Request) {
	i, ok := rowIndex(w, r)
	if !ok {
		return
	}
	s.withView(w, r, func(v *view) error {
		return v.engine.ClickRow(i)
	})
}

// handleAction runs a row action. Views fetched from the API are reloaded
// afterwards so the page shows the change; notification views are updated
// by the inbox.
func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	i, ok := rowIndex(w, r)
	if !ok {
		return
	}
	name := chi.URLParam(r, "action")
	v, err := s.views.get(chi.URLParam(r, "viewID"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	log := logging.ForView(r.Context(), v.id, v.screen.Info.Key).With("action", name, "row", i)

	v.mu.Lock()
	err = v.engine.InvokeAction(r.Context(), name, i)
	v.mu.Unlock()
	if err != nil {
		respondError(w, r, err)
		return
	}
	log.Info("row action completed")

	if !s.live(v) {
		if err := s.reload(r.Context(), v); err != nil {
			log.Warn("reload after action failed", "error", err)
		}
	}
	s.respondView(w, v)
}

// ---- Helpers ----

// withView runs fn on the view named in the URL under its lock and answers
// with the resulting page.
func (s *Server) withView(w http.ResponseWriter, r *http.Request, fn func(v *view) error) {
	v, err := s.views.get(chi.URLParam(r, "viewID"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if err := fn(v); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.viewResponse(v))
}

func (s *Server) respondView(w http.ResponseWriter, v *view) {
	v.mu.Lock()
	defer v.mu.Unlock()
	writeJSON(w, http.StatusOK, s.viewResponse(v))
}

// viewResponse renders the page and drains queued events. Callers hold v.mu.
func (s *Server) viewResponse(v *view) ViewResponse {
	resp := ViewResponse{
		ViewID: v.id,
		Screen: v.screen.Info.Key,
		Page:   v.engine.Page(),
		Events: v.drain(),
	}
	if v.screen.View != nil {
		resp.Title = v.screen.View.Title
	}
	return resp
}

// bind decodes and validates a request body, answering on failure.
func bind(w http.ResponseWriter, r *http.Request, req any) bool {
	if err := decodeJSON(r, req); err != nil {
		respondError(w, r, err)
		return false
	}
	if err := validate.Struct(req); err != nil {
		respondError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return false
	}
	return true
}

func rowIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := chi.URLParam(r, "index")
	i, err := strconv.Atoi(raw)
	if err != nil || i < 0 {
		respondError(w, r, fmt.Errorf("%w: %q", errBadRowIndex, raw))
		return 0, false
	}
	return i, true
}

// permissionsFrom reads PermissionsHeader. It returns nil when the header is
// absent.
func permissionsFrom(r *http.Request) table.PermissionChecker {
	raw, ok := r.Header[http.CanonicalHeaderKey(PermissionsHeader)]
	if !ok {
		return nil
	}
	granted := make(map[string]bool)
	for _, line := range raw {
		for p := range strings.SplitSeq(line, ",") {
			if p = strings.TrimSpace(p); p != "" {
				granted[p] = true
			}
		}
	}
	return table.PermissionFunc(func(permission string) bool {
		return granted[permission]
	})
}
