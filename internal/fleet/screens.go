package fleet

import (
	"context"
	"strings"

	"github.com/JonMunkholm/fleetdesk/internal/backend"
	"github.com/JonMunkholm/fleetdesk/internal/table"
)

// Screen keys.
const (
	BusesKey         = "buses"
	DriversKey       = "drivers"
	RoutesKey        = "routes"
	RoutePointsKey   = "route-points"
	TripsKey         = "trips"
	NotificationsKey = "notifications"
)

// Action names.
const (
	ActionDelete   = "delete"
	ActionCancel   = "cancel"
	ActionMarkRead = "markRead"
)

func init() {
	registerBuses()
	registerDrivers()
	registerRoutes()
	registerRoutePoints()
	registerTrips()
	registerNotifications()
}

func registerBuses() {
	Register(Screen{
		Info: ScreenInfo{
			Key:      BusesKey,
			Group:    "fleet",
			Label:    "Autobuses",
			Resource: backend.Buses,
		},
		Fetch:    listOf[Bus](backend.Buses),
		Handlers: deleteHandlers(backend.Buses),
		Footer:   table.FooterFunc(capacityFooter),
		RowClass: table.RowClassFunc(func(row any) string {
			if b, ok := row.(*Bus); ok && b.Status == BusMaintenance {
				return "row-warning"
			}
			return ""
		}),
	})
}

func registerDrivers() {
	Register(Screen{
		Info: ScreenInfo{
			Key:      DriversKey,
			Group:    "fleet",
			Label:    "Conductores",
			Resource: backend.Drivers,
		},
		Fetch:    listOf[Driver](backend.Drivers),
		Handlers: deleteHandlers(backend.Drivers),
	})
}

func registerRoutes() {
	Register(Screen{
		Info: ScreenInfo{
			Key:      RoutesKey,
			Group:    "operations",
			Label:    "Rutas",
			Resource: backend.Routes,
		},
		Fetch:    listOf[Route](backend.Routes),
		Handlers: deleteHandlers(backend.Routes),
		RowClass: table.RowClassFunc(func(row any) string {
			if r, ok := row.(*Route); ok && !r.Active {
				return "row-muted"
			}
			return ""
		}),
	})
}

func registerRoutePoints() {
	Register(Screen{
		Info: ScreenInfo{
			Key:      RoutePointsKey,
			Group:    "operations",
			Label:    "Paradas",
			Resource: backend.RoutePoints,
		},
		Fetch: listOf[RoutePoint](backend.RoutePoints),
	})
}

func registerTrips() {
	Register(Screen{
		Info: ScreenInfo{
			Key:      TripsKey,
			Group:    "operations",
			Label:    "Viajes",
			Resource: backend.Trips,
		},
		Fetch: listOf[Trip](backend.Trips),
		Handlers: func(c *backend.Client) map[string]table.ActionHandler {
			return map[string]table.ActionHandler{
				ActionCancel: table.ActionFunc(func(ctx context.Context, row any, _ int) error {
					id, err := rowID(row)
					if err != nil {
						return err
					}
					return c.Update(ctx, backend.Trips, id, statusUpdate{Status: TripCancelled}, nil)
				}),
			}
		},
		Disabled: map[string]table.RowPredicate{
			ActionCancel: table.RowPredicateFunc(func(row any) bool {
				t, ok := row.(*Trip)
				return !ok || !t.Scheduled()
			}),
		},
		Footer: table.FooterFunc(passengerFooter),
		RowClass: table.RowClassFunc(func(row any) string {
			if t, ok := row.(*Trip); ok {
				return "trip-" + strings.ToLower(strings.ReplaceAll(t.Status, "_", "-"))
			}
			return ""
		}),
		Selectable: table.RowPredicateFunc(func(row any) bool {
			t, ok := row.(*Trip)
			return ok && t.Status != TripCancelled
		}),
	})
}

func registerNotifications() {
	Register(Screen{
		Info: ScreenInfo{
			Key:      NotificationsKey,
			Group:    "inbox",
			Label:    "Notificaciones",
			Resource: backend.Notifications,
		},
		Fetch: listOf[Notification](backend.Notifications),
		Handlers: func(c *backend.Client) map[string]table.ActionHandler {
			return map[string]table.ActionHandler{
				ActionMarkRead: markReadHandler(c, nil),
			}
		},
		Disabled: map[string]table.RowPredicate{
			ActionMarkRead: table.RowPredicateFunc(func(row any) bool {
				n, ok := row.(*Notification)
				return !ok || n.Read
			}),
		},
		RowClass: table.RowClassFunc(func(row any) string {
			if n, ok := row.(*Notification); ok && !n.Read {
				return "row-unread"
			}
			return ""
		}),
	})
}

type statusUpdate struct {
	Status string `json:"status"`
}

type readUpdate struct {
	Read bool `json:"read"`
}

func deleteHandlers(res backend.Resource) HandlersFunc {
	return func(c *backend.Client) map[string]table.ActionHandler {
		return map[string]table.ActionHandler{
			ActionDelete: table.ActionFunc(func(ctx context.Context, row any, _ int) error {
				id, err := rowID(row)
				if err != nil {
					return err
				}
				return c.Delete(ctx, res, id)
			}),
		}
	}
}

// markReadHandler marks a notification read on the API, then calls done.
func markReadHandler(c *backend.Client, done func(id string)) table.ActionHandler {
	return table.ActionFunc(func(ctx context.Context, row any, _ int) error {
		id, err := rowID(row)
		if err != nil {
			return err
		}
		if err := c.Update(ctx, backend.Notifications, id, readUpdate{Read: true}, nil); err != nil {
			return err
		}
		if done != nil {
			done(id)
		}
		return nil
	})
}

func capacityFooter(rows []any) table.Footer {
	total := 0
	for _, row := range rows {
		if b, ok := row.(*Bus); ok {
			total += b.Capacity
		}
	}
	return summaryFooter("Capacidad total", total)
}

func passengerFooter(rows []any) table.Footer {
	total := 0
	for _, row := range rows {
		if t, ok := row.(*Trip); ok && t.Status != TripCancelled {
			total += t.Passengers
		}
	}
	return summaryFooter("Pasajeros", total)
}

func summaryFooter(label string, total int) table.Footer {
	return table.Footer{Cells: []table.FooterCell{
		{Value: label, ColSpan: 3, Align: "right", CSSClass: "footer-label"},
		{Value: table.FormatNumber(float64(total), table.NumberFormat{MinInteger: 1}, table.DefaultLocale), Align: "right"},
	}}
}
