// Package fleet defines the back-office screens: the row types fetched from the
// fleet API, the registry of screens, their column layouts, and the live
// notification inbox.
package fleet

import (
	"fmt"
	"strings"
	"time"

	"github.com/JonMunkholm/fleetdesk/internal/dates"
)

// Bus statuses.
const (
	BusActive      = "ACTIVE"
	BusMaintenance = "MAINTENANCE"
	BusInactive    = "INACTIVE"
)

// Driver statuses.
const (
	DriverActive   = "ACTIVE"
	DriverOnLeave  = "ON_LEAVE"
	DriverInactive = "INACTIVE"
)

// Trip statuses.
const (
	TripScheduled  = "SCHEDULED"
	TripInProgress = "IN_PROGRESS"
	TripCompleted  = "COMPLETED"
	TripCancelled  = "CANCELLED"
)

// Notification kinds.
const (
	NotificationInfo     = "INFO"
	NotificationWarning  = "WARNING"
	NotificationIncident = "INCIDENT"
)

var busStatusLabels = map[string]string{
	BusActive:      "Activo",
	BusMaintenance: "En mantenimiento",
	BusInactive:    "Inactivo",
}

var driverStatusLabels = map[string]string{
	DriverActive:   "Activo",
	DriverOnLeave:  "De baja",
	DriverInactive: "Inactivo",
}

var tripStatusLabels = map[string]string{
	TripScheduled:  "Programado",
	TripInProgress: "En curso",
	TripCompleted:  "Completado",
	TripCancelled:  "Cancelado",
}

var notificationTypeLabels = map[string]string{
	NotificationInfo:     "Información",
	NotificationWarning:  "Aviso",
	NotificationIncident: "Incidencia",
}

// Bus is one vehicle of the fleet.
type Bus struct {
	ID              int64  `json:"id"`
	Plate           string `json:"plate"`
	Model           string `json:"model"`
	Capacity        int    `json:"capacity"`
	Status          string `json:"status"`
	LastServiceDate string `json:"lastServiceDate,omitempty"`

	StatusLabel string `json:"statusLabel"`
}

func (b *Bus) decorate() {
	b.StatusLabel = statusLabel(busStatusLabels, b.Status)
}

// Driver is a person allowed to drive fleet buses.
type Driver struct {
	ID            int64  `json:"id"`
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	LicenseNumber string `json:"licenseNumber"`
	Phone         string `json:"phone,omitempty"`
	Status        string `json:"status"`
	HireDate      string `json:"hireDate,omitempty"`

	FullName    string `json:"fullName"`
	StatusLabel string `json:"statusLabel"`
}

func (d *Driver) decorate() {
	d.FullName = strings.TrimSpace(d.FirstName + " " + d.LastName)
	d.StatusLabel = statusLabel(driverStatusLabels, d.Status)
}

// Route is a named line between two stops.
type Route struct {
	ID               int64   `json:"id"`
	Name             string  `json:"name"`
	Origin           string  `json:"origin"`
	Destination      string  `json:"destination"`
	DistanceKm       float64 `json:"distanceKm"`
	EstimatedMinutes int     `json:"estimatedMinutes"`
	Active           bool    `json:"active"`

	RouteLabel    string `json:"routeLabel"`
	DurationLabel string `json:"durationLabel"`
}

func (r *Route) decorate() {
	r.RouteLabel = routeLabel(r.Origin, r.Destination)
	r.DurationLabel = minutesLabel(r.EstimatedMinutes)
}

// RoutePoint is one ordered stop of a route.
type RoutePoint struct {
	ID        int64   `json:"id"`
	RouteID   int64   `json:"routeId"`
	Sequence  int     `json:"sequence"`
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`

	Position string `json:"position"`
}

func (p *RoutePoint) decorate() {
	p.Position = fmt.Sprintf("%.5f, %.5f", p.Latitude, p.Longitude)
}

// Trip is one scheduled run of a bus on a route. The API embeds the route,
// bus and driver when it has them.
type Trip struct {
	ID            int64   `json:"id"`
	RouteID       int64   `json:"routeId"`
	BusID         int64   `json:"busId"`
	DriverID      int64   `json:"driverId"`
	Route         *Route  `json:"route,omitempty"`
	Bus           *Bus    `json:"bus,omitempty"`
	Driver        *Driver `json:"driver,omitempty"`
	DepartureTime string  `json:"departureTime"`
	ArrivalTime   string  `json:"arrivalTime,omitempty"`
	Status        string  `json:"status"`
	Passengers    int     `json:"passengers"`

	RouteLabel    string `json:"routeLabel"`
	DriverName    string `json:"driverName"`
	StatusLabel   string `json:"statusLabel"`
	DurationLabel string `json:"durationLabel"`
}

func (t *Trip) decorate() {
	if t.Route != nil {
		t.Route.decorate()
		t.RouteLabel = t.Route.RouteLabel
	}
	if t.Bus != nil {
		t.Bus.decorate()
	}
	if t.Driver != nil {
		t.Driver.decorate()
		t.DriverName = t.Driver.FullName
	}
	t.StatusLabel = statusLabel(tripStatusLabels, t.Status)
	t.DurationLabel = spanLabel(t.DepartureTime, t.ArrivalTime)
}

// Scheduled reports whether the trip has not started yet.
func (t *Trip) Scheduled() bool { return t.Status == TripScheduled }

// Notification is one event of the back-office inbox.
type Notification struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Type      string `json:"type"`
	CreatedAt string `json:"createdAt"`
	Read      bool   `json:"read"`

	TypeLabel string `json:"typeLabel"`
}

func (n *Notification) decorate() {
	n.TypeLabel = statusLabel(notificationTypeLabels, n.Type)
}

func statusLabel(labels map[string]string, status string) string {
	if l, ok := labels[strings.ToUpper(status)]; ok {
		return l
	}
	if status == "" {
		return "-"
	}
	return status
}

func routeLabel(origin, destination string) string {
	switch {
	case origin == "" && destination == "":
		return "-"
	case destination == "":
		return origin
	case origin == "":
		return destination
	}
	return origin + " → " + destination
}

// minutesLabel renders a duration in minutes as "1 h 05 min" or "45 min".
func minutesLabel(minutes int) string {
	if minutes <= 0 {
		return "-"
	}
	return durationLabel(time.Duration(minutes) * time.Minute)
}

// spanLabel renders the time between two API timestamps.
func spanLabel(from, to string) string {
	start, ok := dates.Parse(from)
	if !ok {
		return "-"
	}
	end, ok := dates.Parse(to)
	if !ok || end.Before(start) {
		return "-"
	}
	return durationLabel(end.Sub(start))
}

func durationLabel(d time.Duration) string {
	total := int(d.Round(time.Minute) / time.Minute)
	if total < 60 {
		return fmt.Sprintf("%d min", total)
	}
	return fmt.Sprintf("%d h %02d min", total/60, total%60)
}
