// Package transport holds the school transportation domain managed by the admin console:
// the resource collections, their statuses and the operations the management screens run on them.
package transport

import (
	"github.com/trezcool/schoolbus/core/collection"
)

// Resources of the remote REST API, served under /<name>.
const (
	Buses    = "buses"
	Drivers  = "drivers"
	Parents  = "parents"
	Students = "students"
	Classes  = "classes"
	Routes   = "routes"
	Trips    = "trips"
)

// Statuses
const (
	StatusField = "status"

	StatusActive      = "Active"
	StatusInactive    = "Inactive"
	StatusMaintenance = "Maintenance" // buses
	StatusOnLeave     = "OnLeave"     // drivers

	TripScheduled  = "Scheduled"
	TripInProgress = "InProgress"
	TripCompleted  = "Completed"
	TripCancelled  = "Cancelled"
)

var (
	AllResources = []string{Buses, Drivers, Parents, Students, Classes, Routes, Trips}

	BusStatuses    = []string{StatusActive, StatusMaintenance, StatusInactive}
	DriverStatuses = []string{StatusActive, StatusOnLeave, StatusInactive}
	TripStatuses   = []string{TripScheduled, TripInProgress, TripCompleted, TripCancelled}
	RecordStatuses = []string{StatusActive, StatusInactive}

	// fields holding a reference to another resource, per resource
	assignableFields = map[string][]string{
		Buses:    {"driver_id", "route_id"},
		Drivers:  {"bus_id"},
		Students: {"parent_id", "class_id", "bus_id", "route_id"},
		Routes:   {"bus_id"},
		Trips:    {"bus_id", "driver_id", "route_id"},
	}

	// fields a create payload must carry, in view shape
	requiredFields = map[string][]string{
		Buses:    {"plate_number", "capacity"},
		Drivers:  {"name", "mobile"},
		Parents:  {"name", "mobile"},
		Students: {"name"},
		Classes:  {"name"},
		Routes:   {"name"},
		Trips:    {"route_id", "bus_id", "driver_id"},
	}

	// API field -> view field
	fieldMaps = map[string]FieldMap{
		Drivers: {"phone": "mobile"},
		Parents: {"phone": "mobile"},
	}
)

// IsResource reports whether name is one of AllResources.
func IsResource(name string) bool {
	for _, r := range AllResources {
		if r == name {
			return true
		}
	}
	return false
}

// Statuses returns the statuses an item of resource can take.
func Statuses(resource string) []string {
	switch resource {
	case Buses:
		return BusStatuses
	case Drivers:
		return DriverStatuses
	case Trips:
		return TripStatuses
	default:
		return RecordStatuses
	}
}

// DefaultStatus is the status of a newly created item.
func DefaultStatus(resource string) string {
	if resource == Trips {
		return TripScheduled
	}
	return StatusActive
}

// FieldMap renames API fields (keys) into view fields (values).
type FieldMap map[string]string

func (fm FieldMap) rename(it collection.Item, reverse bool) collection.Item {
	if it == nil || len(fm) == 0 {
		return it
	}
	out := it.Clone()
	for api, view := range fm {
		from, to := api, view
		if reverse {
			from, to = view, api
		}
		if v, ok := out[from]; ok {
			delete(out, from)
			out[to] = v
		}
	}
	return out
}

// Mapper translates items between the API and view shapes at the client boundary.
type Mapper struct{}

func (Mapper) ToView(resource string, it collection.Item) collection.Item {
	return fieldMaps[resource].rename(it, false)
}

func (Mapper) ToAPI(resource string, it collection.Item) collection.Item {
	return fieldMaps[resource].rename(it, true)
}
