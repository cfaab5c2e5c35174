package model

import (
	"fmt"
	"time"
)

// Holds all external facing types and constants.

type EventKind int

const (
	EventArrival EventKind = iota
	EventDeparture
)

func (k EventKind) String() string {
	switch k {
	case EventArrival:
		return "arrival"
	case EventDeparture:
		return "departure"
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// Parses "arrival" or "departure".
func ParseEventKind(s string) (EventKind, error) {
	switch s {
	case "arrival":
		return EventArrival, nil
	case "departure":
		return EventDeparture, nil
	}
	return 0, fmt.Errorf("unknown event kind: %q", s)
}

// A single train's visit to the tracked station, as resolved from
// the feed. Records are never modified once built.
type VehicleRecord struct {
	// Feed assigned identifier. Unique per physical trip
	// instance.
	ID string

	StationCode     string
	DestinationCode string
	RouteName       string
	TrainNumber     string

	ArrivalIsSet   bool
	ArrivalTime    time.Time
	DepartureIsSet bool
	DepartureTime  time.Time

	// Free text status from the feed. May be blank.
	Status string
}

// Time of the given event kind, and whether it's set.
func (r *VehicleRecord) EventTime(kind EventKind) (time.Time, bool) {
	if kind == EventDeparture {
		return r.DepartureTime, r.DepartureIsSet
	}
	return r.ArrivalTime, r.ArrivalIsSet
}

// Maps station code to display name. Loaded once, never modified.
type StationTable map[string]string

// Display name of a station. Falls back to the code itself for
// stations missing from the table.
func (s StationTable) Name(code string) string {
	if name, found := s[code]; found && name != "" {
		return name
	}
	return code
}
