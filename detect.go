package trainsignal

import (
	"time"

	"tidbyt.dev/trainsignal/model"
)

// An event is "happening now" if its time falls in the trailing
// window ending at now, inclusive at both ends.
const DetectionWindow = 5 * time.Minute

// Picks the record whose event of the given kind is happening now and
// hasn't been announced yet. If several qualify (e.g. after a feed
// outage) the earliest wins, ties going to list order. Returns nil if
// nothing qualifies.
//
// With force set, the first record is returned regardless of timing
// or ledger.
func DetectNow(
	kind model.EventKind,
	records []model.VehicleRecord,
	ledger *Ledger,
	now time.Time,
	force bool,
) *model.VehicleRecord {
	if force {
		if len(records) == 0 {
			return nil
		}
		return &records[0]
	}

	windowStart := now.Add(-DetectionWindow)

	var found *model.VehicleRecord
	var foundTime time.Time
	for i := range records {
		t, ok := records[i].EventTime(kind)
		if !ok {
			continue
		}
		if t.Before(windowStart) || t.After(now) {
			continue
		}
		if ledger.Contains(records[i].ID) {
			continue
		}
		if found == nil || t.Before(foundTime) {
			found = &records[i]
			foundTime = t
		}
	}

	return found
}

// First record with an arrival or departure at or after now. Records
// are expected in arrival order.
func NextTrain(records []model.VehicleRecord, now time.Time) *model.VehicleRecord {
	for i := range records {
		if records[i].ArrivalIsSet && !records[i].ArrivalTime.Before(now) {
			return &records[i]
		}
		if records[i].DepartureIsSet && !records[i].DepartureTime.Before(now) {
			return &records[i]
		}
	}
	return nil
}
