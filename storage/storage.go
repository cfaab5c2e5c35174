package storage

import (
	"time"

	"tidbyt.dev/trainsignal/model"
)

// Journal of fired announcements. Written to after every detected
// event. Never read back for dedupe purposes.
type Storage interface {
	// Appends an announcement to the journal.
	WriteAnnouncement(a *Announcement) error

	// Retrieves announcements matching the filter, most recent
	// first.
	ListAnnouncements(filter ListAnnouncementsFilter) ([]*Announcement, error)

	Close() error
}

type ListAnnouncementsFilter struct {
	// If set, only include announcements for this station.
	StationCode string

	// If set, only include announcements of these kinds.
	Kinds []model.EventKind

	// If set, only include announcements made at or after this
	// time.
	Since time.Time

	// Maximum number of results. Zero means no limit.
	Limit int
}

// A single fired event.
type Announcement struct {
	Kind            model.EventKind
	RecordID        string
	StationCode     string
	DestinationCode string
	RouteName       string
	TrainNumber     string

	// Arrival or departure time of the train, as per the feed.
	EventTime time.Time

	AnnouncedAt time.Time

	// Callback error, if any.
	Error string
}

func NewAnnouncement(kind model.EventKind, record model.VehicleRecord, announcedAt time.Time, callbackErr error) *Announcement {
	eventTime, _ := record.EventTime(kind)
	a := &Announcement{
		Kind:            kind,
		RecordID:        record.ID,
		StationCode:     record.StationCode,
		DestinationCode: record.DestinationCode,
		RouteName:       record.RouteName,
		TrainNumber:     record.TrainNumber,
		EventTime:       eventTime,
		AnnouncedAt:     announcedAt,
	}
	if callbackErr != nil {
		a.Error = callbackErr.Error()
	}
	return a
}

func (f ListAnnouncementsFilter) matches(a *Announcement) bool {
	if f.StationCode != "" && a.StationCode != f.StationCode {
		return false
	}
	if !f.Since.IsZero() && a.AnnouncedAt.Before(f.Since) {
		return false
	}
	if len(f.Kinds) == 0 {
		return true
	}
	for _, kind := range f.Kinds {
		if a.Kind == kind {
			return true
		}
	}
	return false
}
