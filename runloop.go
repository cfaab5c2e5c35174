package trainsignal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/panics"

	"tidbyt.dev/trainsignal/model"
	"tidbyt.dev/trainsignal/parse"
	"tidbyt.dev/trainsignal/storage"
)

const (
	DefaultTickInterval = 10 * time.Second
	DefaultPollInterval = 60 * time.Second
)

var ErrCallbackFailed = errors.New("callback failed")

// Receives detected events. Calls are synchronous; the runloop waits
// for each to return before moving on. Implementations may start
// background work of their own (audio etc) without waiting for it.
type Announcer interface {
	OnArrival(record model.VehicleRecord, stations model.StationTable) error
	OnDeparture(record model.VehicleRecord, stations model.StationTable) error
}

// Adapts a pair of functions to Announcer. Nil functions are no-ops.
type AnnouncerFuncs struct {
	Arrival   func(record model.VehicleRecord, stations model.StationTable) error
	Departure func(record model.VehicleRecord, stations model.StationTable) error
}

func (a AnnouncerFuncs) OnArrival(record model.VehicleRecord, stations model.StationTable) error {
	if a.Arrival == nil {
		return nil
	}
	return a.Arrival(record, stations)
}

func (a AnnouncerFuncs) OnDeparture(record model.VehicleRecord, stations model.StationTable) error {
	if a.Departure == nil {
		return nil
	}
	return a.Departure(record, stations)
}

// Source of plaintext feed JSON. Satisfied by *feedcrypt.Client.
type FeedSource interface {
	FetchAndDecrypt(ctx context.Context) (string, error)
}

// Most recently extracted records, sorted by arrival time. Replaced
// wholesale on refresh.
type FeedCache struct {
	Records     []model.VehicleRecord
	RefreshedAt time.Time
}

func (c *FeedCache) Empty() bool {
	return len(c.Records) == 0
}

// Runloop polls the feed and fires the Announcer for every arrival
// and departure happening at the station. All state is owned by the
// goroutine calling Run (or Cycle); none of it is safe for concurrent
// use.
type Runloop struct {
	StationCode  string
	Stations     model.StationTable
	Source       FeedSource
	Announcer    Announcer
	Location     *time.Location
	TickInterval time.Duration
	PollInterval time.Duration

	// Optional journal of fired announcements.
	Journal storage.Storage

	// Fire the first cached record as an arrival/departure on the
	// next cycle with a non-empty cache. Cleared once fired.
	ForceArrival   bool
	ForceDeparture bool

	TimeNow func() time.Time

	cache      FeedCache
	arrivals   *Ledger
	departures *Ledger
}

func NewRunloop(
	stationCode string,
	stations model.StationTable,
	source FeedSource,
	announcer Announcer,
) *Runloop {
	return &Runloop{
		StationCode:  stationCode,
		Stations:     stations,
		Source:       source,
		Announcer:    announcer,
		Location:     time.Local,
		TickInterval: DefaultTickInterval,
		PollInterval: DefaultPollInterval,
		TimeNow:      time.Now,
		arrivals:     NewLedger(LedgerCapacity),
		departures:   NewLedger(LedgerCapacity),
	}
}

// Runs cycles every TickInterval until ctx is done. Faults within a
// cycle are logged and never stop the loop.
func (r *Runloop) Run(ctx context.Context) error {
	log.Info().
		Str("station", r.StationCode).
		Int("stations", len(r.Stations)).
		Dur("tick", r.TickInterval).
		Dur("poll", r.PollInterval).
		Msg("Starting runloop")

	for {
		startTime := time.Now()

		r.Cycle(ctx)

		waitTime := r.TickInterval - time.Since(startTime)
		if waitTime < 0 {
			waitTime = 0
		}

		timer := time.NewTimer(waitTime)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Info().Str("station", r.StationCode).Msg("Stopping runloop")
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Runs a single detect/refresh cycle.
func (r *Runloop) Cycle(ctx context.Context) {
	phase := "detect"

	var catcher panics.Catcher
	catcher.Try(func() {
		r.detect(model.EventArrival)
		r.detect(model.EventDeparture)

		phase = "refresh"
		now := r.TimeNow()
		if !r.NeedsRefresh(now) {
			log.Debug().
				Str("station", r.StationCode).
				Dur("since", now.Sub(r.cache.RefreshedAt)).
				Msg("Feed is fresh")
			return
		}

		err := r.Refresh(ctx)
		if err != nil {
			log.Error().
				Err(err).
				Str("station", r.StationCode).
				Str("phase", phase).
				Int("cached", len(r.cache.Records)).
				Msg("Refresh failed, keeping cached records")
		}
	})

	if recovered := catcher.Recovered(); recovered != nil {
		log.Error().
			Err(recovered.AsError()).
			Str("station", r.StationCode).
			Str("phase", phase).
			Msg("Cycle failed")
	}
}

// True if the cache is empty or older than PollInterval.
func (r *Runloop) NeedsRefresh(now time.Time) bool {
	if r.cache.Empty() {
		return true
	}
	return now.Sub(r.cache.RefreshedAt) >= r.PollInterval
}

// Fetches, decrypts and extracts the feed, replacing the cache. On
// failure the cache is left as is.
func (r *Runloop) Refresh(ctx context.Context) error {
	log.Info().Str("station", r.StationCode).Msg("Polling feed")

	plaintext, err := r.Source.FetchAndDecrypt(ctx)
	if err != nil {
		return fmt.Errorf("fetching feed: %w", err)
	}

	feed, err := parse.ParseFeed(plaintext)
	if err != nil {
		return fmt.Errorf("parsing feed: %w", err)
	}

	ex := parse.Extract(feed, r.StationCode, r.Location)
	for _, anomaly := range ex.Anomalies {
		log.Warn().
			Err(anomaly).
			Str("station", r.StationCode).
			Str("phase", "refresh").
			Msg("Skipped part of feed")
	}

	r.cache = FeedCache{
		Records:     ex.Records,
		RefreshedAt: r.TimeNow(),
	}

	log.Info().
		Str("station", r.StationCode).
		Int("features", len(feed.Features)).
		Int("trains", len(ex.Records)).
		Int("anomalies", len(ex.Anomalies)).
		Msg("Refreshed feed")

	return nil
}

// The current cache.
func (r *Runloop) Cache() FeedCache {
	return r.cache
}

// Replaces the cache. Mostly useful for tests and tools.
func (r *Runloop) SetCache(cache FeedCache) {
	r.cache = cache
}

// Dedupe ledger for the given kind.
func (r *Runloop) Ledger(kind model.EventKind) *Ledger {
	if kind == model.EventDeparture {
		return r.departures
	}
	return r.arrivals
}

func (r *Runloop) detect(kind model.EventKind) {
	now := r.TimeNow()
	ledger := r.Ledger(kind)

	force := r.ForceArrival
	if kind == model.EventDeparture {
		force = r.ForceDeparture
	}

	found := DetectNow(kind, r.cache.Records, ledger, now, force)
	if found == nil {
		log.Debug().
			Str("station", r.StationCode).
			Stringer("kind", kind).
			Msg("Nothing happening now")
		return
	}
	record := *found

	if force {
		if kind == model.EventDeparture {
			r.ForceDeparture = false
		} else {
			r.ForceArrival = false
		}
	}

	eventTime, _ := record.EventTime(kind)
	log.Info().
		Str("station", r.StationCode).
		Stringer("kind", kind).
		Str("id", record.ID).
		Str("train", record.TrainNumber).
		Str("route", record.RouteName).
		Str("destination", record.DestinationCode).
		Time("time", eventTime).
		Bool("forced", force).
		Msg("Announcing")

	err := r.announce(kind, record)

	// Recorded even if the callback failed, so a broken callback
	// can't fire again every tick.
	ledger.Insert(record.ID)

	if err != nil {
		log.Error().
			Err(err).
			Str("station", r.StationCode).
			Stringer("kind", kind).
			Str("id", record.ID).
			Str("phase", "callback").
			Msg("Announcement failed")
	}

	if r.Journal != nil {
		jerr := r.Journal.WriteAnnouncement(storage.NewAnnouncement(kind, record, now, err))
		if jerr != nil {
			log.Error().
				Err(jerr).
				Str("station", r.StationCode).
				Str("id", record.ID).
				Str("phase", "journal").
				Msg("Writing announcement to journal")
		}
	}
}

// Invokes the announcer, turning errors and panics into
// ErrCallbackFailed.
func (r *Runloop) announce(kind model.EventKind, record model.VehicleRecord) error {
	var err error
	var catcher panics.Catcher
	catcher.Try(func() {
		if kind == model.EventDeparture {
			err = r.Announcer.OnDeparture(record, r.Stations)
		} else {
			err = r.Announcer.OnArrival(record, r.Stations)
		}
	})

	if recovered := catcher.Recovered(); recovered != nil {
		return fmt.Errorf("%w: %w", ErrCallbackFailed, recovered.AsError())
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCallbackFailed, err)
	}
	return nil
}
