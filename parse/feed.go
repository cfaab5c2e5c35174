package parse

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"tidbyt.dev/trainsignal/model"
)

const (
	// Properties holding per stop detail start with this.
	StationPropertyPrefix = "Station"

	// Layout of all feed timestamps. Single digit month, day and
	// hour are accepted.
	TimestampLayout = "1/2/2006 15:04:05"
)

var (
	ErrMalformedTimestamp = errors.New("malformed timestamp")
	ErrExtractionAnomaly  = errors.New("extraction anomaly")
)

// The decrypted feed: a GeoJSON feature collection, one feature per
// train. Property keys vary from feature to feature.
type Feed struct {
	Features []Feature `json:"features"`
}

type Feature struct {
	ID         json.RawMessage            `json:"id"`
	Properties map[string]json.RawMessage `json:"properties"`
}

// Parses the plaintext feed JSON.
func ParseFeed(plaintext string) (*Feed, error) {
	feed := &Feed{}
	err := json.Unmarshal([]byte(plaintext), feed)
	if err != nil {
		return nil, fmt.Errorf("unmarshaling feed: %w", err)
	}
	return feed, nil
}

// Feature ID as a string. The feed uses numeric IDs.
func (f *Feature) IDString() string {
	return rawString(f.ID)
}

// Property value as a string. Numbers are returned verbatim, null
// and missing properties as "".
func (f *Feature) Property(key string) string {
	return rawString(f.Properties[key])
}

// Keys of all station properties, in stop order.
func (f *Feature) StationKeys() []string {
	keys := []string{}
	for key := range f.Properties {
		if strings.HasPrefix(key, StationPropertyPrefix) {
			keys = append(keys, key)
		}
	}
	// Station2 goes before Station10
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) < len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}

// Decodes the JSON string held by a station property. Returns nil if
// the property is empty or holds a JSON null.
func (f *Feature) StopDetail(key string) (*StopDetail, error) {
	encoded := f.Property(key)
	if encoded == "" {
		return nil, nil
	}

	var detail *StopDetail
	err := json.Unmarshal([]byte(encoded), &detail)
	if err != nil {
		return nil, errors.Wrapf(ErrExtractionAnomaly, "decoding %s: %s", key, err)
	}
	return detail, nil
}

func rawString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "null" {
		return ""
	}
	return trimmed
}

// Result of extracting records for a station. Anomalies are the
// non-fatal problems hit along the way; each has caused a stop or an
// entire feature to be skipped.
type Extraction struct {
	Records   []model.VehicleRecord
	Anomalies []error
}

// Extracts records for trains calling at the given station, sorted by
// arrival time. Feed timestamps are interpreted in loc.
func Extract(feed *Feed, stationCode string, loc *time.Location) *Extraction {
	if loc == nil {
		loc = time.Local
	}

	ex := &Extraction{Records: []model.VehicleRecord{}}

	for i := range feed.Features {
		feature := &feed.Features[i]

		records, err := extractFeature(feature, stationCode, loc, ex)
		if err != nil {
			ex.Anomalies = append(ex.Anomalies, errors.Wrapf(err, "feature %s", feature.IDString()))
			continue
		}
		ex.Records = append(ex.Records, records...)
	}

	sort.SliceStable(ex.Records, func(i, j int) bool {
		return ex.Records[i].ArrivalTime.Before(ex.Records[j].ArrivalTime)
	})

	return ex
}

// Records for a single feature. Stop level anomalies are added to
// ex; a returned error means the whole feature must be dropped.
func extractFeature(
	feature *Feature,
	stationCode string,
	loc *time.Location,
	ex *Extraction,
) ([]model.VehicleRecord, error) {

	id := feature.IDString()
	records := []model.VehicleRecord{}

	for _, key := range feature.StationKeys() {
		detail, err := feature.StopDetail(key)
		if err != nil {
			ex.Anomalies = append(ex.Anomalies, errors.Wrapf(err, "feature %s", id))
			continue
		}
		if detail == nil || detail.Code != stationCode {
			continue
		}

		arrival, ok := Resolve(detail, ArrivalTiers)
		if !ok {
			ex.Anomalies = append(ex.Anomalies, errors.Wrapf(
				ErrExtractionAnomaly,
				"feature %s %s: no arrival time at %s", id, key, stationCode,
			))
			continue
		}

		record := model.VehicleRecord{
			ID:              id,
			StationCode:     detail.Code,
			DestinationCode: feature.Property("DestCode"),
			RouteName:       feature.Property("RouteName"),
			TrainNumber:     feature.Property("TrainNum"),
			Status:          arrival.Status,
		}

		record.ArrivalTime, err = ParseTimestamp(arrival.Time, loc)
		if err != nil {
			return nil, errors.Wrapf(err, "%s %s arrival", key, arrival.Tier)
		}
		record.ArrivalIsSet = true

		if departure, ok := Resolve(detail, DepartureTiers); ok {
			record.DepartureTime, err = ParseTimestamp(departure.Time, loc)
			if err != nil {
				return nil, errors.Wrapf(err, "%s %s departure", key, departure.Tier)
			}
			record.DepartureIsSet = true
		}

		records = append(records, record)
	}

	return records, nil
}

// Parses a feed timestamp ("month/day/year hour:minute:second").
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(TimestampLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, errors.Wrapf(ErrMalformedTimestamp, "%q", s)
	}
	return t, nil
}
