package parse_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidbyt.dev/trainsignal/model"
	"tidbyt.dev/trainsignal/parse"
	"tidbyt.dev/trainsignal/testutil"
)

var base = time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC)

func at(minutes int) string {
	return testutil.FeedTime(base.Add(time.Duration(minutes) * time.Minute))
}

func extract(t *testing.T, trains []testutil.Train, station string) *parse.Extraction {
	feed, err := parse.ParseFeed(testutil.BuildFeedJSON(t, trains))
	require.NoError(t, err)
	return parse.Extract(feed, station, time.UTC)
}

func ids(records []model.VehicleRecord) []string {
	out := []string{}
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}

func TestExtractFiltersByStation(t *testing.T) {
	trains := []testutil.Train{
		{ID: 1, RouteName: "Northeast Regional", TrainNum: "156", DestCode: "NYP", Stops: []map[string]string{
			{"code": "A", "scharr": at(0)},
			{"code": "B", "scharr": at(10)},
			{"code": "C", "scharr": at(20)},
		}},
		{ID: 2, Stops: []map[string]string{
			{"code": "A", "scharr": at(5)},
			{"code": "C", "scharr": at(15)},
		}},
		{ID: 3, Stops: []map[string]string{
			{"code": "B", "scharr": at(30)},
		}, Extra: map[string]interface{}{
			"Heading":   "N",
			"Velocity":  "79.2",
			"StationX":  "",
			"Stations":  nil,
			"ViewStn1":  "B",
			"OriginTZ":  "E",
			"EventCode": "B",
		}},
	}

	ex := extract(t, trains, "B")
	assert.Empty(t, ex.Anomalies)
	assert.Equal(t, []string{"1", "3"}, ids(ex.Records))
	for _, r := range ex.Records {
		assert.Equal(t, "B", r.StationCode)
	}

	r := ex.Records[0]
	assert.Equal(t, "Northeast Regional", r.RouteName)
	assert.Equal(t, "156", r.TrainNumber)
	assert.Equal(t, "NYP", r.DestinationCode)
	assert.True(t, r.ArrivalIsSet)
	assert.Equal(t, base.Add(10*time.Minute), r.ArrivalTime)
	assert.False(t, r.DepartureIsSet)
}

func TestExtractSortedByArrival(t *testing.T) {
	trains := []testutil.Train{
		{ID: 10, Stops: []map[string]string{{"code": "WAS", "scharr": at(40)}}},
		{ID: 11, Stops: []map[string]string{{"code": "WAS", "scharr": at(-30)}}},
		{ID: 12, Stops: []map[string]string{{"code": "WAS", "scharr": at(5)}}},
		{ID: 13, Stops: []map[string]string{{"code": "WAS", "scharr": at(5)}}},
		{ID: 14, Stops: []map[string]string{{"code": "WAS", "scharr": at(-1)}}},
	}

	ex := extract(t, trains, "WAS")
	require.Len(t, ex.Records, 5)
	for i := 0; i+1 < len(ex.Records); i++ {
		assert.False(t, ex.Records[i+1].ArrivalTime.Before(ex.Records[i].ArrivalTime))
	}

	// Ties keep feed order
	assert.Equal(t, []string{"11", "14", "12", "13", "10"}, ids(ex.Records))
}

func TestExtractTimeTiers(t *testing.T) {
	for _, tc := range []struct {
		name          string
		stop          map[string]string
		arrival       string
		status        string
		departure     string
		departureSet  bool
		recordEmitted bool
	}{
		{
			"estimated wins",
			map[string]string{
				"estarr": at(3), "scharr": at(1), "postarr": at(2),
				"estarrcmnt": "2 MI LATE", "postcmnt": "ON TIME",
				"estdep": at(6), "schdep": at(4), "postdep": at(5),
			},
			at(3), "2 MI LATE", at(6), true, true,
		},
		{
			// Scheduled arrival pairs with the posted comment
			"scheduled uses posted comment",
			map[string]string{
				"scharr": at(1), "postarr": at(2),
				"estarrcmnt": "IGNORED", "postcmnt": "5 MI LATE",
				"schdep": at(4),
			},
			at(1), "5 MI LATE", at(4), true, true,
		},
		{
			"posted",
			map[string]string{
				"postarr": at(2), "postcmnt": "ARRIVED",
				"postdep": at(5),
			},
			at(2), "ARRIVED", at(5), true, true,
		},
		{
			"blank estimate falls through",
			map[string]string{
				"estarr": "", "estarrcmnt": "STALE", "scharr": at(1), "postcmnt": "",
			},
			at(1), "", "", false, true,
		},
		{
			"departure only",
			map[string]string{"schdep": at(4)},
			"", "", "", false, false,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			stop := map[string]string{"code": "WAS"}
			for k, v := range tc.stop {
				stop[k] = v
			}

			ex := extract(t, []testutil.Train{{ID: 1, Stops: []map[string]string{stop}}}, "WAS")
			if !tc.recordEmitted {
				assert.Empty(t, ex.Records)
				require.Len(t, ex.Anomalies, 1)
				assert.ErrorIs(t, ex.Anomalies[0], parse.ErrExtractionAnomaly)
				return
			}

			require.Len(t, ex.Records, 1)
			r := ex.Records[0]
			assert.Equal(t, tc.arrival, testutil.FeedTime(r.ArrivalTime))
			assert.Equal(t, tc.status, r.Status)
			assert.Equal(t, tc.departureSet, r.DepartureIsSet)
			if tc.departureSet {
				assert.Equal(t, tc.departure, testutil.FeedTime(r.DepartureTime))
			}
		})
	}
}

func TestExtractMalformedTimestampSkipsFeature(t *testing.T) {
	trains := []testutil.Train{
		{ID: 1, Stops: []map[string]string{{"code": "WAS", "scharr": "yesterday-ish"}}},
		{ID: 2, Stops: []map[string]string{{"code": "WAS", "scharr": at(0), "schdep": "13/45/2023 99:00:00"}}},
		{ID: 3, Stops: []map[string]string{{"code": "WAS", "scharr": at(1)}}},
	}

	ex := extract(t, trains, "WAS")
	assert.Equal(t, []string{"3"}, ids(ex.Records))
	require.Len(t, ex.Anomalies, 2)
	for _, err := range ex.Anomalies {
		assert.ErrorIs(t, err, parse.ErrMalformedTimestamp)
	}
	assert.Contains(t, ex.Anomalies[0].Error(), "feature 1")
	assert.Contains(t, ex.Anomalies[1].Error(), "feature 2")
}

func TestExtractBrokenStopDetail(t *testing.T) {
	trains := []testutil.Train{
		{ID: 1, Stops: []map[string]string{{"code": "WAS", "scharr": at(0)}}, Extra: map[string]interface{}{
			"Station9": "{not json",
			"Station8": "null",
			"Station7": "",
		}},
	}

	ex := extract(t, trains, "WAS")
	assert.Equal(t, []string{"1"}, ids(ex.Records))
	require.Len(t, ex.Anomalies, 1)
	assert.ErrorIs(t, ex.Anomalies[0], parse.ErrExtractionAnomaly)
}

func TestExtractSeveralStopsSameTrain(t *testing.T) {
	// A loop service calling twice at the same station
	trains := []testutil.Train{
		{ID: 7, Stops: []map[string]string{
			{"code": "WAS", "scharr": at(0), "schdep": at(2)},
			{"code": "BAL", "scharr": at(40)},
			{"code": "WAS", "scharr": at(90)},
		}},
	}

	ex := extract(t, trains, "WAS")
	require.Len(t, ex.Records, 2)
	assert.Equal(t, base, ex.Records[0].ArrivalTime)
	assert.True(t, ex.Records[0].DepartureIsSet)
	assert.Equal(t, base.Add(90*time.Minute), ex.Records[1].ArrivalTime)
}

func TestExtractTimezone(t *testing.T) {
	tz, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	feed, err := parse.ParseFeed(testutil.BuildFeedJSON(t, []testutil.Train{
		{ID: 1, Stops: []map[string]string{{"code": "WAS", "scharr": "05/01/2023 08:00:00"}}},
	}))
	require.NoError(t, err)

	ex := parse.Extract(feed, "WAS", tz)
	require.Len(t, ex.Records, 1)
	assert.Equal(t, time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC), ex.Records[0].ArrivalTime.UTC())
}

func TestParseTimestamp(t *testing.T) {
	ts, err := parse.ParseTimestamp("5/1/2023 7:04:05", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, 5, 1, 7, 4, 5, 0, time.UTC), ts)

	ts, err = parse.ParseTimestamp("12/31/2023 23:59:59", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, 12, 31, 23, 59, 59, 0, time.UTC), ts)

	for _, bad := range []string{"", "2023-05-01 12:00:00", "05/01/2023", "05/01/2023 12:00"} {
		_, err = parse.ParseTimestamp(bad, time.UTC)
		assert.ErrorIs(t, err, parse.ErrMalformedTimestamp, bad)
	}
}

func TestFeatureProperties(t *testing.T) {
	feed, err := parse.ParseFeed(`{"features":[{"id":42,"properties":{
		"TrainNum": 91,
		"RouteName": "Silver Star",
		"DestCode": null,
		"Station10": "{\"code\":\"X\"}",
		"Station2": "{\"code\":\"Y\"}",
		"Station1": ""
	}}]}`)
	require.NoError(t, err)
	require.Len(t, feed.Features, 1)

	f := &feed.Features[0]
	assert.Equal(t, "42", f.IDString())
	assert.Equal(t, "91", f.Property("TrainNum"))
	assert.Equal(t, "Silver Star", f.Property("RouteName"))
	assert.Equal(t, "", f.Property("DestCode"))
	assert.Equal(t, "", f.Property("Missing"))
	assert.Equal(t, []string{"Station1", "Station2", "Station10"}, f.StationKeys())

	detail, err := f.StopDetail("Station1")
	require.NoError(t, err)
	assert.Nil(t, detail)

	detail, err = f.StopDetail("Station10")
	require.NoError(t, err)
	assert.Equal(t, "X", detail.Code)
}

func TestParseFeedInvalid(t *testing.T) {
	_, err := parse.ParseFeed(`{"features": 7}`)
	assert.Error(t, err)
}

func TestResolveTables(t *testing.T) {
	detail := &parse.StopDetail{PostArr: "p", PostCmnt: "pc", EstArrCmnt: "ec", SchDep: "s"}

	res, ok := parse.Resolve(detail, parse.ArrivalTiers)
	require.True(t, ok)
	assert.Equal(t, parse.Resolution{Tier: "posted", Time: "p", Status: "pc"}, res)

	res, ok = parse.Resolve(detail, parse.DepartureTiers)
	require.True(t, ok)
	assert.Equal(t, parse.Resolution{Tier: "scheduled", Time: "s"}, res)

	_, ok = parse.Resolve(&parse.StopDetail{}, parse.ArrivalTiers)
	assert.False(t, ok)
}
