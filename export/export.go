package export

// Renders cached records as a GTFS Realtime TripUpdate feed, so
// standard GTFS-RT tooling can inspect what the signal sees.

import (
	"fmt"
	"time"

	gtfsproto "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	proto "google.golang.org/protobuf/proto"

	"tidbyt.dev/trainsignal/model"
)

// One entity per record, each with a single StopTimeUpdate for the
// tracked station. The train number goes in the vehicle label.
func BuildFeed(records []model.VehicleRecord, timestamp time.Time) *gtfsproto.FeedMessage {
	entity := make([]*gtfsproto.FeedEntity, 0, len(records))

	for _, record := range records {
		stopSchedRel := gtfsproto.TripUpdate_StopTimeUpdate_SCHEDULED
		stup := &gtfsproto.TripUpdate_StopTimeUpdate{
			StopId:               proto.String(record.StationCode),
			ScheduleRelationship: &stopSchedRel,
		}
		if record.ArrivalIsSet {
			stup.Arrival = &gtfsproto.TripUpdate_StopTimeEvent{
				Time: proto.Int64(record.ArrivalTime.Unix()),
			}
		}
		if record.DepartureIsSet {
			stup.Departure = &gtfsproto.TripUpdate_StopTimeEvent{
				Time: proto.Int64(record.DepartureTime.Unix()),
			}
		}

		tripSchedRel := gtfsproto.TripDescriptor_SCHEDULED
		entity = append(entity, &gtfsproto.FeedEntity{
			Id: proto.String(record.ID),
			TripUpdate: &gtfsproto.TripUpdate{
				Trip: &gtfsproto.TripDescriptor{
					TripId:               proto.String(record.ID),
					RouteId:              proto.String(record.RouteName),
					ScheduleRelationship: &tripSchedRel,
				},
				Vehicle: &gtfsproto.VehicleDescriptor{
					Label: proto.String(record.TrainNumber),
				},
				StopTimeUpdate: []*gtfsproto.TripUpdate_StopTimeUpdate{stup},
			},
		})
	}

	incrementality := gtfsproto.FeedHeader_FULL_DATASET
	return &gtfsproto.FeedMessage{
		Header: &gtfsproto.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
			Incrementality:      &incrementality,
			Timestamp:           proto.Uint64(uint64(timestamp.Unix())),
		},
		Entity: entity,
	}
}

func Marshal(records []model.VehicleRecord, timestamp time.Time) ([]byte, error) {
	data, err := proto.Marshal(BuildFeed(records, timestamp))
	if err != nil {
		return nil, fmt.Errorf("marshaling protobuf: %w", err)
	}
	return data, nil
}

// Reads a feed produced by Marshal back into records, with times in
// loc. Destination and status don't survive the trip.
func Unmarshal(data []byte, loc *time.Location) ([]model.VehicleRecord, time.Time, error) {
	f := &gtfsproto.FeedMessage{}
	err := proto.Unmarshal(data, f)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("unmarshaling protobuf: %w", err)
	}

	header := f.GetHeader()

	version := header.GetGtfsRealtimeVersion()
	if version != "2.0" && version != "1.0" {
		return nil, time.Time{}, fmt.Errorf("version %s not supported", version)
	}

	if header.GetIncrementality() != gtfsproto.FeedHeader_FULL_DATASET {
		return nil, time.Time{}, fmt.Errorf("feed incrementality %s not supported", header.GetIncrementality())
	}

	timestamp := time.Unix(int64(header.GetTimestamp()), 0).In(loc)

	records := make([]model.VehicleRecord, 0, len(f.GetEntity()))
	for _, entity := range f.GetEntity() {
		tripUpdate := entity.GetTripUpdate()
		if tripUpdate == nil {
			continue
		}

		stups := tripUpdate.GetStopTimeUpdate()
		if len(stups) != 1 {
			return nil, time.Time{}, fmt.Errorf("entity %s: expected 1 stop time update, found %d", entity.GetId(), len(stups))
		}
		stup := stups[0]

		record := model.VehicleRecord{
			ID:          tripUpdate.GetTrip().GetTripId(),
			StationCode: stup.GetStopId(),
			RouteName:   tripUpdate.GetTrip().GetRouteId(),
			TrainNumber: tripUpdate.GetVehicle().GetLabel(),
		}
		if stup.Arrival != nil {
			record.ArrivalIsSet = true
			record.ArrivalTime = time.Unix(stup.GetArrival().GetTime(), 0).In(loc)
		}
		if stup.Departure != nil {
			record.DepartureIsSet = true
			record.DepartureTime = time.Unix(stup.GetDeparture().GetTime(), 0).In(loc)
		}

		records = append(records, record)
	}

	return records, timestamp, nil
}
