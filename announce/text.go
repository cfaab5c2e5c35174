package announce

import (
	"fmt"
	"strings"

	"tidbyt.dev/trainsignal/model"
)

// Speakable SSML fragments. Wrap with Speak before handing to a
// speech synthesizer.

func FormatArrival(record model.VehicleRecord, stations model.StationTable) string {
	return fmt.Sprintf(
		`Now arriving at %s station.<break time="0.25s"/> %s`,
		escape(stations.Name(record.StationCode)),
		trainPhrase(record, stations),
	)
}

func FormatDeparture(record model.VehicleRecord, stations model.StationTable) string {
	return fmt.Sprintf(
		`Now departing %s station.<break time="0.25s"/> %s`,
		escape(stations.Name(record.StationCode)),
		trainPhrase(record, stations),
	)
}

func Format(kind model.EventKind, record model.VehicleRecord, stations model.StationTable) string {
	if kind == model.EventDeparture {
		return FormatDeparture(record, stations)
	}
	return FormatArrival(record, stations)
}

// Wraps text in a speak element, with a second of leading silence.
func Speak(text string) string {
	return `<speak><break time="1s"/>` + text + `</speak>`
}

func trainPhrase(record model.VehicleRecord, stations model.StationTable) string {
	return fmt.Sprintf(
		`The <emphasis>%s</emphasis> <break time="0.05s"/> number <break time="0.005s"/> <emphasis>%s</emphasis> <break time="0.05s"/> bound for <break time="0.005s"/> <emphasis>%s</emphasis> station.`,
		escape(record.RouteName),
		escape(record.TrainNumber),
		escape(stations.Name(record.DestinationCode)),
	)
}

var escaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
)

func escape(s string) string {
	return escaper.Replace(s)
}
