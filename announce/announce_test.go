package announce_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidbyt.dev/trainsignal/announce"
	"tidbyt.dev/trainsignal/model"
)

var stations = model.StationTable{
	"WAS": "Washington Union",
	"NYP": "New York Penn",
}

var regional = model.VehicleRecord{
	ID:              "42",
	StationCode:     "WAS",
	DestinationCode: "NYP",
	RouteName:       "Northeast Regional",
	TrainNumber:     "156",
	ArrivalIsSet:    true,
	ArrivalTime:     time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC),
	DepartureIsSet:  true,
	DepartureTime:   time.Date(2023, 5, 1, 12, 10, 0, 0, time.UTC),
	Status:          "On Time",
}

func TestFormatArrival(t *testing.T) {
	assert.Equal(
		t,
		`Now arriving at Washington Union station.<break time="0.25s"/> The <emphasis>Northeast Regional</emphasis> <break time="0.05s"/> number <break time="0.005s"/> <emphasis>156</emphasis> <break time="0.05s"/> bound for <break time="0.005s"/> <emphasis>New York Penn</emphasis> station.`,
		announce.FormatArrival(regional, stations),
	)
}

func TestFormatDeparture(t *testing.T) {
	text := announce.FormatDeparture(regional, stations)
	assert.True(t, strings.HasPrefix(text, `Now departing Washington Union station.<break time="0.25s"/> The <emphasis>Northeast Regional</emphasis>`))
	assert.Equal(t, text, announce.Format(model.EventDeparture, regional, stations))
	assert.Equal(t, announce.FormatArrival(regional, stations), announce.Format(model.EventArrival, regional, stations))
}

func TestFormatUnknownStations(t *testing.T) {
	text := announce.FormatArrival(regional, model.StationTable{})
	assert.Contains(t, text, "Now arriving at WAS station.")
	assert.Contains(t, text, "<emphasis>NYP</emphasis> station.")
}

func TestFormatEscapes(t *testing.T) {
	r := regional
	r.RouteName = "Cardinal & Hoosier <State>"
	text := announce.FormatArrival(r, stations)
	assert.Contains(t, text, "<emphasis>Cardinal &amp; Hoosier &lt;State&gt;</emphasis>")
}

func TestSpeak(t *testing.T) {
	assert.Equal(t, `<speak><break time="1s"/>hello</speak>`, announce.Speak("hello"))
}

func TestLogAnnouncer(t *testing.T) {
	a := announce.LogAnnouncer{}
	assert.NoError(t, a.OnArrival(regional, stations))
	assert.NoError(t, a.OnDeparture(regional, stations))
}

func TestHookAnnouncer(t *testing.T) {
	dir := t.TempDir()
	stdinFile := filepath.Join(dir, "stdin")
	envFile := filepath.Join(dir, "env")

	hook := announce.NewHookAnnouncer(
		"cat > "+stdinFile+"; env > "+envFile,
		"/srv/audio",
	)

	require.NoError(t, hook.OnDeparture(regional, stations))

	stdin, err := os.ReadFile(stdinFile)
	require.NoError(t, err)
	assert.Equal(t, announce.Speak(announce.FormatDeparture(regional, stations)), string(stdin))

	env, err := os.ReadFile(envFile)
	require.NoError(t, err)
	lines := strings.Split(string(env), "\n")
	for _, expected := range []string{
		"TRAIN_EVENT=departure",
		"TRAIN_ID=42",
		"TRAIN_STATION=WAS",
		"TRAIN_STATION_NAME=Washington Union",
		"TRAIN_DESTINATION=NYP",
		"TRAIN_DESTINATION_NAME=New York Penn",
		"TRAIN_ROUTE=Northeast Regional",
		"TRAIN_NUMBER=156",
		"TRAIN_TIME=2023-05-01T12:10:00Z",
		"TRAIN_STATUS=On Time",
		"AUDIO_DIR=/srv/audio",
	} {
		assert.Contains(t, lines, expected)
	}
}

func TestHookAnnouncerFailure(t *testing.T) {
	hook := announce.NewHookAnnouncer("echo servo jammed >&2; exit 3", "")

	err := hook.OnArrival(regional, stations)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "servo jammed")
}

func TestHookAnnouncerWaitsByDefault(t *testing.T) {
	hook := announce.NewHookAnnouncer("sleep 0.3", "")
	assert.Equal(t, time.Duration(0), hook.Timeout)

	startTime := time.Now()
	require.NoError(t, hook.OnArrival(regional, stations))
	assert.GreaterOrEqual(t, time.Since(startTime), 300*time.Millisecond)
}

func TestHookAnnouncerTimeout(t *testing.T) {
	hook := announce.NewHookAnnouncer("sleep 5", "")
	hook.Timeout = 50 * time.Millisecond

	startTime := time.Now()
	err := hook.OnArrival(regional, stations)
	assert.Error(t, err)
	assert.Less(t, time.Since(startTime), 4*time.Second)
}
