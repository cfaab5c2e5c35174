package announce

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"tidbyt.dev/trainsignal/model"
)

// Logs the announcement text. Never fails.
type LogAnnouncer struct{}

func (LogAnnouncer) OnArrival(record model.VehicleRecord, stations model.StationTable) error {
	logAnnouncement(model.EventArrival, record, stations)
	return nil
}

func (LogAnnouncer) OnDeparture(record model.VehicleRecord, stations model.StationTable) error {
	logAnnouncement(model.EventDeparture, record, stations)
	return nil
}

func logAnnouncement(kind model.EventKind, record model.VehicleRecord, stations model.StationTable) {
	log.Info().
		Stringer("kind", kind).
		Str("id", record.ID).
		Str("station", record.StationCode).
		Str("train", record.TrainNumber).
		Str("text", Format(kind, record, stations)).
		Msg("Will say")
}

// Runs an external command for every announcement. The command gets
// the SSML document on stdin and the event in its environment:
//
//	TRAIN_EVENT             arrival or departure
//	TRAIN_ID                feed identifier
//	TRAIN_STATION           station code
//	TRAIN_STATION_NAME      station display name
//	TRAIN_DESTINATION       destination code
//	TRAIN_DESTINATION_NAME  destination display name
//	TRAIN_ROUTE             route name
//	TRAIN_NUMBER            train number
//	TRAIN_TIME              event time, RFC 3339
//	TRAIN_STATUS            status text, possibly empty
//	AUDIO_DIR               directory for audio assets
//
// The runloop blocks until the command exits.
type HookAnnouncer struct {
	// Run with "sh -c".
	Command  string
	AudioDir string

	// Kill the command after this long. Zero waits indefinitely.
	Timeout time.Duration
}

func NewHookAnnouncer(command string, audioDir string) *HookAnnouncer {
	return &HookAnnouncer{
		Command:  command,
		AudioDir: audioDir,
	}
}

func (h *HookAnnouncer) OnArrival(record model.VehicleRecord, stations model.StationTable) error {
	return h.run(model.EventArrival, record, stations)
}

func (h *HookAnnouncer) OnDeparture(record model.VehicleRecord, stations model.StationTable) error {
	return h.run(model.EventDeparture, record, stations)
}

func (h *HookAnnouncer) run(kind model.EventKind, record model.VehicleRecord, stations model.StationTable) error {
	logAnnouncement(kind, record, stations)

	ctx := context.Background()
	if h.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", h.Command)
	cmd.Env = append(os.Environ(), hookEnv(kind, record, stations, h.AudioDir)...)
	cmd.Stdin = strings.NewReader(Speak(Format(kind, record, stations)))
	cmd.WaitDelay = time.Second

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	startTime := time.Now()
	err := cmd.Run()

	log.Debug().
		Stringer("kind", kind).
		Str("id", record.ID).
		Dur("took", time.Since(startTime)).
		Str("output", output.String()).
		Msg("Hook finished")

	if err != nil {
		return fmt.Errorf("running hook %q: %w: %s", h.Command, err, strings.TrimSpace(output.String()))
	}

	return nil
}

func hookEnv(kind model.EventKind, record model.VehicleRecord, stations model.StationTable, audioDir string) []string {
	eventTime, _ := record.EventTime(kind)

	return []string{
		"TRAIN_EVENT=" + kind.String(),
		"TRAIN_ID=" + record.ID,
		"TRAIN_STATION=" + record.StationCode,
		"TRAIN_STATION_NAME=" + stations.Name(record.StationCode),
		"TRAIN_DESTINATION=" + record.DestinationCode,
		"TRAIN_DESTINATION_NAME=" + stations.Name(record.DestinationCode),
		"TRAIN_ROUTE=" + record.RouteName,
		"TRAIN_NUMBER=" + record.TrainNumber,
		"TRAIN_TIME=" + eventTime.Format(time.RFC3339),
		"TRAIN_STATUS=" + record.Status,
		"AUDIO_DIR=" + audioDir,
	}
}
