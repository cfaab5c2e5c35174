package main

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"tidbyt.dev/trainsignal/model"
	"tidbyt.dev/trainsignal/storage"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Lists past announcements from the journal",
	Args:  cobra.NoArgs,
	RunE:  history,
}

var (
	historyKind  string
	historySince time.Duration
	historyLimit int
)

func init() {
	historyCmd.Flags().StringVarP(&historyKind, "kind", "k", "", "Restrict to arrival or departure")
	historyCmd.Flags().DurationVarP(&historySince, "since", "", 0, "Only show announcements this recent")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "Limit the number of announcements listed")
}

func history(cmd *cobra.Command, args []string) error {
	filter := storage.ListAnnouncementsFilter{
		StationCode: cfg.StationCode,
		Limit:       historyLimit,
	}
	if historyKind != "" {
		kind, err := model.ParseEventKind(historyKind)
		if err != nil {
			return err
		}
		filter.Kinds = []model.EventKind{kind}
	}
	if historySince > 0 {
		filter.Since = time.Now().Add(-historySince)
	}

	if cfg.Journal.Backend == storage.BackendMemory {
		log.Warn().Msg("Journal backend is memory, nothing persists between runs")
	}

	journal, err := storage.Open(cfg.Journal.Backend, cfg.Journal.DSN)
	if err != nil {
		return fmt.Errorf("opening journal: %w", err)
	}
	defer journal.Close()

	announcements, err := journal.ListAnnouncements(filter)
	if err != nil {
		return err
	}

	for _, a := range announcements {
		status := "ok"
		if a.Error != "" {
			status = "failed: " + a.Error
		}
		fmt.Printf(
			"%s %s %s train %s (%s) at %s %s\n",
			a.AnnouncedAt.Local().Format(time.DateTime),
			a.Kind,
			a.RecordID,
			a.TrainNumber,
			a.RouteName,
			a.EventTime.Local().Format("15:04"),
			status,
		)
	}

	return nil
}
