package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"tidbyt.dev/trainsignal"
	"tidbyt.dev/trainsignal/announce"
	"tidbyt.dev/trainsignal/storage"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Runs the signal until interrupted",
	Args:  cobra.NoArgs,
	RunE:  run,
}

func run(cmd *cobra.Command, args []string) error {
	stations, err := LoadStations()
	if err != nil {
		return fmt.Errorf("loading stations: %w", err)
	}

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	journal, err := storage.Open(cfg.Journal.Backend, cfg.Journal.DSN)
	if err != nil {
		return fmt.Errorf("opening journal: %w", err)
	}
	defer journal.Close()

	var announcer trainsignal.Announcer = announce.LogAnnouncer{}
	if cfg.HookCommand != "" {
		announcer = announce.NewHookAnnouncer(cfg.HookCommand, cfg.AudioDir)
		log.Info().Str("command", cfg.HookCommand).Msg("Announcing through hook")
	}

	client := NewClient("", 0)

	loop := trainsignal.NewRunloop(cfg.StationCode, stations, client, announcer)
	loop.Location = loc
	loop.TickInterval = cfg.TickInterval
	loop.PollInterval = cfg.PollInterval
	loop.Journal = journal
	loop.ForceArrival = cfg.ForceArrival
	loop.ForceDeparture = cfg.ForceDeparture

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = loop.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
