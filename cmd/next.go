package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"tidbyt.dev/trainsignal"
)

var nextCmd = &cobra.Command{
	Use:   "next",
	Short: "Shows the next train at the station",
	Args:  cobra.NoArgs,
	RunE:  next,
}

func next(cmd *cobra.Command, args []string) error {
	stations := LoadStationsOrEmpty()

	client := NewClient("", 0)

	loop, err := LoadFeed(context.Background(), stations, client)
	if err != nil {
		return err
	}

	record := trainsignal.NextTrain(loop.Cache().Records, time.Now())
	if record == nil {
		fmt.Printf("No upcoming trains at %s\n", stations.Name(cfg.StationCode))
		return nil
	}

	printRecord(*record, stations)

	return nil
}
