package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"tidbyt.dev/trainsignal/export"
	"tidbyt.dev/trainsignal/model"
)

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Fetches the feed once and prints the station's trains",
	Args:  cobra.NoArgs,
	RunE:  dump,
}

var (
	dumpFormat string
	cacheFile  string
	cacheTTL   time.Duration
)

func init() {
	dumpCmd.Flags().StringVarP(&dumpFormat, "format", "f", "text", "Output format: text, json, plaintext or gtfsrt")
	dumpCmd.Flags().StringVarP(&cacheFile, "cache-file", "", "", "Capture the feed response to this file and replay it on later runs")
	dumpCmd.Flags().DurationVarP(&cacheTTL, "cache-ttl", "", 0, "How long a cached response is replayed (0 for forever)")
}

func dump(cmd *cobra.Command, args []string) error {
	client := NewClient(cacheFile, cacheTTL)
	ctx := context.Background()

	if dumpFormat == "plaintext" {
		plaintext, err := client.FetchAndDecrypt(ctx)
		if err != nil {
			return err
		}
		fmt.Println(plaintext)
		return nil
	}

	stations := LoadStationsOrEmpty()

	loop, err := LoadFeed(ctx, stations, client)
	if err != nil {
		return err
	}
	cache := loop.Cache()

	switch dumpFormat {
	case "text":
		for _, record := range cache.Records {
			printRecord(record, stations)
		}

	case "json":
		buf, err := json.MarshalIndent(cache.Records, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling: %w", err)
		}
		fmt.Println(string(buf))

	case "gtfsrt":
		data, err := export.Marshal(cache.Records, cache.RefreshedAt)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		if err != nil {
			return err
		}

	default:
		return fmt.Errorf("unknown format '%s'", dumpFormat)
	}

	return nil
}

func printRecord(record model.VehicleRecord, stations model.StationTable) {
	arrival := "-"
	if record.ArrivalIsSet {
		arrival = record.ArrivalTime.Format("15:04")
	}
	departure := "-"
	if record.DepartureIsSet {
		departure = record.DepartureTime.Format("15:04")
	}

	fmt.Printf(
		"%s %s %s to %s arr %s dep %s %s\n",
		record.ID,
		record.TrainNumber,
		record.RouteName,
		stations.Name(record.DestinationCode),
		arrival,
		departure,
		record.Status,
	)
}
