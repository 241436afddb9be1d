package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"sen66-server/internal/config"
	"sen66-server/internal/db"
	"sen66-server/internal/db/migrate"
	"sen66-server/internal/iaq"
	"sen66-server/internal/logging"
	"sen66-server/internal/snapshot"
)

const usage = `usage: %s <command>
  migrate    apply pending schema migrations
  snapshot   print the persisted latest reading of every station
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, usage, os.Args[0])
		os.Exit(1)
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg, "dev", "sen66-tools")

	if err := run(context.Background(), os.Args[1], cfg, logger, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd string, cfg config.Config, logger *slog.Logger, out io.Writer) error {
	switch cmd {
	case "migrate", "snapshot":
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}

	conn, err := db.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(conn); closeErr != nil {
			logger.Error("db close", "error", closeErr)
		}
	}()

	if cmd == "migrate" {
		applied, err := migrate.Run(ctx, conn, logger)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(out, "migrations applied: %d\n", len(applied))
		return err
	}

	snaps, err := snapshot.NewRepository(conn).List(ctx)
	if err != nil {
		return err
	}
	return printSnapshots(out, snaps)
}

func printSnapshots(out io.Writer, snaps []snapshot.Snapshot) error {
	if len(snaps) == 0 {
		_, err := fmt.Fprintln(out, "no snapshots")
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STATION\tREADING TIME\tSAVED AT\tIAQ\tREADING")
	for _, s := range snaps {
		dom := iaq.Dominant(s.Reading)
		score := "-"
		if dom.Score != nil {
			score = fmt.Sprintf("%.0f", *dom.Score)
		}
		payload, err := json.Marshal(s.Reading)
		if err != nil {
			return err
		}
		readingTime := "-"
		if !s.Reading.Time.IsZero() {
			readingTime = s.Reading.Time.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s %s\t%s\n",
			s.Station, readingTime, s.SavedAt.UTC().Format(time.RFC3339), score, dom.Label, payload)
	}
	return tw.Flush()
}
