package commands

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/Andriy31193/smastund-scrapper/lib/configutil"
	"github.com/Andriy31193/smastund-scrapper/lib/serviceutil"
	"github.com/Andriy31193/smastund-scrapper/lib/shiftstore"
	"github.com/Andriy31193/smastund-scrapper/lib/timezone"

	"github.com/spf13/cobra"
)

var snapshotFrom *string
var snapshotTo *string

func init() {
	now := timezone.Now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, timezone.Location)
	monthEnd := monthStart.AddDate(0, 1, -1)

	snapshotFrom = snapshotCmd.Flags().String("from", monthStart.Format("02.01.2006"), "Start date (dd.MM.yyyy).")
	snapshotTo = snapshotCmd.Flags().String("to", monthEnd.Format("02.01.2006"), "End date (dd.MM.yyyy).")
	rootCmd.AddCommand(snapshotCmd)
}

type snapshotConfig struct {
	SnapshotDb string `json:"snapshot_db"`
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot [--from <dd.MM.yyyy>] [--to <dd.MM.yyyy>]",
	Short: "Shows the last recorded shift snapshot for a date range without touching the remote.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := configutil.ReadConfig[snapshotConfig]("config.json5")
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}
		if cfg.SnapshotDb == "" {
			serviceutil.Fatal("no snapshot store configured", fmt.Errorf("snapshot_db is empty in config.json5"))
		}

		store, err := shiftstore.Open(cfg.SnapshotDb)
		if err != nil {
			serviceutil.Fatal("failed to open snapshot store", err)
		}
		defer store.Close()

		snap, ok, err := store.Latest(cmd.Context(), *snapshotFrom, *snapshotTo)
		if err != nil {
			serviceutil.Fatal("failed to read snapshot", err)
		}
		if !ok {
			slog.Info("no snapshot recorded for this range", "from", *snapshotFrom, "to", *snapshotTo)
			return
		}

		slog.Info(
			"latest snapshot",
			"taken_at", snap.TakenAt.In(timezone.Location),
			"count", len(snap.Records),
		)
		renderShiftTable(snap.Records)
	},
}
