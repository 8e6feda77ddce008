package commands

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/Andriy31193/smastund-scrapper/lib/scrapers/vinnustund"
	"github.com/Andriy31193/smastund-scrapper/lib/serviceutil"
	"github.com/Andriy31193/smastund-scrapper/lib/timezone"
	"github.com/Andriy31193/smastund-scrapper/services/shifts"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var shiftsFrom *string
var shiftsTo *string

func init() {
	now := timezone.Now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, timezone.Location)
	monthEnd := monthStart.AddDate(0, 1, -1)

	shiftsFrom = shiftsCmd.Flags().String("from", monthStart.Format("02.01.2006"), "Start date (dd.MM.yyyy).")
	shiftsTo = shiftsCmd.Flags().String("to", monthEnd.Format("02.01.2006"), "End date (dd.MM.yyyy).")
	rootCmd.AddCommand(shiftsCmd)
}

var shiftsCmd = &cobra.Command{
	Use:   "shifts [--from <dd.MM.yyyy>] [--to <dd.MM.yyyy>]",
	Short: "Fetches the shift table for a date range and renders it.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute*3)
		defer cancel()

		client := createClient(ctx)
		service := shifts.NewService(client, nil)

		t1 := time.Now()
		records, err := service.RetrieveShifts(ctx, *shiftsFrom, *shiftsTo)
		if err != nil {
			serviceutil.Fatal("failed to retrieve shifts", err)
		}
		slog.Info(
			"retrieved shifts",
			"count", len(records),
			"seconds", time.Since(t1).Seconds(),
		)

		renderShiftTable(records)
	},
}

func renderShiftTable(records []vinnustund.ShiftRecord) {
	w := table.NewWriter()
	w.SetOutputMirror(os.Stdout)
	w.AppendHeader(table.Row{
		"Day", "Date", "Entered", "Total", "S", "T",
		"Pay 1", "Pay 2", "Pay 3", "Pay 4", "Pay 5",
	})
	for _, r := range records {
		w.AppendRow(table.Row{
			r.DayOfWeek, r.Date, r.TimeEntered, r.TotalHours,
			r.StatusShift, r.StatusTime,
			r.PayElements.PayElement1, r.PayElements.PayElement2,
			r.PayElements.PayElement3, r.PayElements.PayElement4,
			r.PayElements.PayElement5,
		})
	}
	w.Render()
}
