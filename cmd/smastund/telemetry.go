package main

import (
	"context"

	"github.com/Andriy31193/smastund-scrapper/lib/serviceutil"
	"github.com/Andriy31193/smastund-scrapper/lib/telemetry"
)

func InitTelemetry(ctx context.Context, verbose bool) {
	telemetry.InitSlog(verbose)

	err := telemetry.SetupFromEnv(ctx, "smastund")
	if err != nil {
		serviceutil.Fatal("failed to setup telemetry", err)
	}
	telemetry.InstrumentPerfStats(ctx)
}
