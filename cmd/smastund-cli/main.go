package main

import (
	"context"

	"github.com/Andriy31193/smastund-scrapper/cmd/smastund-cli/commands"
	"github.com/Andriy31193/smastund-scrapper/lib/telemetry"
)

func main() {
	telemetry.InitSlog(true)
	telemetry.SetupFromEnv(context.Background(), "smastund-cli")
	commands.ExecuteContext(context.Background())
}
