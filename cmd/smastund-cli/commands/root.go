package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Andriy31193/smastund-scrapper/lib/configutil"
	"github.com/Andriy31193/smastund-scrapper/lib/scrapers/vinnustund"
	"github.com/Andriy31193/smastund-scrapper/lib/serviceutil"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "smastund-cli",
	Short: "smastund-cli probes the attendance session and fetches shifts from the command line.",
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type Config struct {
	BaseUrl  string `json:"base_url"`
	Username string `json:"username"`
	Password string `json:"password"`

	MinRequestDelayMs int `json:"min_request_delay_ms"`
	MaxRequestDelayMs int `json:"max_request_delay_ms"`
}

// one-shot client: no background daemons, lifetime is the command run
func createClient(ctx context.Context) *vinnustund.Client {
	cfg, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}

	client, err := vinnustund.NewClient(ctx, vinnustund.ClientOptions{
		BaseUrl:  cfg.BaseUrl,
		Username: cfg.Username,
		Password: cfg.Password,
		MinDelay: time.Duration(cfg.MinRequestDelayMs) * time.Millisecond,
		MaxDelay: time.Duration(cfg.MaxRequestDelayMs) * time.Millisecond,
	})
	if err != nil {
		serviceutil.Fatal("failed to initialize session client", err)
	}
	return client
}
