package main

import (
	"net/http"
	"time"

	"github.com/Andriy31193/smastund-scrapper/lib/configutil"
	"github.com/Andriy31193/smastund-scrapper/lib/scrapers/vinnustund"
	"github.com/Andriy31193/smastund-scrapper/lib/serviceutil"
	"github.com/Andriy31193/smastund-scrapper/lib/shiftstore"
	"github.com/Andriy31193/smastund-scrapper/services/shifts"
)

type Config struct {
	Port     int    `json:"port"`
	BaseUrl  string `json:"base_url"`
	Username string `json:"username"`
	Password string `json:"password"`

	RefreshAutomatically        bool    `json:"refresh_automatically"`
	AutomaticRefreshPeriodHours float64 `json:"automatic_refresh_period_hours"`
	KeepAlive                   bool    `json:"keep_alive"`
	KeepAliveIntervalMinutes    float64 `json:"keep_alive_interval_minutes"`

	MinRequestDelayMs int `json:"min_request_delay_ms"`
	MaxRequestDelayMs int `json:"max_request_delay_ms"`

	// empty disables snapshot persistence
	SnapshotDb string `json:"snapshot_db"`

	Verbose bool `json:"verbose"`
}

func main() {
	ctx := serviceutil.SignalContext()

	config, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil {
		serviceutil.Fatal("failed to load configuration", err)
	}
	if config.Port == 0 {
		config.Port = 5000
	}

	InitTelemetry(ctx, config.Verbose)

	opts := vinnustund.ClientOptions{
		BaseUrl:  config.BaseUrl,
		Username: config.Username,
		Password: config.Password,
		MinDelay: time.Duration(config.MinRequestDelayMs) * time.Millisecond,
		MaxDelay: time.Duration(config.MaxRequestDelayMs) * time.Millisecond,
	}
	if config.RefreshAutomatically {
		opts.RefreshPeriod = time.Duration(
			config.AutomaticRefreshPeriodHours * float64(time.Hour),
		)
	}
	if config.KeepAlive {
		opts.KeepAliveInterval = time.Duration(
			config.KeepAliveIntervalMinutes * float64(time.Minute),
		)
	}

	client, err := vinnustund.NewClient(ctx, opts)
	if err != nil {
		serviceutil.Fatal("failed to initialize session client", err)
	}

	var store *shiftstore.Store
	if config.SnapshotDb != "" {
		store, err = shiftstore.Open(config.SnapshotDb)
		if err != nil {
			serviceutil.Fatal("failed to open snapshot store", err)
		}
		defer store.Close()
	}

	service := shifts.NewService(client, store)

	mux := http.NewServeMux()
	service.RegisterRoutes(mux)
	go serviceutil.StartHttpServer(config.Port, mux)

	<-ctx.Done()
}
