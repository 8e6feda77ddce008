package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Andriy31193/smastund-scrapper/lib/serviceutil"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(authCmd)
}

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Logs in with the configured credentials and probes the session.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithTimeout(cmd.Context(), time.Second*60)
		defer cancel()

		client := createClient(ctx)

		sess, err := client.Login(ctx)
		if err != nil {
			serviceutil.Fatal("login failed", err)
		}
		if !client.IsAuthenticated(ctx) {
			serviceutil.Fatal("session probe failed", fmt.Errorf("login succeeded but the probe classified the session as expired"))
		}

		slog.Info("session is authenticated", "login_at", sess.LoginAt)
	},
}
