package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/config"
)

var (
	apiFlag string
	rootCmd = &cobra.Command{
		Use:           "chatctl",
		Short:         "Admin CLI for the messenger service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// loadConfig reads the same MESSENGER_* environment the server uses.
func loadConfig() (*config.Config, error) {
	_ = godotenv.Load(".env")
	return config.New()
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&apiFlag, "api", "a", "http://localhost:3000", "Messenger service base URL")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
