package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "health",
		Short: "Query a running server's health endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHealth(apiFlag, os.Stdout)
		},
	})
}

// runHealth prints the /api/health body and fails when the server reports
// itself unhealthy.
func runHealth(api string, out io.Writer) error {
	resp, err := resty.New().
		SetTimeout(5 * time.Second).
		R().
		Get(api + "/api/health")
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(out, resp.String())
	if resp.IsError() {
		return fmt.Errorf("server unhealthy: HTTP %d", resp.StatusCode())
	}
	return nil
}
