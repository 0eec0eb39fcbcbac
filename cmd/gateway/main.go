package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
	routesPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "gateway",
		Short:         "HTTP gateway with per-route CORS policies",
		Long:          "Serves configured routes and answers CORS preflights for every CORS-enabled path",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", getEnv("GATEWAY_CONFIG", "configs/config.yaml"), "path to the gateway configuration")
	rootCmd.PersistentFlags().StringVar(&opts.routesPath, "routes", getEnv("GATEWAY_ROUTES", "configs/routes.yaml"), "path to the route configuration")

	rootCmd.AddCommand(newServeCmd(opts))
	rootCmd.AddCommand(newRoutesCmd(opts))

	return rootCmd
}

// getEnv retrieves environment variable or returns the provided default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
