package main

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"cors-gateway/internal/config"
	"cors-gateway/internal/cors"
	"cors-gateway/internal/server"
	"cors-gateway/pkg/logger"

	"github.com/spf13/cobra"
)

func newRoutesCmd(opts *rootOptions) *cobra.Command {
	var wide bool

	cmd := &cobra.Command{
		Use:   "routes",
		Short: "Print the route table with each route's CORS policy",
		Long:  "Builds the route table exactly like serve does, synthesized preflight routes included, and prints it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(opts.configPath)
			if err != nil {
				return err
			}
			routes, err := config.LoadRoutes(opts.routesPath)
			if err != nil {
				return err
			}

			router, err := server.NewRouter(cfg.Cors, logger.NewNop(), nil)
			if err != nil {
				return err
			}
			if err := router.SetupRoutes(routes); err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			columns := []string{"METHOD", "PATH", "KIND", "ORIGINS", "METHODS", "CREDENTIALS", "OVERRIDE"}
			if wide {
				columns = append(columns, "HEADERS", "EXPOSED", "MAX-AGE", "MATCH-ORIGIN", "EXPOSE-ORIGIN")
			}
			fmt.Fprintln(w, strings.Join(columns, "\t"))

			for _, e := range router.Table() {
				kind := "route"
				if e.Synthetic {
					kind = "preflight"
				}
				fmt.Fprintln(w, strings.Join(append([]string{e.Method, e.Path, kind}, policyColumns(e.Policy, wide)...), "\t"))
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&wide, "wide", false, "also print headers, exposed headers, max age and origin flags")

	return cmd
}

// policyColumns renders a policy as table cells, "-" for each when disabled
func policyColumns(p *cors.Policy, wide bool) []string {
	n := 4
	if wide {
		n = 9
	}
	if !p.Enabled() {
		cells := make([]string, n)
		for i := range cells {
			cells[i] = "-"
		}
		return cells
	}

	cells := []string{
		strings.Join(p.Origins(), " "),
		strings.Join(p.Methods(), ","),
		strconv.FormatBool(p.Credentials()),
		p.Override().String(),
	}
	if wide {
		cells = append(cells,
			orDash(strings.Join(p.Headers(), ",")),
			orDash(strings.Join(p.ExposedHeaders(), ",")),
			strconv.Itoa(p.MaxAge()),
			strconv.FormatBool(p.MatchOrigin()),
			strconv.FormatBool(p.IsOriginExposed()),
		)
	}
	return cells
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
