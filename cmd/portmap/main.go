package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"basehub/contexts/platform-ops/deployment-service/adapters/httpprobe"
	"basehub/contexts/platform-ops/deployment-service/adapters/memory"
	"basehub/contexts/platform-ops/deployment-service/application"
	"basehub/contexts/platform-ops/deployment-service/ports"
)

// Portmap is the deployment CLI: it validates remap tables, rewrites compose
// files onto conflict-free host ports and audits a running constellation.

var (
	tableFile   string
	composeFile string
	writeBack   bool
	auditHost   string
)

var rootCmd = &cobra.Command{
	Use:           "portmap",
	Short:         "Port remap tooling for basehub deployments",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var tableCmd = &cobra.Command{
	Use:   "table",
	Short: "Print the active remap table",
	RunE: func(cmd *cobra.Command, _ []string) error {
		table, err := loadTable()
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), application.RenderTable(table))
		return nil
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a remap table file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if tableFile == "" {
			return fmt.Errorf("--file is required")
		}
		table, err := application.LoadTable(tableFile, time.Now().UTC())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d mappings ok\n", tableFile, len(table.Mappings))
		return nil
	},
}

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Rewrite a compose file onto remapped host ports",
	RunE: func(cmd *cobra.Command, _ []string) error {
		table, err := loadTable()
		if err != nil {
			return err
		}
		input, err := os.ReadFile(composeFile)
		if err != nil {
			return err
		}

		output, warnings, err := application.ApplyToCompose(input, table)
		if err != nil {
			return err
		}
		for _, warning := range warnings {
			fmt.Fprintln(cmd.ErrOrStderr(), "warning:", warning)
		}

		if writeBack {
			return os.WriteFile(composeFile, output, 0o644)
		}
		_, err = cmd.OutOrStdout().Write(output)
		return err
	},
}

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Show host ports a compose file still publishes on pre-remap values",
	RunE: func(cmd *cobra.Command, _ []string) error {
		table, err := loadTable()
		if err != nil {
			return err
		}
		input, err := os.ReadFile(composeFile)
		if err != nil {
			return err
		}

		diffs, err := application.Diff(input, table)
		if err != nil {
			return err
		}
		if len(diffs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "compose file matches the remap table")
			return nil
		}
		for _, diff := range diffs {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: publishes %d, want %d\n", diff.Service, diff.GotPort, diff.WantPort)
		}
		return fmt.Errorf("%d service(s) differ from the remap table", len(diffs))
	},
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Probe every remapped service for health and base fallback",
	RunE: func(cmd *cobra.Command, _ []string) error {
		table, err := loadTable()
		if err != nil {
			return err
		}

		store := memory.NewStore()
		service := application.Service{
			Store:  store,
			Prober: httpprobe.NewProber(5 * time.Second),
			Clock:  store,
			Logger: slog.Default(),
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		if err := store.Replace(ctx, table); err != nil {
			return err
		}

		targets := make([]application.AuditTarget, 0, len(table.Mappings))
		for _, mapping := range table.Mappings {
			targets = append(targets, application.AuditTarget{
				Service: mapping.Service,
				BaseURL: fmt.Sprintf("http://%s:%d", auditHost, mapping.NewPort),
			})
		}

		findings, err := service.RunAudit(ctx, targets)
		if err != nil {
			return err
		}

		failed := 0
		for _, finding := range findings {
			status := "ok"
			if !finding.Pass {
				status = "fail"
				failed++
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%-4s %-22s %-14s %s\n", status, finding.Service, finding.Check, finding.Detail)
		}
		if failed > 0 {
			return fmt.Errorf("%d check(s) failed", failed)
		}
		return nil
	},
}

func loadTable() (ports.RemapTable, error) {
	if tableFile == "" {
		return application.DefaultTable(), nil
	}
	return application.LoadTable(tableFile, time.Now().UTC())
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&tableFile, "file", "f", "", "remap table YAML (default: built-in table)")
	applyCmd.Flags().StringVarP(&composeFile, "compose", "c", "docker-compose.yml", "compose file to rewrite")
	applyCmd.Flags().BoolVarP(&writeBack, "write", "w", false, "rewrite the compose file in place")
	diffCmd.Flags().StringVarP(&composeFile, "compose", "c", "docker-compose.yml", "compose file to inspect")
	auditCmd.Flags().StringVar(&auditHost, "host", "localhost", "host the constellation is reachable on")

	rootCmd.AddCommand(tableCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(auditCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
