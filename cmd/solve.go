package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/gridopf/core/opf"
	"github.com/kilianp07/gridopf/pkg/export"
)

var outputFormat string

var solveCmd = &cobra.Command{
	Use:   "solve",
	Short: "Minimize the generation cost of the configured network",
	RunE:  runSolve,
}

func init() {
	solveCmd.Flags().StringVarP(&outputFormat, "output", "o", "", "output format: text, json, yaml or csv (default from config)")
	rootCmd.AddCommand(solveCmd)
}

type solveOutcome struct {
	res opf.Result
	err error
}

func runSolve(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, svc, err := loadService()
	if err != nil {
		return err
	}
	defer closeService(cmd, svc)
	format := cfg.Output.Format
	if outputFormat != "" {
		format = outputFormat
	}

	done := make(chan solveOutcome, 1)
	go func() {
		res, err := svc.Solve()
		done <- solveOutcome{res: res, err: err}
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("interrupted: %w", ctx.Err())
	case out := <-done:
		if out.err != nil {
			return fmt.Errorf("solve: %w", out.err)
		}
		return export.Write(cmd.OutOrStdout(), format, out.res)
	}
}
