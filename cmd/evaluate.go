package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/gridopf/pkg/export"
)

var angles []float64

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Print cost, dispatch and flows at fixed angles",
	RunE:  runEvaluate,
}

func init() {
	evaluateCmd.Flags().Float64SliceVar(&angles, "angles", nil, "free bus angles in radians, in bus order without the slack")
	evaluateCmd.Flags().StringVarP(&outputFormat, "output", "o", "", "output format: text, json, yaml or csv (default from config)")
	rootCmd.AddCommand(evaluateCmd)
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	cfg, svc, err := loadService()
	if err != nil {
		return err
	}
	defer closeService(cmd, svc)
	format := cfg.Output.Format
	if outputFormat != "" {
		format = outputFormat
	}
	theta, d, err := svc.Evaluate(angles)
	if err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}
	return export.WriteDispatch(cmd.OutOrStdout(), format, theta, d)
}
