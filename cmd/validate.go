package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration and print a network summary",
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	_, svc, err := loadService()
	if err != nil {
		return err
	}
	defer closeService(cmd, svc)
	net := svc.Network()
	var demand, capacity float64
	for _, b := range net.Buses() {
		demand += b.DemandMW
		capacity += b.GenMaxMW
	}
	free := make([]string, 0, net.NumFree())
	for _, b := range net.FreeBuses() {
		free = append(free, b.ID)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "buses\t%d\n", net.NumBuses())
	fmt.Fprintf(tw, "lines\t%d\n", net.NumLines())
	fmt.Fprintf(tw, "slack\t%s\n", net.Slack().ID)
	fmt.Fprintf(tw, "free angles\t%v\n", free)
	fmt.Fprintf(tw, "demand\t%.3f MW\n", demand)
	fmt.Fprintf(tw, "capacity\t%.3f MW\n", capacity)
	if capacity < demand {
		fmt.Fprintln(tw, "warning\tcapacity is below demand")
	}
	return tw.Flush()
}
