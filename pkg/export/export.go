// Package export renders result records for people and other tools.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/gridopf/core/opf"
	"github.com/kilianp07/gridopf/core/report"
)

// Write renders res in the named format: text, json, yaml or csv.
func Write(w io.Writer, format string, res opf.Result) error {
	switch format {
	case "", "text":
		return WriteText(w, res)
	case "json":
		return WriteJSON(w, res)
	case "yaml":
		return WriteYAML(w, res)
	case "csv":
		return WriteCSV(w, res)
	}
	return fmt.Errorf("unknown output format %q", format)
}

// WriteJSON writes res to w as indented JSON.
func WriteJSON(w io.Writer, res opf.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

// WriteYAML writes res to w as a YAML document.
func WriteYAML(w io.Writer, res opf.Result) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(res); err != nil {
		return err
	}
	return enc.Close()
}

// WriteCSV writes one row per bus, line and warning. Bus rows carry the
// output and maximum, line rows the flow and limit.
func WriteCSV(w io.Writer, res opf.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"kind", "id", "from", "to", "angle_rad", "value_mw", "limit_mw", "status"}); err != nil {
		return err
	}
	for i, g := range res.GeneratorDispatch {
		var angle string
		if i < len(res.BusAngles) {
			angle = formatFloat(res.BusAngles[i].Angle)
		}
		status := "ok"
		switch {
		case g.Clipped:
			status = "clipped"
		case g.Slack:
			status = "slack"
		}
		if err := cw.Write([]string{"bus", g.BusID, "", "", angle, formatFloat(g.OutputMW), formatFloat(g.MaxMW), status}); err != nil {
			return err
		}
	}
	for _, lf := range res.LineFlows {
		status := "ok"
		if !lf.WithinLimit {
			status = "over"
		}
		if err := cw.Write([]string{"line", lf.LineID, lf.From, lf.To, "", formatFloat(lf.FlowMW), formatFloat(lf.LimitMW), status}); err != nil {
			return err
		}
	}
	for _, wn := range res.Warnings {
		if err := cw.Write([]string{"warning", wn.Subject, "", "", "", formatFloat(wn.ValueMW), formatFloat(wn.LimitMW), string(wn.Kind)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteText writes a human readable summary with aligned tables.
func WriteText(w io.Writer, res opf.Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "run\t%s\n", res.RunID)
	fmt.Fprintf(tw, "status\t%s\n", res.Status)
	fmt.Fprintf(tw, "total cost\t%.4f\n", res.TotalCost)
	fmt.Fprintf(tw, "generation\t%.3f MW for %.3f MW demand\n", res.TotalGenerationMW, res.TotalDemandMW)
	fmt.Fprintf(tw, "evaluations\t%d (%d iterations, radius %.3g)\n", res.Evaluations, res.Iterations, res.Radius)
	fmt.Fprintf(tw, "duration\t%s\n", res.Duration)
	angles := make([]float64, len(res.BusAngles))
	for i, a := range res.BusAngles {
		angles[i] = a.Angle
	}
	writeTables(tw, angles, res.GeneratorDispatch, res.LineFlows, res.Warnings)
	return tw.Flush()
}

// WriteDispatch renders a dispatch computed at fixed bus angles.
func WriteDispatch(w io.Writer, format string, angles []float64, d report.Dispatch) error {
	switch format {
	case "", "text":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintf(tw, "total cost\t%.4f\n", d.TotalCost)
		fmt.Fprintf(tw, "generation\t%.3f MW for %.3f MW demand\n", d.TotalGenerationMW, d.TotalDemandMW)
		writeTables(tw, angles, d.Generation, d.LineFlows, d.Warnings)
		return tw.Flush()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(d)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(d); err != nil {
			return err
		}
		return enc.Close()
	case "csv":
		return WriteCSV(w, opf.Result{
			BusAngles:         busAngles(angles, d.Generation),
			GeneratorDispatch: d.Generation,
			LineFlows:         d.LineFlows,
			Warnings:          d.Warnings,
		})
	}
	return fmt.Errorf("unknown output format %q", format)
}

func busAngles(angles []float64, gens []report.Generation) []opf.BusAngle {
	out := make([]opf.BusAngle, 0, len(gens))
	for i, g := range gens {
		a := opf.BusAngle{BusID: g.BusID}
		if i < len(angles) {
			a.Angle = angles[i]
		}
		out = append(out, a)
	}
	return out
}

func writeTables(tw io.Writer, angles []float64, gens []report.Generation, flows []report.LineFlow, warnings []report.Warning) {
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "BUS\tANGLE(rad)\tOUTPUT(MW)\tREQUIRED(MW)\tRANGE(MW)\t")
	for i, g := range gens {
		angle := 0.0
		if i < len(angles) {
			angle = angles[i]
		}
		mark := ""
		if g.Slack {
			mark = " (slack)"
		}
		fmt.Fprintf(tw, "%s%s\t%.5f\t%.3f\t%.3f\t[%g, %g]\t\n", g.BusID, mark, angle, g.OutputMW, g.RequiredMW, g.MinMW, g.MaxMW)
	}

	if len(flows) > 0 {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "LINE\tFROM\tTO\tFLOW(MW)\tLIMIT(MW)\tLOADING\t")
		for _, lf := range flows {
			limit, loading := "-", "-"
			if lf.LimitMW > 0 {
				limit = fmt.Sprintf("%.3f", lf.LimitMW)
				loading = fmt.Sprintf("%.1f%%", lf.Loading*100)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%.3f\t%s\t%s\t\n", lf.LineID, lf.From, lf.To, lf.FlowMW, limit, loading)
		}
	}

	if len(warnings) > 0 {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "WARNINGS")
		for _, wn := range warnings {
			fmt.Fprintf(tw, "- [%s] %s\n", wn.Kind, wn.Message)
		}
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
