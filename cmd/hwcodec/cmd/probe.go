package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/hwcodec/internal/codec"
	"github.com/jmylchreest/hwcodec/internal/probe"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Find the adapters that can encode or decode a codec",
	Long:  `Probe the adapters served by one driver. Each candidate adapter gets a
device, a surface and a session, and must produce a keyframe (or a decoded
picture with --decode) within the self-test budget.

Pairs listed in the exclusion file are skipped.

Examples:
  # NVENC H.264 encoders
  hwcodec probe --driver nv --codec h264

  # every configured driver at once
  hwcodec probe --all --codec hevc -o json`,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)

	probeCmd.Flags().StringP("driver", "d", "nv", "driver to probe (nv, amf, mfx)")
	probeCmd.Flags().StringP("codec", "c", "h264", "codec to probe (h264, hevc)")
	probeCmd.Flags().Bool("all", false, "probe every configured driver concurrently")
	probeCmd.Flags().Bool("decode", false, "probe decoders instead of encoders")
	probeCmd.Flags().Int("max-results", 0, "maximum adapters to report (default probe.max_results)")
	probeCmd.Flags().StringP("output", "o", "text", "output format (text, json, yaml)")
}

// probeReport is the outcome for one driver.
type probeReport struct {
	Driver    codec.Driver   `json:"driver" yaml:"driver"`
	Codec     codec.Kind     `json:"codec" yaml:"codec"`
	Direction string         `json:"direction" yaml:"direction"`
	Results   []probe.Result `json:"results" yaml:"results"`
	Error     string         `json:"error,omitempty" yaml:"error,omitempty"`
}

func runProbe(cmd *cobra.Command, _ []string) error {
	output, _ := cmd.Flags().GetString("output")
	if err := validateOutput(output); err != nil {
		return err
	}
	driverName, _ := cmd.Flags().GetString("driver")
	codecName, _ := cmd.Flags().GetString("codec")
	all, _ := cmd.Flags().GetBool("all")
	decode, _ := cmd.Flags().GetBool("decode")
	maxResults, _ := cmd.Flags().GetInt("max-results")

	env, err := loadEnvironment()
	if err != nil {
		return err
	}
	if maxResults <= 0 {
		maxResults = env.cfg.Probe.MaxResults
	}
	k, err := codec.ParseKind(codecName)
	if err != nil {
		return err
	}
	drivers := []codec.Driver{}
	if all {
		if drivers, err = parseDrivers(env.cfg.Probe.Drivers); err != nil {
			return err
		}
	} else {
		d, err := codec.ParseDriver(driverName)
		if err != nil {
			return err
		}
		drivers = append(drivers, d)
	}

	ctx := cmd.Context()
	excl, err := env.exclusions(ctx, nil)
	if err != nil {
		return err
	}
	profile, err := env.profile(k)
	if err != nil {
		return err
	}
	prober := env.prober()

	direction := "encode"
	var reports []probeReport
	switch {
	case decode:
		direction = "decode"
		for _, d := range drivers {
			results, err := prober.ProbeDecode(ctx, d, k, excl, maxResults)
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			reports = append(reports, newProbeReport(d, k, direction, results, err))
		}
	case len(drivers) > 1:
		outcomes, err := prober.ProbeAll(ctx, drivers, profile, excl, maxResults)
		if err != nil {
			return err
		}
		for _, o := range outcomes {
			reports = append(reports, newProbeReport(o.Driver, k, direction, o.Results, o.Err))
		}
	default:
		results, err := prober.Probe(ctx, drivers[0], profile, excl, maxResults)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		reports = append(reports, newProbeReport(drivers[0], k, direction, results, err))
	}

	out := cmd.OutOrStdout()
	if ok, err := writeStructured(out, output, reports); ok {
		return err
	}
	return printProbeReports(out, reports)
}

func newProbeReport(d codec.Driver, k codec.Kind, direction string, results []probe.Result, err error) probeReport {
	r := probeReport{Driver: d, Codec: k, Direction: direction, Results: results}
	if r.Results == nil {
		r.Results = []probe.Result{}
	}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

func printProbeReports(out io.Writer, reports []probeReport) error {
	for i, r := range reports {
		if i > 0 {
			_, _ = fmt.Fprintln(out)
		}
		title(out, fmt.Sprintf("%s %s %s", r.Driver, r.Codec, r.Direction))
		if r.Error != "" {
			_, _ = fmt.Fprintln(out, warnStyle.Render(r.Error))
			continue
		}
		if len(r.Results) == 0 {
			_, _ = fmt.Fprintln(out, faintStyle.Render("no usable adapters"))
			continue
		}
		if err := printResults(out, r.Results); err != nil {
			return err
		}
	}
	return nil
}

func printResults(out io.Writer, results []probe.Result) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "LUID\tVENDOR\tDRIVER\tCODEC\tDESCRIPTION")
	for _, r := range results {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", r.LUID, r.Vendor, r.Driver, r.Codec, r.Description)
	}
	return w.Flush()
}
