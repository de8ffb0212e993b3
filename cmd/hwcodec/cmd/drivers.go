package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var driversCmd = &cobra.Command{
	Use:   "drivers",
	Short: "Show which vendor codec runtimes are installed",
	Long:  `Load the NVENC, AMF and MFX runtime libraries and report which are present.

A driver whose runtime fails to load is reported as unavailable and is
skipped by every probe.`,
	RunE: runDrivers,
}

func init() {
	rootCmd.AddCommand(driversCmd)
	driversCmd.Flags().StringP("output", "o", "text", "output format (text, json, yaml)")
}

func runDrivers(cmd *cobra.Command, _ []string) error {
	output, _ := cmd.Flags().GetString("output")
	if err := validateOutput(output); err != nil {
		return err
	}

	env, err := loadEnvironment()
	if err != nil {
		return err
	}
	infos := env.driverInfo()

	out := cmd.OutOrStdout()
	if ok, err := writeStructured(out, output, infos); ok {
		return err
	}

	title(out, "Vendor runtimes")
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "DRIVER\tVENDOR\tSTATUS\tLIBRARY\tVERSION")
	for _, info := range infos {
		status := "available"
		if !info.Present {
			status = "unavailable"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			info.Driver,
			info.Driver.Vendor(),
			status,
			dash(info.Library),
			dash(info.Version),
		)
	}
	return w.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
