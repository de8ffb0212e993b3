package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/hwcodec/internal/codec"
	"github.com/jmylchreest/hwcodec/internal/device"
	"github.com/jmylchreest/hwcodec/internal/hostinfo"
	"github.com/jmylchreest/hwcodec/internal/models"
	"github.com/jmylchreest/hwcodec/internal/probe"
	"github.com/jmylchreest/hwcodec/pkg/format"
)

var adaptersCmd = &cobra.Command{
	Use:   "adapters",
	Short: "List GPU adapters and the hardware signature",
	Long:  `List the GPU adapters visible to the device provider, the driver that
serves each of them, and the signature used to decide whether a stored
probe run still describes this machine.`,
	RunE: runAdapters,
}

func init() {
	rootCmd.AddCommand(adaptersCmd)
	adaptersCmd.Flags().StringP("output", "o", "text", "output format (text, json, yaml)")
	adaptersCmd.Flags().Bool("host", false, "include host information")
}

type adaptersReport struct {
	Signature string           `json:"signature" yaml:"signature"`
	Adapters  []device.Adapter `json:"adapters" yaml:"adapters"`
	Host      *hostinfo.Info   `json:"host,omitempty" yaml:"host,omitempty"`
}

func runAdapters(cmd *cobra.Command, _ []string) error {
	output, _ := cmd.Flags().GetString("output")
	withHost, _ := cmd.Flags().GetBool("host")
	if err := validateOutput(output); err != nil {
		return err
	}

	env, err := loadEnvironment()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	adapters, err := env.provider.Adapters(ctx)
	if err != nil {
		return fmt.Errorf("enumerating adapters: %w", err)
	}

	report := adaptersReport{
		Signature: models.FormatSignature(probe.Signature(adapters)),
		Adapters:  adapters,
	}
	if withHost {
		info := hostinfo.Collect(ctx)
		report.Host = &info
	}

	out := cmd.OutOrStdout()
	if ok, err := writeStructured(out, output, report); ok {
		return err
	}

	title(out, fmt.Sprintf("Adapters (signature %s)", report.Signature))
	if len(adapters) == 0 {
		_, _ = fmt.Fprintln(out, warnStyle.Render("No GPU adapters found."))
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "LUID\tVENDOR\tDEVICE\tDRIVER\tDESCRIPTION")
	for _, a := range adapters {
		drv := "-"
		if d, ok := codec.DriverForVendor(a.VendorID); ok {
			drv = d.String()
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t0x%04x\t%s\t%s\n", a.LUID, a.VendorID, a.DeviceID, drv, a.Description)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if report.Host != nil {
		h := report.Host
		_, _ = fmt.Fprintln(out)
		title(out, "Host")
		_, _ = fmt.Fprintf(out, "%s %s/%s %s %s\n", h.Hostname, h.OS, h.Arch, h.Platform, h.PlatformVersion)
		_, _ = fmt.Fprintf(out, "%s (%d cores), %s memory\n", h.CPUModel, h.CPUCores, format.Bytes(int64(h.MemoryTotal)))
	}
	return nil
}
