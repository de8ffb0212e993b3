package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/hwcodec/internal/version"
)

// versionCmd represents the version command.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  "Print the version, commit, and build date of hwcodec.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		output, _ := cmd.Flags().GetString("output")
		if err := validateOutput(output); err != nil {
			return err
		}
		if ok, err := writeStructured(cmd.OutOrStdout(), output, version.GetInfo()); ok {
			return err
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.String())
		return nil
	},
}

func init() {
	versionCmd.Flags().StringP("output", "o", "text", "output format (text, json, yaml)")
	rootCmd.AddCommand(versionCmd)
}
