package cmd

import (
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/hwcodec/internal/codec"
	"github.com/jmylchreest/hwcodec/internal/models"
	"github.com/jmylchreest/hwcodec/internal/probe"
	"github.com/jmylchreest/hwcodec/internal/repository"
	"github.com/jmylchreest/hwcodec/pkg/format"
)

var exclusionsCmd = &cobra.Command{
	Use:   "exclusions",
	Short: "Manage (adapter, codec) pairs that probing skips",
	Long:  `Exclusions stop probing from opening a session for a given adapter and
codec. They are read from the exclusion file (exclusions.file) and from the
database; the subcommands below edit the database copy.`,
}

var exclusionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored exclusions",
	RunE:  runExclusionsList,
}

var exclusionsAddCmd = &cobra.Command{
	Use:   "add <luid> <codec>",
	Short: "Exclude an adapter for one codec",
	Args:  cobra.ExactArgs(2),
	RunE:  runExclusionsAdd,
}

var exclusionsRemoveCmd = &cobra.Command{
	Use:   "remove <luid> <codec>",
	Short: "Remove a stored exclusion",
	Args:  cobra.ExactArgs(2),
	RunE:  runExclusionsRemove,
}

var exclusionsExportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Write the merged exclusion list to a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE:  runExclusionsExport,
}

func init() {
	rootCmd.AddCommand(exclusionsCmd)
	exclusionsCmd.AddCommand(exclusionsListCmd, exclusionsAddCmd, exclusionsRemoveCmd, exclusionsExportCmd)

	exclusionsListCmd.Flags().StringP("output", "o", "text", "output format (text, json, yaml)")
	exclusionsAddCmd.Flags().String("reason", "", "why the pair is excluded")
}

func parsePair(args []string) (int64, codec.Kind, error) {
	luid, err := strconv.ParseInt(args[0], 0, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid luid %q: %w", args[0], err)
	}
	k, err := codec.ParseKind(args[1])
	if err != nil {
		return 0, 0, err
	}
	return luid, k, nil
}

func runExclusionsList(cmd *cobra.Command, _ []string) error {
	output, _ := cmd.Flags().GetString("output")
	if err := validateOutput(output); err != nil {
		return err
	}
	env, err := loadEnvironment()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	db, err := env.openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	list, err := repository.NewExclusionRepository(db.DB).List(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if ok, err := writeStructured(out, output, list); ok {
		return err
	}
	if len(list) == 0 {
		_, _ = fmt.Fprintln(out, "No stored exclusions.")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "LUID\tCODEC\tREASON\tADDED")
	for _, e := range list {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", e.LUID, e.Codec, dash(e.Reason), format.Ago(e.CreatedAt, time.Now()))
	}
	return w.Flush()
}

func runExclusionsAdd(cmd *cobra.Command, args []string) error {
	luid, k, err := parsePair(args)
	if err != nil {
		return err
	}
	reason, _ := cmd.Flags().GetString("reason")

	env, err := loadEnvironment()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	db, err := env.openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := repository.NewExclusionRepository(db.DB).Add(ctx, &models.Exclusion{LUID: luid, Codec: k.String(), Reason: reason}); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "excluded %s on adapter %d\n", k, luid)
	return nil
}

func runExclusionsRemove(cmd *cobra.Command, args []string) error {
	luid, k, err := parsePair(args)
	if err != nil {
		return err
	}
	env, err := loadEnvironment()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	db, err := env.openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := repository.NewExclusionRepository(db.DB).Remove(ctx, luid, k.String()); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "removed %s exclusion on adapter %d\n", k, luid)
	return nil
}

func runExclusionsExport(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	db, err := env.openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	merged, err := env.exclusions(ctx, db)
	if err != nil {
		return err
	}
	if err := probe.SaveExclusions(args[0], merged); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "wrote %d exclusions to %s\n", len(merged), args[0])
	return nil
}
