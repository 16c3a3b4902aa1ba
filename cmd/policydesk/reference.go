package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/csheth/policydesk/internal/documents"
)

func newReferenceCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reference",
		Short: "Manage the staff reference document",
	}
	cmd.AddCommand(newReferenceBuildCmd(a))
	return cmd
}

func newReferenceBuildCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "build PDF...",
		Short: "Concatenate policy documents into the staff reference text file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				output = a.cfg.Staff.Reference
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			n, err := buildReference(ctx, output, args)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d documents to %s\n", n, output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (defaults to the configured staff reference)")
	return cmd
}

// buildReference writes to a temp file next to output and renames it into
// place once every input has been extracted.
func buildReference(ctx context.Context, output string, inputs []string) (int, error) {
	if dir := filepath.Dir(output); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("create output dir: %w", err)
		}
	}
	tmp, err := os.CreateTemp(filepath.Dir(output), ".reference-*")
	if err != nil {
		return 0, err
	}
	defer os.Remove(tmp.Name())

	n, err := documents.BuildReference(ctx, tmp, inputs...)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return 0, err
	}
	if err := os.Rename(tmp.Name(), output); err != nil {
		return 0, err
	}
	return n, nil
}
