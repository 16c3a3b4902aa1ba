package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/csheth/policydesk/internal/session"
)

const maxParallelUploads = 4

func newUploadCmd(a *app) *cobra.Command {
	var attach bool
	cmd := &cobra.Command{
		Use:   "upload FILE...",
		Short: "Upload manager policy files and print their file ids",
		Long: `Upload policy files as the Manager role.

With --attach the files are placed into a new vector store which is attached
to the configured manager assistant, or to a freshly created one.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := a.apiKey(cmd)
			if err != nil {
				return err
			}
			mgr, err := a.newSession(session.RoleManager, key)
			if err != nil {
				return err
			}
			defer mgr.End()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			uploads, err := uploadAll(ctx, mgr, args)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "FILE\tFILE ID")
			for _, u := range uploads {
				fmt.Fprintf(w, "%s\t%s\n", u.Filename, u.FileID)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if !attach {
				return nil
			}
			if err := mgr.Start(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "assistant: %s\n", mgr.AssistantID())
			return nil
		},
	}
	cmd.Flags().BoolVar(&attach, "attach", false, "attach the uploads to the manager assistant")
	return cmd
}

// uploadAll uploads paths concurrently and returns the records in input order.
func uploadAll(ctx context.Context, mgr *session.Manager, paths []string) ([]session.Upload, error) {
	uploads, err := mgr.UploadPaths(ctx, paths, maxParallelUploads)
	if err != nil {
		return nil, err
	}
	for _, u := range uploads {
		log.Debug().Str("path", u.LocalPath).Str("file_id", u.FileID).Msg("upload finished")
	}
	return uploads, nil
}
