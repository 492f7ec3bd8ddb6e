package main

import (
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/nurserymap/internal/core"
)

type buildOutput struct {
	Snapshot   string          `json:"snapshot"`
	Stats      core.MergeStats `json:"stats"`
	Ages       []int           `json:"ages"`
	Facilities []core.Facility `json:"facilities"`
}

func newBuildCmd(opts *sourceOptions) *cobra.Command {
	var statsOnly bool

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Fetch, merge and print every facility as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := opts.build(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			out := buildOutput{
				Snapshot:   snap.ID,
				Stats:      snap.Stats,
				Ages:       snap.Ages,
				Facilities: snap.Facilities,
			}
			if statsOnly {
				out.Facilities = nil
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}

	cmd.Flags().BoolVar(&statsOnly, "stats-only", false, "Omit the facility list")
	return cmd
}
