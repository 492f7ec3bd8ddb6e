package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/nurserymap/internal/core"
)

type statusOutput struct {
	No          string      `json:"no"`
	Name        string      `json:"name"`
	Status      core.Status `json:"status"`
	SlotsForDay []string    `json:"slotsForDay,omitempty"`
}

func newStatusCmd(opts *sourceOptions) *cobra.Command {
	var no, age, weekday string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Classify one facility against an age and weekday",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := opts.build(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			q, err := snap.ParseQuery(age, weekday)
			if err != nil {
				return err
			}
			f, ok := snap.Facility(no)
			if !ok {
				return fmt.Errorf("%w: %q", core.ErrFacilityNotFound, no)
			}

			return writeJSON(cmd.OutOrStdout(), statusOutput{
				No:          f.No,
				Name:        f.Name,
				Status:      core.Classify(f, q),
				SlotsForDay: f.SlotLabels(q.Weekday),
			})
		},
	}

	cmd.Flags().StringVar(&no, "no", "", "Facility number (required)")
	cmd.Flags().StringVar(&age, "age", "", "Age in years")
	cmd.Flags().StringVar(&weekday, "weekday", "", "Weekday name")
	_ = cmd.MarkFlagRequired("no")
	return cmd
}
