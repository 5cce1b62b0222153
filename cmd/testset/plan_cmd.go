package main

import (
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/testsets/internal/core"
)

type planStage struct {
	Stage          int      `json:"stage"`
	Kind           string   `json:"kind"`
	Table          string   `json:"table"`
	DependsOn      []string `json:"depends_on,omitempty"`
	ConflictTarget []string `json:"conflict_target,omitempty"`
}

func newPlanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Print the order in which record kinds are written",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var out []planStage
			for i, k := range core.Plan() {
				st := planStage{
					Stage:          i + 1,
					Kind:           k.String(),
					Table:          k.Table(),
					ConflictTarget: k.ConflictTarget(),
				}
				for _, d := range k.Dependencies() {
					st.DependsOn = append(st.DependsOn, d.String())
				}
				out = append(out, st)
			}
			return writeJSON(out)
		},
	}
}
