package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mzhaom/polygames-crossgame/batch"
	"github.com/mzhaom/polygames-crossgame/registry"
)

func newZeroShotCmd(a *app) *cobra.Command {
	var groups []string
	cmd := &cobra.Command{
		Use:   "zeroshot",
		Short: "Convert models across games for zero-shot evaluation",
		Long: `zeroshot converts every registered source configuration to every target
configuration of the default job groups, remapping move and state channels
as reported by the channel helper.`,
		Example: `  crossgame zeroshot
  crossgame zeroshot --groups shogi-variants -j 4
  crossgame zeroshot --dry-run --checkpoint-root /data/checkpoints`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			passes, err := zeroShotPasses(a.cfg.CheckpointRoot, groups)
			if err != nil {
				return err
			}

			env, err := a.prepare(cmd, a.cfg.OutputRoot)
			if err != nil {
				return err
			}
			defer env.close()

			a.printBanner(cmd.OutOrStdout(), "Zero-shot cross-game conversion", env.runID, a.cfg.OutputRoot)
			summary, err := env.driver.Run(cmd.Context(), passes)
			return finish(cmd.OutOrStdout(), summary, err)
		},
	}
	cmd.Flags().StringSliceVar(&groups, "groups", nil, "Job groups to run (default: all)")
	return cmd
}

// zeroShotPasses plans the default groups, restricted to names when given.
func zeroShotPasses(checkpointRoot string, names []string) ([]batch.Pass, error) {
	reg := registry.Default().WithCheckpointRoot(checkpointRoot)
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	groups, err := selectGroups(registry.DefaultGroups(), names)
	if err != nil {
		return nil, err
	}
	return batch.Plan(reg, groups)
}

func selectGroups(all []registry.JobGroup, names []string) ([]registry.JobGroup, error) {
	if len(names) == 0 {
		return all, nil
	}
	byName := make(map[string]registry.JobGroup, len(all))
	for _, g := range all {
		byName[g.Name] = g
	}
	selected := make([]registry.JobGroup, 0, len(names))
	for _, n := range names {
		g, ok := byName[n]
		if !ok {
			return nil, fmt.Errorf("unknown job group %q", n)
		}
		selected = append(selected, g)
	}
	return selected, nil
}
