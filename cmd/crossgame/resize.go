package main

import (
	"github.com/spf13/cobra"

	"github.com/mzhaom/polygames-crossgame/registry"
)

func newResizeCmd(a *app) *cobra.Command {
	var games []string
	cmd := &cobra.Command{
		Use:   "resize",
		Short: "Convert models between board sizes of the same game",
		Long: `resize converts the checkpoint of every option set of a game to every other
option set of that game. The value and policy heads are re-initialised, so
the result is a warm start rather than a zero-shot model.`,
		Example: `  crossgame resize
  crossgame resize --games LudiiKonane.lud --selector lowest`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			profiles, err := resizeGames(a.cfg.CheckpointRoot, games)
			if err != nil {
				return err
			}

			env, err := a.prepare(cmd, a.cfg.ReinitOutputRoot)
			if err != nil {
				return err
			}
			defer env.close()

			a.printBanner(cmd.OutOrStdout(), "Board size conversion", env.runID, a.cfg.ReinitOutputRoot)
			summary, err := env.driver.RunResize(cmd.Context(), profiles)
			return finish(cmd.OutOrStdout(), summary, err)
		},
	}
	cmd.Flags().StringSliceVar(&games, "games", nil, "Games to resize (default: all)")
	return cmd
}

func resizeGames(checkpointRoot string, names []string) ([]*registry.GameProfile, error) {
	reg := registry.DefaultResize().WithCheckpointRoot(checkpointRoot)
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	if len(names) == 0 {
		names = reg.Names()
	}
	return reg.Games(names...)
}
