package main

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mzhaom/polygames-crossgame/batch"
	"github.com/mzhaom/polygames-crossgame/registry"
)

func newPlanCmd(a *app) *cobra.Command {
	var (
		groups []string
		resize bool
	)
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "List the conversions a batch would schedule",
		Long: `plan expands the job groups and prints every conversion with its output path.
It neither reads checkpoints nor runs the channel helper or the converter.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if resize {
				games, err := resizeGames(a.cfg.CheckpointRoot, nil)
				if err != nil {
					return err
				}
				printResizePlan(out, a.cfg.ReinitOutputRoot, games)
				return nil
			}
			passes, err := zeroShotPasses(a.cfg.CheckpointRoot, groups)
			if err != nil {
				return err
			}
			printPlan(out, a.cfg.OutputRoot, passes)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&groups, "groups", nil, "Job groups to list (default: all)")
	cmd.Flags().BoolVar(&resize, "resize", false, "List board-size conversions instead")
	return cmd
}

func printPlan(w io.Writer, outputRoot string, passes []batch.Pass) {
	total := 0
	for _, p := range passes {
		fmt.Fprintf(w, "%s (%d jobs)\n", p.Name, p.Jobs())
		for _, pair := range p.Pairs {
			for i := 0; i < pair.Source.Len(); i++ {
				for _, dst := range pair.Targets {
					for j := 0; j < dst.Len(); j++ {
						job := batch.Job{Source: pair.Source, SourceIndex: i, Target: dst, TargetIndex: j}
						fmt.Fprintf(w, "  %s\n", filepath.Join(outputRoot, job.OutputName()))
					}
				}
			}
		}
		total += p.Jobs()
	}
	fmt.Fprintf(w, "%d jobs\n", total)
}

func printResizePlan(w io.Writer, outputRoot string, games []*registry.GameProfile) {
	total := 0
	for _, g := range games {
		n := g.Len() * (g.Len() - 1)
		fmt.Fprintf(w, "%s (%d jobs)\n", g.Name(), n)
		for i := 0; i < g.Len(); i++ {
			for j := 0; j < g.Len(); j++ {
				if i == j {
					continue
				}
				job := batch.Job{Source: g, SourceIndex: i, Target: g, TargetIndex: j}
				fmt.Fprintf(w, "  %s\n", filepath.Join(outputRoot, job.ResizeOutputName()))
			}
		}
		total += n
	}
	fmt.Fprintf(w, "%d jobs\n", total)
}
