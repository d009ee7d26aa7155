package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mzhaom/polygames-crossgame/checkpoint"
	"github.com/mzhaom/polygames-crossgame/registry"
)

func newLocateCmd(a *app) *cobra.Command {
	var resize bool
	cmd := &cobra.Command{
		Use:   "locate [dir...]",
		Short: "Show the checkpoint each configuration would convert from",
		Long: `locate resolves checkpoints with the configured selector. With directory
arguments it resolves each directory; without, it resolves every option set
of the zero-shot (or, with --resize, the board-size) registry.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sel, err := a.cfg.EpochSelector()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if len(args) > 0 {
				for _, dir := range args {
					res, err := checkpoint.Locate(dir, sel)
					if err != nil {
						return err
					}
					printLocated(out, dir, res)
				}
				return nil
			}

			reg := registry.Default()
			if resize {
				reg = registry.DefaultResize()
			}
			return locateRegistry(out, reg.WithCheckpointRoot(a.cfg.CheckpointRoot), sel)
		},
	}
	cmd.Flags().BoolVar(&resize, "resize", false, "Resolve the board-size registry")
	return cmd
}

func printLocated(w io.Writer, label string, res checkpoint.Result) {
	fmt.Fprintf(w, "%s\n  %s (epoch %d", label, res.Path, res.Epoch)
	if res.ServerDirs > 1 {
		fmt.Fprintf(w, ", %d server directories", res.ServerDirs)
	}
	fmt.Fprintln(w, ")")
}

// locateRegistry resolves every option set. Missing checkpoints and
// unreadable directories are listed; a malformed checkpoint name aborts.
func locateRegistry(w io.Writer, reg *registry.Registry, sel checkpoint.Selector) error {
	found, missing := 0, 0
	for _, name := range reg.Names() {
		g, err := reg.Game(name)
		if err != nil {
			return err
		}
		for i := 0; i < g.Len(); i++ {
			set := g.OptionSet(i)
			label := fmt.Sprintf("%s [%s]", g.Name(), set.Label)
			res, err := checkpoint.Locate(set.CheckpointDir, sel)
			var malformed *checkpoint.MalformedCheckpointError
			switch {
			case err == nil:
				found++
				printLocated(w, label, res)
			case errors.As(err, &malformed):
				return err
			default:
				missing++
				fmt.Fprintf(w, "%s\n  missing: %v\n", label, err)
			}
		}
	}
	fmt.Fprintf(w, "%d found, %d missing\n", found, missing)
	return nil
}
