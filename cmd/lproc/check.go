package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/najoast/lproc/process"
)

func newCheckCmd() *cobra.Command {
	var (
		jobs    int
		verbose bool
	)
	cmd := &cobra.Command{
		Use:   "check file...",
		Short: "Compile programs without running them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results := make([]error, len(args))

			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(max(jobs, 1))
			for i, path := range args {
				i, path := i, path
				g.Go(func() error {
					if err := ctx.Err(); err != nil {
						return err
					}
					results[i] = checkFile(cmd, path)
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			failed := 0
			for i, err := range results {
				switch {
				case err != nil:
					failed++
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", args[i], err)
				case verbose:
					fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", args[i])
				}
			}
			if failed > 0 {
				return fmt.Errorf("%w: %d of %d programs", errFailed, failed, len(args))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&jobs, "jobs", "j", runtime.GOMAXPROCS(0), "files compiled in parallel")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "report programs that compile")
	return cmd
}

func checkFile(cmd *cobra.Command, path string) error {
	text, err := readProgram(cmd.InOrStdin(), path)
	if err != nil {
		return err
	}
	_, err = process.Compile(text)
	return err
}
