package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/najoast/lproc/bootstrap"
	"github.com/najoast/lproc/config"
)

type runOptions struct {
	configFile string
	watch      bool
	eval       string
	logLevel   string
	maxProcs   int64
	deadline   time.Duration
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run [file | -]",
		Short: "Run a program as the main process",
		Long: `Run compiles the program and runs it as the process named "main".
If main ends with exit, run waits for every process it started. Otherwise
the remaining processes are interrupted once main finishes.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, args)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.configFile, "config", "c", "", "config file (yaml, toml or json); searched for when empty")
	flags.BoolVar(&opts.watch, "watch", false, "apply log level changes when the config file in use is edited")
	flags.StringVarP(&opts.eval, "eval", "e", "", "program text to run instead of a file")
	flags.StringVar(&opts.logLevel, "log-level", "", "override log.level")
	flags.Int64Var(&opts.maxProcs, "max-procs", 0, "override proc.max_procs")
	flags.DurationVar(&opts.deadline, "deadline", 0, "override coordinator.default_deadline")
	return cmd
}

func (o *runOptions) run(cmd *cobra.Command, args []string) error {
	text, err := o.program(cmd, args)
	if err != nil {
		return err
	}

	loader := config.NewLoader()
	cfg, err := loader.Load(o.configFile)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Log.Level = config.LogLevel(o.logLevel)
	}
	if flags.Changed("max-procs") {
		cfg.Proc.MaxProcs = o.maxProcs
	}
	if flags.Changed("deadline") {
		cfg.Coordinator.DefaultDeadline = config.Duration(o.deadline)
	}

	app, err := bootstrap.NewApplicationBuilder().
		WithConfig(cfg).
		WithLoader(loader).
		WithConfigFile(o.configFile).
		WithWatch(o.watch).
		WithOutput(cmd.OutOrStdout()).
		Build()
	if err != nil {
		return err
	}
	return app.RunProgram(cmd.Context(), text)
}

// program reads the text to run from --eval, a file or stdin.
func (o *runOptions) program(cmd *cobra.Command, args []string) (string, error) {
	switch {
	case o.eval != "" && len(args) > 0:
		return "", errors.New("give either --eval or a file, not both")
	case o.eval != "":
		return o.eval, nil
	case len(args) == 0:
		return "", errors.New("no program: give a file, - for stdin, or --eval")
	}
	return readProgram(cmd.InOrStdin(), args[0])
}

func readProgram(stdin io.Reader, path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read program: %w", err)
	}
	return string(data), nil
}
