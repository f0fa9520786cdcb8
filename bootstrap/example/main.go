// Example embedding lproc: a Go program feeds work to script processes
// through the application's supervisor.
package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/najoast/lproc/bootstrap"
	"github.com/najoast/lproc/config"
	"github.com/najoast/lproc/core"
	"github.com/najoast/lproc/process"
)

const worker = `
repeat 2
  recv "job" -> n, reply
  send reply, self, n * n
end
`

func main() {
	cfg := config.DefaultConfig()
	cfg.Log.Level = config.LogLevelInfo

	app, err := bootstrap.NewApplicationBuilder().WithConfig(cfg).Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	lm := app.LifecycleManager()
	if err := lm.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "start: %v\n", err)
		os.Exit(1)
	}
	defer lm.Stop(ctx)

	sup := app.Supervisor()
	for i := 0; i < 2; i++ {
		if err := sup.Start(worker); err != nil {
			app.Logger().Fatal("start worker", zap.Error(err))
		}
	}

	err = sup.RunMainProgram(func(c *process.Context) error {
		for n := int64(1); n <= 4; n++ {
			if err := c.Send("job", core.IntValue(n), core.StringValue("results")); err != nil {
				return err
			}
			got, err := c.Receive("results")
			if err != nil {
				return err
			}
			if len(got) != 2 {
				return fmt.Errorf("unexpected reply %v", got)
			}
			c.Logger().Info("squared", zap.Stringer("worker", got[0]), zap.Stringer("result", got[1]))
		}
		return process.ErrExit
	})
	if err != nil {
		app.Logger().Error("main failed", zap.Error(err))
	}
}
