// Command solve reads a routing instance from a JSON or YAML file, solves it
// and prints the plan as JSON.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/urfave/cli"

	"crewroute/internal/buildinfo"
	"crewroute/internal/cp"
	"crewroute/internal/instance"
	"crewroute/internal/obs"
	"crewroute/internal/sysinfo"
	"crewroute/internal/vrp"
)

// exit codes
const (
	exitUsage      = 2
	exitInput      = 3
	exitSolve      = 4
	exitNoSolution = 5
)

type output struct {
	Plan *vrp.Plan    `json:"plan"`
	Host sysinfo.Host `json:"host"`
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "solve"
	app.Usage = "solve a crew routing instance"
	app.ArgsUsage = "INSTANCE.{json,yaml}"
	app.Version = buildinfo.String()
	app.Flags = []cli.Flag{
		cli.DurationFlag{Name: "time-limit, t", Value: cp.DefaultTimeLimit, Usage: "wall-clock budget"},
		cli.IntFlag{Name: "workers, w", Value: cp.DefaultWorkers, Usage: "parallel search workers"},
		cli.Int64Flag{Name: "penalty", Value: vrp.DefaultPenaltyWeight, Usage: "weight of time window slack, -1 for distance only"},
		cli.BoolFlag{Name: "warm-start", Usage: "hint the search with an ALNS routing"},
		cli.Int64Flag{Name: "seed", Usage: "search and warm start seed"},
		cli.StringFlag{Name: "dump-model", Usage: "write the built model as text to `FILE`"},
		cli.StringFlag{Name: "output, o", Usage: "write the plan to `FILE` instead of stdout"},
		cli.BoolFlag{Name: "verify", Usage: "check the plan against the instance"},
		cli.StringFlag{Name: "log-level", Value: "info"},
		cli.BoolFlag{Name: "pretty", Usage: "human readable logs"},
	}
	app.Action = run
	return app
}

func run(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.NewExitError("expected exactly one instance file", exitUsage)
	}
	log := obs.NewLogger(c.String("log-level"), c.Bool("pretty"), os.Stderr)

	in, err := instance.LoadFile(c.Args().First())
	if err != nil {
		return cli.NewExitError(err.Error(), exitInput)
	}
	cfg := vrp.Config{PenaltyWeight: c.Int64("penalty")}

	if path := c.String("dump-model"); path != "" {
		if err := dumpModel(in, cfg, path); err != nil {
			return cli.NewExitError(err.Error(), exitInput)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	plan, err := vrp.Solve(ctx, in, vrp.Options{
		Config:    cfg,
		Params:    cp.Params{TimeLimit: c.Duration("time-limit"), Workers: c.Int("workers")},
		WarmStart: c.Bool("warm-start"),
		Seed:      c.Int64("seed"),
		Log:       log,
	})
	if errors.Is(err, vrp.ErrInstanceTooLarge) {
		return cli.NewExitError(err.Error(), exitInput)
	}
	if err != nil {
		return cli.NewExitError(err.Error(), exitSolve)
	}
	if c.Bool("verify") && plan.Status.HasSolution() {
		if err := vrp.Verify(in, plan); err != nil {
			return cli.NewExitError(err.Error(), exitSolve)
		}
	}

	var w io.Writer = os.Stdout
	if path := c.String("output"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return cli.NewExitError(err.Error(), exitInput)
		}
		defer f.Close()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(output{Plan: plan, Host: sysinfo.Collect()}); err != nil {
		return cli.NewExitError(err.Error(), exitSolve)
	}
	if !plan.Status.HasSolution() {
		return cli.NewExitError("no solution: "+plan.Status.String(), exitNoSolution)
	}
	return nil
}

func dumpModel(in *instance.Instance, cfg vrp.Config, path string) error {
	f, err := vrp.Build(in, cfg)
	if err != nil {
		return err
	}
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := f.Model.WriteText(out); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
