package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/accellog/accel"
	"github.com/mklimuk/accellog/cmd/accellog/console"
	"github.com/mklimuk/accellog/record"
	"github.com/mklimuk/accellog/snsctx"
)

var logCmd = cli.Command{
	Name:  "log",
	Usage: "log acceleration data to a CSV file",
	Flags: append([]cli.Flag{
		&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "output CSV file"},
		&cli.DurationFlag{Name: "duration", Aliases: []string{"d"}, Usage: "how long to collect data (e.g. 60s)"},
		&cli.BoolFlag{Name: "force", Usage: "overwrite the output file without asking"},
	}, busFlags...),
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return console.Exit(console.ExitFailure, "invalid configuration: %s", console.Red(err))
		}
		if c.IsSet("file") {
			cfg.Log.File = c.String("file")
		}
		if c.IsSet("duration") {
			cfg.Log.Duration = c.Duration("duration")
		}
		if cfg.Log.File == "" {
			return console.Exit(console.ExitFailure, "output file is required (--file)")
		}
		if cfg.Log.Duration <= 0 {
			return console.Exit(console.ExitFailure, "invalid duration: %s", cfg.Log.Duration)
		}
		if !c.Bool("force") {
			proceed, err := confirmOverwrite(cfg.Log.File)
			if err != nil {
				return console.Exit(console.ExitFailure, "prompt error: %s", console.Red(err))
			}
			if !proceed {
				console.PInfof(console.PictoStop, "aborted")
				return nil
			}
		}

		ctx, stop := signal.NotifyContext(snsctx.SetVerbose(c.Context, c.Bool("verbose")), os.Interrupt)
		defer stop()
		d, closeBus, err := openDevice(ctx, cfg)
		if err != nil {
			return console.Exit(console.ExitDevice, "accelerometer error: %s", console.Red(err))
		}
		defer func() { _ = closeBus() }()
		err = prepare(ctx, d, cfg.Accelerometer)
		if err != nil {
			return console.Exit(console.ExitDevice, "accelerometer error: %s", console.Red(err))
		}

		f, err := os.Create(cfg.Log.File)
		if err != nil {
			return console.Exit(console.ExitFailure, "could not create output file: %s", console.Red(err))
		}
		defer func() { _ = f.Close() }()

		console.PInfof(console.PictoNotebook, "logging %s to %s for %s", d.DataRate(), console.White(cfg.Log.File), cfg.Log.Duration)
		poller := accel.NewPoller(d, accel.WithBuffer(cfg.Log.Buffer))
		stats, err := record.Capture(ctx, poller, record.NewCSVWriter(f), cfg.Log.Duration)
		// the poller has returned; the device is ours again
		standbyErr := d.Disable(context.WithoutCancel(ctx))
		if err != nil {
			return console.Exit(console.ExitDevice, "logging failed after %d samples: %s", stats.Rows, console.Red(err))
		}
		if standbyErr != nil {
			console.Warnf("could not put accelerometer in standby: %s", standbyErr)
		}
		if ctx.Err() != nil {
			console.PInfof(console.PictoStop, "interrupted")
		}
		if stats.Dropped > 0 {
			console.Warnf("%d samples dropped", stats.Dropped)
		}
		console.PInfof(console.PictoFinish, "%s samples written in %s", console.Green(stats.Rows), stats.Elapsed.Round(time.Millisecond))
		return nil
	},
}

func confirmOverwrite(path string) (bool, error) {
	_, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("could not check output file: %w", err)
	}
	return console.Confirm(fmt.Sprintf("%s exists, overwrite?", path))
}
