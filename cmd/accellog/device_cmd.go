package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/mklimuk/accellog/accel"
	"github.com/mklimuk/accellog/cmd/accellog/console"
	"github.com/mklimuk/accellog/snsctx"
)

var readCmd = cli.Command{
	Name:  "read",
	Usage: "configure the accelerometer and print a single sample",
	Flags: append([]cli.Flag{
		&cli.DurationFlag{Name: "timeout", Usage: "how long to wait for data", Value: 2 * time.Second},
	}, busFlags...),
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return console.Exit(console.ExitFailure, "invalid configuration: %s", console.Red(err))
		}
		ctx, cancel := context.WithTimeout(snsctx.SetVerbose(c.Context, c.Bool("verbose")), c.Duration("timeout"))
		defer cancel()
		d, closeBus, err := openDevice(ctx, cfg)
		if err != nil {
			return console.Exit(console.ExitDevice, "accelerometer error: %s", console.Red(err))
		}
		defer func() { _ = closeBus() }()
		err = prepare(ctx, d, cfg.Accelerometer)
		if err != nil {
			return console.Exit(console.ExitDevice, "accelerometer error: %s", console.Red(err))
		}
		sample, err := readOne(ctx, d)
		_ = d.Disable(context.WithoutCancel(ctx))
		if err != nil {
			return console.Exit(console.ExitDevice, "read error: %s", console.Red(err))
		}
		console.Printf("x: %s\ny: %s\nz: %s\n", axis(sample.X), axis(sample.Y), axis(sample.Z))
		if sample.Overwritten {
			console.Warnf("data was overwritten before it was read")
		}
		return nil
	},
}

func axis(a accel.Axis) string {
	if !a.Ready {
		return console.Faint("no new data")
	}
	return console.White(a.String() + " g")
}

// readOne waits for the next sample, polling at the data rate.
func readOne(ctx context.Context, d *accel.MMA8452Q) (accel.Sample, error) {
	interval := d.DataRate().Period() / 5
	for {
		ready, err := d.IsDataReady(ctx)
		if err != nil {
			return accel.Sample{}, err
		}
		if ready {
			return d.ReadAccelerationAndStatus(ctx)
		}
		select {
		case <-ctx.Done():
			return accel.Sample{}, fmt.Errorf("no data: %w", ctx.Err())
		case <-time.After(interval):
		}
	}
}

var infoCmd = cli.Command{
	Name:  "info",
	Usage: "print accelerometer identity and configuration",
	Flags: busFlags,
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return console.Exit(console.ExitFailure, "invalid configuration: %s", console.Red(err))
		}
		ctx := snsctx.SetVerbose(c.Context, c.Bool("verbose"))
		// identity is printed rather than enforced
		cfg.Accelerometer.VerifyIdentity = false
		d, closeBus, err := openDevice(ctx, cfg)
		if err != nil {
			return console.Exit(console.ExitDevice, "accelerometer error: %s", console.Red(err))
		}
		defer func() { _ = closeBus() }()
		id, err := d.WhoAmI(ctx)
		if err != nil {
			return console.Exit(console.ExitDevice, "accelerometer error: %s", console.Red(err))
		}
		mode, err := d.SystemMode(ctx)
		if err != nil {
			return console.Exit(console.ExitDevice, "accelerometer error: %s", console.Red(err))
		}
		err = d.Sync(ctx)
		if err != nil {
			return console.Exit(console.ExitDevice, "accelerometer error: %s", console.Red(err))
		}
		verified := console.Green("MMA8452Q")
		if d.VerifyIdentity(ctx) != nil {
			verified = console.Red("unknown device")
		}
		console.Printf("address:    %s\n", console.White(fmt.Sprintf("%#x", d.Addr())))
		console.Printf("who am i:   %s (%s)\n", console.White(fmt.Sprintf("%#x", id)), verified)
		console.Printf("mode:       %s\n", console.White(mode))
		console.Printf("range:      %s\n", console.White(d.Range()))
		console.Printf("data rate:  %s\n", console.White(d.DataRate()))
		console.Printf("fast read:  %s\n", console.White(d.FastRead()))
		console.Printf("high-pass:  %s\n", console.White(d.HighPass()))
		console.Printf("active:     %s\n", console.White(d.Active()))
		return nil
	},
}

var resetCmd = cli.Command{
	Name:  "reset",
	Usage: "software reset the accelerometer",
	Flags: busFlags,
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return console.Exit(console.ExitFailure, "invalid configuration: %s", console.Red(err))
		}
		ctx := snsctx.SetVerbose(c.Context, c.Bool("verbose"))
		d, closeBus, err := openDevice(ctx, cfg)
		if err != nil {
			return console.Exit(console.ExitDevice, "accelerometer error: %s", console.Red(err))
		}
		defer func() { _ = closeBus() }()
		start := time.Now()
		err = d.Reset(ctx)
		if err != nil {
			return console.Exit(console.ExitDevice, "reset failed: %s", console.Red(err))
		}
		console.PInfof(console.PictoFinish, "reset completed in %s, device %s", time.Since(start).Round(time.Microsecond), console.White(d.State()))
		return nil
	},
}

var configCmd = cli.Command{
	Name:  "config",
	Usage: "print the effective configuration",
	Flags: busFlags,
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return console.Exit(console.ExitFailure, "invalid configuration: %s", console.Red(err))
		}
		return printYAML(cfg)
	},
}

func printYAML(v any) error {
	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	err := enc.Encode(v)
	if err != nil {
		return console.Exit(console.ExitFailure, "encoding error: %s", console.Red(err))
	}
	return enc.Close()
}
