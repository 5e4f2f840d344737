package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v2"
	"gobot.io/x/gobot/v2/platforms/friendlyelec/nanopi"
	"gobot.io/x/gobot/v2/platforms/raspi"

	sensors "github.com/mklimuk/accellog"
	"github.com/mklimuk/accellog/accel"
	"github.com/mklimuk/accellog/adapter"
	"github.com/mklimuk/accellog/i2c"
	"github.com/mklimuk/accellog/pkg/config"
)

var busFlags = []cli.Flag{
	&cli.StringFlag{Name: "adapter", Usage: "bus adapter: generic, nanopi, raspi, mcp2221 or mock"},
	&cli.StringFlag{Name: "device", Usage: "i2c device of the generic adapter"},
	&cli.IntFlag{Name: "address", Usage: "i2c address of the accelerometer (0x1D or 0x1C)"},
	&cli.IntFlag{Name: "bus-number", Usage: "i2c bus number of the gobot adapters"},
	&cli.IntFlag{Name: "speed-khz", Usage: "i2c clock of the generic adapter in kHz (0 keeps the driver default)"},
}

// loadConfig reads the configuration file, if any, and applies command line overrides.
func loadConfig(c *cli.Context) (config.Config, error) {
	cfg := config.Default()
	var err error
	if path := c.String("config"); path != "" {
		cfg, err = config.Load(path)
		if err != nil {
			return cfg, err
		}
	}
	if c.IsSet("adapter") {
		cfg.Bus.Adapter = c.String("adapter")
	}
	if c.IsSet("device") {
		cfg.Bus.Device = c.String("device")
	}
	if c.IsSet("address") {
		cfg.Bus.Address = c.Int("address")
	}
	if c.IsSet("bus-number") {
		cfg.Bus.BusNumber = c.Int("bus-number")
	}
	if c.IsSet("speed-khz") {
		cfg.Bus.SpeedKHz = c.Int("speed-khz")
	}
	return cfg, cfg.Validate()
}

// openBus opens the register transport selected in the configuration.
// The returned function releases it.
func openBus(cfg config.Bus) (sensors.RegisterBus, func() error, error) {
	switch cfg.Adapter {
	case "generic":
		bus, err := i2c.NewGenericBus(cfg.Device, cfg.Speed())
		if err != nil {
			return nil, nil, err
		}
		return i2c.NewRegisters(bus), bus.Close, nil
	case "nanopi":
		npi := nanopi.NewNeoAdaptor()
		err := npi.I2cBusAdaptor.Connect()
		if err != nil {
			return nil, nil, fmt.Errorf("adaptor connect error: %w", err)
		}
		bus := i2c.NewGobotBus(npi, cfg.BusNumber)
		return bus, func() error {
			return errors.Join(bus.Close(), npi.I2cBusAdaptor.Finalize())
		}, nil
	case "raspi":
		rpi := raspi.NewAdaptor()
		err := rpi.Connect()
		if err != nil {
			return nil, nil, fmt.Errorf("adaptor connect error: %w", err)
		}
		bus := i2c.NewGobotBus(rpi, cfg.BusNumber)
		return bus, func() error {
			return errors.Join(bus.Close(), rpi.Finalize())
		}, nil
	case "mcp2221":
		bridge := adapter.NewMCP2221()
		return i2c.NewRegisters(bridge), func() error {
			return bridge.Release(context.Background())
		}, nil
	case "mock":
		return accel.NewMockMMA8452Q(nil, accel.WithMockAddress(byte(cfg.Address))), func() error { return nil }, nil
	}
	return nil, nil, fmt.Errorf("unknown bus adapter: %q", cfg.Adapter)
}

// openDevice returns a driver for the configured accelerometer. Nothing is written to the device.
func openDevice(ctx context.Context, cfg config.Config) (*accel.MMA8452Q, func() error, error) {
	bus, closeBus, err := openBus(cfg.Bus)
	if err != nil {
		return nil, nil, fmt.Errorf("could not open %s bus: %w", cfg.Bus.Adapter, err)
	}
	d := accel.NewMMA8452Q(bus, byte(cfg.Bus.Address), accel.WithResetTimeout(cfg.Accelerometer.ResetTimeout))
	if cfg.Accelerometer.VerifyIdentity {
		err = d.VerifyIdentity(ctx)
		if err != nil {
			_ = closeBus()
			return nil, nil, err
		}
	}
	return d, closeBus, nil
}

// prepare resets the device, applies the configured settings and starts sampling.
func prepare(ctx context.Context, d *accel.MMA8452Q, cfg config.Accelerometer) error {
	rng, rate, err := cfg.Settings()
	if err != nil {
		return err
	}
	err = d.Reset(ctx)
	if err != nil {
		return fmt.Errorf("could not reset accelerometer: %w", err)
	}
	err = d.Configure(ctx, rng, cfg.FastRead, rate)
	if err != nil {
		return fmt.Errorf("could not configure accelerometer: %w", err)
	}
	if cfg.HighPassHz > 0 {
		cutoff := accel.CutoffForFrequency(cfg.HighPassHz, rate)
		slog.Debug("enabling high-pass filter", "requested", cfg.HighPassHz, "cutoff", cutoff.Frequency(rate))
		err = d.EnableHighPass(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("could not enable high-pass filter: %w", err)
		}
	}
	err = d.Enable(ctx)
	if err != nil {
		return fmt.Errorf("could not activate accelerometer: %w", err)
	}
	return nil
}
