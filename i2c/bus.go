package i2c

import (
	"context"
	"fmt"
	"log/slog"

	sensors "github.com/mklimuk/accellog"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

var _ sensors.Transactor = &GenericBus{}

// GenericBus is an I2C bus opened through the periph host drivers (/dev/i2c-N on linux).
type GenericBus struct {
	bus i2c.BusCloser
}

// NewGenericBus opens the named bus. A positive speed changes the bus clock,
// zero keeps the host driver default.
func NewGenericBus(dev string, speed physic.Frequency) (*GenericBus, error) {
	state, err := host.Init()
	if err != nil {
		return nil, fmt.Errorf("could not init host: %w", err)
	}
	for _, driver := range state.Loaded {
		slog.Debug("host driver loaded", "driver", driver.String())
	}
	bus, err := i2creg.Open(dev)
	if err != nil {
		return nil, fmt.Errorf("could not open i2c bus: %w", err)
	}
	b := newGenericBus(bus)
	if speed > 0 {
		err = b.SetSpeed(speed)
		if err != nil {
			_ = bus.Close()
			return nil, err
		}
	}
	return b, nil
}

func newGenericBus(bus i2c.BusCloser) *GenericBus {
	return &GenericBus{
		bus: bus,
	}
}

func (b *GenericBus) Tx(ctx context.Context, address byte, w, r []byte) error {
	err := b.bus.Tx(uint16(address), w, r)
	if err != nil {
		return fmt.Errorf("could not transact with %x over i2c bus: %w", address, err)
	}
	return nil
}

// SetSpeed changes the bus clock. Not every host driver supports it.
func (b *GenericBus) SetSpeed(f physic.Frequency) error {
	err := b.bus.SetSpeed(f)
	if err != nil {
		return fmt.Errorf("could not set i2c bus speed to %s: %w", f, err)
	}
	return nil
}

func (b *GenericBus) String() string {
	return b.bus.String()
}

func (b *GenericBus) Close() error {
	return b.bus.Close()
}
