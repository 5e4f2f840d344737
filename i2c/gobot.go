package i2c

import (
	"context"
	"errors"
	"fmt"
	"sync"

	sensors "github.com/mklimuk/accellog"
	gobot "gobot.io/x/gobot/v2/drivers/i2c"
)

var _ sensors.RegisterBus = &GobotBus{}

// GobotBus performs register operations through a gobot I2C connector
// (nanopi, raspi and other gobot platform adaptors). Connections are opened
// lazily, one per device address, and reused.
type GobotBus struct {
	connector gobot.Connector
	busNr     int

	mu    sync.Mutex
	conns map[byte]gobot.Connection
}

// NewGobotBus uses the connector's default bus when busNr is negative.
func NewGobotBus(connector gobot.Connector, busNr int) *GobotBus {
	if busNr < 0 {
		busNr = connector.DefaultI2cBus()
	}
	return &GobotBus{
		connector: connector,
		busNr:     busNr,
		conns:     map[byte]gobot.Connection{},
	}
}

func (b *GobotBus) conn(address byte) (gobot.Connection, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.conns[address]
	if ok {
		return c, nil
	}
	c, err := b.connector.GetI2cConnection(int(address), b.busNr)
	if err != nil {
		return nil, fmt.Errorf("could not open connection to %x on bus %d: %w", address, b.busNr, err)
	}
	b.conns[address] = c
	return c, nil
}

func (b *GobotBus) ReadByteData(ctx context.Context, address, register byte) (byte, error) {
	c, err := b.conn(address)
	if err != nil {
		return 0, err
	}
	v, err := c.ReadByteData(register)
	if err != nil {
		return 0, fmt.Errorf("could not read register %#02x of device %#02x: %w", register, address, err)
	}
	return v, nil
}

func (b *GobotBus) ReadWordData(ctx context.Context, address, register byte) (uint16, error) {
	c, err := b.conn(address)
	if err != nil {
		return 0, err
	}
	v, err := c.ReadWordData(register)
	if err != nil {
		return 0, fmt.Errorf("could not read word at %#02x of device %#02x: %w", register, address, err)
	}
	return v, nil
}

func (b *GobotBus) ReadBlockData(ctx context.Context, address, register byte, buffer []byte) error {
	c, err := b.conn(address)
	if err != nil {
		return err
	}
	err = c.ReadBlockData(register, buffer)
	if err != nil {
		return fmt.Errorf("could not read %d bytes at %#02x of device %#02x: %w", len(buffer), register, address, err)
	}
	return nil
}

func (b *GobotBus) WriteByteData(ctx context.Context, address, register, value byte) error {
	c, err := b.conn(address)
	if err != nil {
		return err
	}
	err = c.WriteByteData(register, value)
	if err != nil {
		return fmt.Errorf("could not write register %#02x of device %#02x: %w", register, address, err)
	}
	return nil
}

// Close closes every connection opened so far. The connector itself is left to the caller.
func (b *GobotBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var errs []error
	for addr, c := range b.conns {
		err := c.Close()
		if err != nil {
			errs = append(errs, fmt.Errorf("could not close connection to %x: %w", addr, err))
		}
		delete(b.conns, addr)
	}
	return errors.Join(errs...)
}
