package i2c

import (
	"context"
	"encoding/binary"
	"fmt"

	sensors "github.com/mklimuk/accellog"
)

var _ sensors.RegisterBus = &Registers{}

// Registers implements SMBus style register access on top of a raw bus
// transaction: the register pointer is written first and the data is read back
// after a repeated start.
type Registers struct {
	bus sensors.Transactor
}

func NewRegisters(bus sensors.Transactor) *Registers {
	return &Registers{bus: bus}
}

func (r *Registers) ReadByteData(ctx context.Context, address, register byte) (byte, error) {
	var buf [1]byte
	err := r.bus.Tx(ctx, address, []byte{register}, buf[:])
	if err != nil {
		return 0, fmt.Errorf("could not read register %#02x of device %#02x: %w", register, address, err)
	}
	return buf[0], nil
}

func (r *Registers) ReadWordData(ctx context.Context, address, register byte) (uint16, error) {
	var buf [2]byte
	err := r.bus.Tx(ctx, address, []byte{register}, buf[:])
	if err != nil {
		return 0, fmt.Errorf("could not read word at %#02x of device %#02x: %w", register, address, err)
	}
	return binary.LittleEndian.Uint16(buf[:]), nil
}

func (r *Registers) ReadBlockData(ctx context.Context, address, register byte, buffer []byte) error {
	err := r.bus.Tx(ctx, address, []byte{register}, buffer)
	if err != nil {
		return fmt.Errorf("could not read %d bytes at %#02x of device %#02x: %w", len(buffer), register, address, err)
	}
	return nil
}

func (r *Registers) WriteByteData(ctx context.Context, address, register, value byte) error {
	err := r.bus.Tx(ctx, address, []byte{register, value}, nil)
	if err != nil {
		return fmt.Errorf("could not write register %#02x of device %#02x: %w", register, address, err)
	}
	return nil
}
