package sensors

import (
	"context"
	"fmt"
)

var ErrBusBusy = fmt.Errorf("I2C engine is busy (command not completed)")

// Transactor writes w and then reads len(r) bytes from the device at address
// within one bus transaction (repeated start between the two phases).
// Either buffer may be empty.
type Transactor interface {
	Tx(ctx context.Context, address byte, w, r []byte) error
}

// I2CBus is a raw bus whose engine may need to be freed after an
// interrupted transfer (USB bridges).
type I2CBus interface {
	Transactor
	Release(ctx context.Context) error
}

// RegisterBus exposes the SMBus-style register operations a register mapped
// device driver needs. Calls are synchronous; a transport failure is returned
// as is and never retried.
type RegisterBus interface {
	ReadByteData(ctx context.Context, address, register byte) (byte, error)
	// ReadWordData reads two consecutive registers. The first register ends up in
	// the low byte of the result (SMBus word order).
	ReadWordData(ctx context.Context, address, register byte) (uint16, error)
	ReadBlockData(ctx context.Context, address, register byte, buffer []byte) error
	WriteByteData(ctx context.Context, address, register, value byte) error
}
