package accel

import (
	"context"
	"fmt"
	"sync"

	sensors "github.com/mklimuk/accellog"
	"github.com/mklimuk/accellog/bitfield"
)

var _ sensors.RegisterBus = &MockMMA8452Q{}

// SampleBehaviorFunc produces the next reading of a simulated MMA8452Q: the
// STATUS register value and signed 12-bit axis counts.
type SampleBehaviorFunc func(ctx context.Context) (status byte, x, y, z int16, err error)

type MockMMA8452QOpts struct {
	Address byte
	// ResetPolls is the number of CTRL_REG2 reads reporting a reset in progress
	// after a reset has been triggered.
	ResetPolls int
}

type MockMMA8452QOpt func(*MockMMA8452QOpts)

func WithMockAddress(addr byte) MockMMA8452QOpt {
	return func(o *MockMMA8452QOpts) {
		o.Address = addr
	}
}

func WithMockResetPolls(polls int) MockMMA8452QOpt {
	return func(o *MockMMA8452QOpts) {
		o.ResetPolls = polls
	}
}

// MockMMA8452Q simulates the MMA8452Q register file on a register bus so the
// driver can run without hardware. Axis data is produced by the behavior
// function whenever the device is active and the status register is read with
// no unread sample pending.
//
// Example usage:
//
//	// 1g on the Z axis (at ±2g), all axes ready
//	bus := NewMockMMA8452Q(func(ctx context.Context) (byte, int16, int16, int16, error) {
//		return 0b00001111, 0, 0, 1024, nil
//	})
//	d := NewMMA8452Q(bus, MMA8452QAddrHigh)
type MockMMA8452Q struct {
	mx         sync.Mutex
	config     MockMMA8452QOpts
	behavior   SampleBehaviorFunc
	regs       [0x32]byte
	resetPolls int
	pending    bool
}

// NewMockMMA8452Q creates a simulated device. A nil behavior reports 1g on the
// Z axis with all axes ready.
func NewMockMMA8452Q(behavior SampleBehaviorFunc, opts ...MockMMA8452QOpt) *MockMMA8452Q {
	config := MockMMA8452QOpts{
		Address:    MMA8452QAddrHigh,
		ResetPolls: 1,
	}
	for _, opt := range opts {
		opt(&config)
	}
	if behavior == nil {
		behavior = func(ctx context.Context) (byte, int16, int16, int16, error) {
			return 0b00001111, 0, 0, 1024, nil
		}
	}
	m := &MockMMA8452Q{config: config, behavior: behavior}
	m.powerUp()
	return m
}

// Register returns the current content of a register without side effects.
func (m *MockMMA8452Q) Register(reg byte) byte {
	m.mx.Lock()
	defer m.mx.Unlock()
	return m.regs[reg]
}

func (m *MockMMA8452Q) ReadByteData(ctx context.Context, address, register byte) (byte, error) {
	m.mx.Lock()
	defer m.mx.Unlock()
	if err := m.check(address, register, 1); err != nil {
		return 0, err
	}
	switch register {
	case regStatus:
		if err := m.latch(ctx); err != nil {
			return 0, err
		}
	case regCtrl2:
		if m.resetPolls > 0 {
			m.resetPolls--
			return bitfield.Set(m.regs[regCtrl2], ctrl2Reset), nil
		}
	case regSysMod:
		if m.active() {
			return byte(ModeWake), nil
		}
		return byte(ModeStandby), nil
	}
	v := m.regs[register]
	m.consume(register, 1)
	return v, nil
}

func (m *MockMMA8452Q) ReadWordData(ctx context.Context, address, register byte) (uint16, error) {
	m.mx.Lock()
	defer m.mx.Unlock()
	if err := m.check(address, register, 2); err != nil {
		return 0, err
	}
	w := uint16(m.regs[register]) | uint16(m.regs[register+1])<<8
	m.consume(register, 2)
	return w, nil
}

func (m *MockMMA8452Q) ReadBlockData(ctx context.Context, address, register byte, buffer []byte) error {
	m.mx.Lock()
	defer m.mx.Unlock()
	if err := m.check(address, register, len(buffer)); err != nil {
		return err
	}
	if register == regStatus {
		if err := m.latch(ctx); err != nil {
			return err
		}
		// with F_READ set the auto-increment skips the LSB registers
		if bitfield.IsSet(m.regs[regCtrl1], ctrl1FastRead) {
			fast := []byte{m.regs[regStatus], m.regs[regOutXMSB], m.regs[regOutYMSB], m.regs[regOutZMSB]}
			copy(buffer, fast)
			m.consume(register, len(buffer))
			return nil
		}
	}
	copy(buffer, m.regs[register:])
	m.consume(register, len(buffer))
	return nil
}

func (m *MockMMA8452Q) WriteByteData(ctx context.Context, address, register, value byte) error {
	m.mx.Lock()
	defer m.mx.Unlock()
	if err := m.check(address, register, 1); err != nil {
		return err
	}
	if register == regCtrl2 && bitfield.IsSet(value, ctrl2Reset) {
		m.powerUp()
		m.resetPolls = m.config.ResetPolls
		return nil
	}
	m.regs[register] = value
	return nil
}

func (m *MockMMA8452Q) check(address, register byte, n int) error {
	if address != m.config.Address {
		return fmt.Errorf("no device at address %#x", address)
	}
	if int(register)+n > len(m.regs) {
		return fmt.Errorf("register %#x out of range", register)
	}
	return nil
}

func (m *MockMMA8452Q) powerUp() {
	m.regs = [0x32]byte{}
	m.regs[regWhoAmI] = whoAmIValue
	m.pending = false
}

func (m *MockMMA8452Q) active() bool {
	return bitfield.IsSet(m.regs[regCtrl1], ctrl1Active)
}

// latch loads a new sample into the output registers unless one is still unread.
func (m *MockMMA8452Q) latch(ctx context.Context) error {
	if !m.active() || m.pending {
		return nil
	}
	status, x, y, z, err := m.behavior(ctx)
	if err != nil {
		return err
	}
	m.regs[regStatus] = status
	for i, v := range []int16{x, y, z} {
		raw := uint16(v) & 0x0FFF
		m.regs[regOutXMSB+2*i] = byte(raw >> 4)
		m.regs[regOutXMSB+2*i+1] = byte(raw << 4)
	}
	m.pending = bitfield.IsSet(status, statusZYXDR)
	return nil
}

// consume clears the status flags once output data has been read.
func (m *MockMMA8452Q) consume(register byte, n int) {
	if int(register)+n <= regOutXMSB || register > regOutZMSB+1 {
		return
	}
	m.regs[regStatus] = 0
	m.pending = false
}
