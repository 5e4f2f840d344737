package accel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	sensors "github.com/mklimuk/accellog"
	"github.com/mklimuk/accellog/bitfield"
)

// MMA8452Q I2C addresses (SA0 pulled high / low).
const (
	MMA8452QAddrHigh = 0x1D
	MMA8452QAddrLow  = 0x1C
)

const (
	regStatus         = 0x00
	regOutXMSB        = 0x01
	regOutYMSB        = 0x03
	regOutZMSB        = 0x05
	regSysMod         = 0x0B
	regWhoAmI         = 0x0D
	regXYZDataCfg     = 0x0E
	regHPFilterCutoff = 0x0F
	regCtrl1          = 0x2A
	regCtrl2          = 0x2B
)

// STATUS (0x00) bits
const (
	statusXDR   = 0
	statusYDR   = 1
	statusZDR   = 2
	statusZYXDR = 3
	statusZYXOW = 7
)

const (
	dataCfgRangeMask = 0b00000011
	dataCfgHPFOut    = 4

	hpCutoffMask = 0b00000011

	ctrl1RateMask = 0b00111000
	ctrl1FastRead = 1
	ctrl1Active   = 0

	ctrl2Reset = 6

	sysModMask = 0b00000011
)

const whoAmIValue = 0x2A

var ErrResetTimeout = errors.New("device did not complete reset in time")
var ErrUnexpectedDevice = errors.New("unexpected device identity")

// State is the driver lifecycle state.
type State int

const (
	StateUnknown State = iota
	StateResetting
	StateConfigured
	StateActive
)

func (s State) String() string {
	switch s {
	case StateResetting:
		return "resetting"
	case StateConfigured:
		return "configured"
	case StateActive:
		return "active"
	default:
		return "unknown"
	}
}

// Axis is a single axis reading. Ready is false when the device had no new
// data for the axis; the previous value should be considered current then.
type Axis struct {
	Value float64
	Ready bool
}

// String formats the value as the shortest decimal that reads back exactly,
// always with a fractional part ("1.0", "-0.5"). An axis without data is "".
func (a Axis) String() string {
	if !a.Ready {
		return ""
	}
	s := strconv.FormatFloat(a.Value, 'f', -1, 64)
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return s
}

// Sample is one decoded reading, in g.
type Sample struct {
	// Overwritten is set when new data replaced an unread sample on any axis,
	// i.e. the device is polled too slowly for its data rate.
	Overwritten bool
	X, Y, Z     Axis
}

type MMA8452QOpts struct {
	ResetTimeout      time.Duration
	ResetPollInterval time.Duration
	// Now is the clock used to measure the reset timeout.
	Now func() time.Time
}

type MMA8452QOpt func(*MMA8452QOpts)

func WithResetTimeout(timeout time.Duration) MMA8452QOpt {
	return func(o *MMA8452QOpts) {
		o.ResetTimeout = timeout
	}
}

func WithResetPollInterval(interval time.Duration) MMA8452QOpt {
	return func(o *MMA8452QOpts) {
		o.ResetPollInterval = interval
	}
}

func WithClock(now func() time.Time) MMA8452QOpt {
	return func(o *MMA8452QOpts) {
		o.Now = now
	}
}

// MMA8452Q represents NXP MMA8452Q 3-axis 12-bit accelerometer.
//
// The driver is not safe for concurrent use. Once sampling starts it should be
// owned by a single goroutine (see Poller).
//
// Typical usage:
//
//	d := NewMMA8452Q(bus, MMA8452QAddrHigh)
//	err := d.Reset(ctx)
//	err = d.Configure(ctx, Range2G, false, Rate6_25Hz)
//	err = d.Enable(ctx)
//	s, err := d.ReadAccelerationAndStatus(ctx)
type MMA8452Q struct {
	config    MMA8452QOpts
	transport sensors.RegisterBus
	addr      byte
	buf       []byte

	state    State
	rng      Range
	fastRead bool
	rate     DataRate
	active   bool
	highPass bool
}

func NewMMA8452Q(transport sensors.RegisterBus, addr byte, opts ...MMA8452QOpt) *MMA8452Q {
	config := MMA8452QOpts{
		ResetTimeout:      30 * time.Second,
		ResetPollInterval: time.Millisecond,
		Now:               time.Now,
	}
	for _, opt := range opts {
		opt(&config)
	}
	return &MMA8452Q{
		config:    config,
		transport: transport,
		addr:      addr,
		buf:       make([]byte, 7),
		rng:       Range2G,
		rate:      Rate800Hz,
	}
}

func (d *MMA8452Q) Addr() byte         { return d.addr }
func (d *MMA8452Q) State() State       { return d.state }
func (d *MMA8452Q) Range() Range       { return d.rng }
func (d *MMA8452Q) FastRead() bool     { return d.fastRead }
func (d *MMA8452Q) DataRate() DataRate { return d.rate }
func (d *MMA8452Q) Active() bool       { return d.active }
func (d *MMA8452Q) HighPass() bool     { return d.highPass }

func (d *MMA8452Q) String() string {
	return fmt.Sprintf("MMA8452Q{addr:%#x state:%s range:%s rate:%s fastRead:%t active:%t highPass:%t}",
		d.addr, d.state, d.rng, d.rate, d.fastRead, d.active, d.highPass)
}

// WhoAmI returns the content of the identification register.
func (d *MMA8452Q) WhoAmI(ctx context.Context) (byte, error) {
	id, err := d.transport.ReadByteData(ctx, d.addr, regWhoAmI)
	if err != nil {
		return 0, fmt.Errorf("could not read device identity: %w", err)
	}
	return id, nil
}

// VerifyIdentity checks that the device at the driver address reports itself as an MMA8452Q.
func (d *MMA8452Q) VerifyIdentity(ctx context.Context) error {
	id, err := d.WhoAmI(ctx)
	if err != nil {
		return err
	}
	if id != whoAmIValue {
		return fmt.Errorf("%w: expected %#x, got %#x", ErrUnexpectedDevice, whoAmIValue, id)
	}
	return nil
}

// SystemMode returns the operating mode reported by the device.
func (d *MMA8452Q) SystemMode(ctx context.Context) (SystemMode, error) {
	v, err := d.transport.ReadByteData(ctx, d.addr, regSysMod)
	if err != nil {
		return 0, fmt.Errorf("could not read system mode: %w", err)
	}
	return SystemMode(bitfield.Field(v, sysModMask)), nil
}

// Reset triggers a software reset, waits until the device clears the reset
// flag and synchronizes the driver configuration with the device registers.
// It fails with ErrResetTimeout when the flag is still set after the reset timeout.
// It is not retried.
func (d *MMA8452Q) Reset(ctx context.Context) error {
	d.state = StateResetting
	err := d.reset(ctx)
	if err != nil {
		d.state = StateUnknown
		return err
	}
	slog.Debug("mma8452q reset complete", "device", d.String())
	return nil
}

func (d *MMA8452Q) reset(ctx context.Context) error {
	err := d.transport.WriteByteData(ctx, d.addr, regCtrl2, bitfield.Set(0x00, ctrl2Reset))
	if err != nil {
		return fmt.Errorf("could not trigger reset: %w", err)
	}
	err = d.waitForReset(ctx)
	if err != nil {
		return err
	}
	return d.synchronize(ctx)
}

func (d *MMA8452Q) waitForReset(ctx context.Context) error {
	start := d.config.Now()
	for {
		ctrl2, err := d.transport.ReadByteData(ctx, d.addr, regCtrl2)
		if err != nil {
			return fmt.Errorf("could not read reset status: %w", err)
		}
		if bitfield.IsClear(ctrl2, ctrl2Reset) {
			return nil
		}
		if d.config.Now().Sub(start) > d.config.ResetTimeout {
			return fmt.Errorf("%w (%s)", ErrResetTimeout, d.config.ResetTimeout)
		}
		err = sleep(ctx, d.config.ResetPollInterval)
		if err != nil {
			return err
		}
	}
}

// Sync adopts the configuration of a device that was set up earlier
// (by another process or a previous run) without resetting it.
func (d *MMA8452Q) Sync(ctx context.Context) error {
	err := d.synchronize(ctx)
	if err != nil {
		return err
	}
	slog.Debug("mma8452q synchronized", "device", d.String())
	return nil
}

// synchronize reads back the configuration registers; the device may come up
// with values other than the datasheet defaults.
func (d *MMA8452Q) synchronize(ctx context.Context) error {
	dataCfg, err := d.transport.ReadByteData(ctx, d.addr, regXYZDataCfg)
	if err != nil {
		return fmt.Errorf("could not read data configuration: %w", err)
	}
	ctrl1, err := d.transport.ReadByteData(ctx, d.addr, regCtrl1)
	if err != nil {
		return fmt.Errorf("could not read control register 1: %w", err)
	}
	rng := Range(bitfield.Field(dataCfg, dataCfgRangeMask))
	if !rng.valid() {
		return fmt.Errorf("%w: device reports code %#b", ErrInvalidRange, byte(rng))
	}
	d.rng = rng
	d.highPass = bitfield.IsSet(dataCfg, dataCfgHPFOut)
	d.fastRead = bitfield.IsSet(ctrl1, ctrl1FastRead)
	d.rate = DataRate(bitfield.Field(ctrl1, ctrl1RateMask))
	d.active = bitfield.IsSet(ctrl1, ctrl1Active)
	d.state = d.configuredState()
	return nil
}

// Configure writes range, fast read mode and data rate to the device.
// The device must be in standby (see Disable); the driver does not check it.
// The active flag is carried over from the current driver state.
func (d *MMA8452Q) Configure(ctx context.Context, rng Range, fastRead bool, rate DataRate) error {
	if !rng.valid() {
		return fmt.Errorf("%w: %s", ErrInvalidRange, rng)
	}
	if rate > Rate1_56Hz {
		return fmt.Errorf("unsupported data rate: %s", rate)
	}
	err := d.transport.WriteByteData(ctx, d.addr, regXYZDataCfg, dataConfig(rng, d.highPass))
	if err != nil {
		return fmt.Errorf("could not write data configuration: %w", err)
	}
	err = d.transport.WriteByteData(ctx, d.addr, regCtrl1, control1(d.active, fastRead, rate))
	if err != nil {
		// data configuration already changed; only a reset brings back a known state
		d.state = StateUnknown
		return fmt.Errorf("could not write control register 1: %w", err)
	}
	d.rng = rng
	d.fastRead = fastRead
	d.rate = rate
	d.state = d.configuredState()
	slog.Debug("mma8452q configured", "device", d.String())
	return nil
}

// EnableHighPass routes high-pass filtered data to the output registers.
// Like Configure it must be called in standby.
// The filter output is switched on before the cutoff is written: if the cutoff
// write fails the device keeps HPF_OUT set with its previous cutoff, and
// HighPass reports true to match it.
func (d *MMA8452Q) EnableHighPass(ctx context.Context, cutoff HighPassCutoff) error {
	if cutoff > CutoffLowest {
		return fmt.Errorf("unsupported high-pass cutoff: %s", cutoff)
	}
	err := d.transport.WriteByteData(ctx, d.addr, regXYZDataCfg, dataConfig(d.rng, true))
	if err != nil {
		return fmt.Errorf("could not enable high-pass output: %w", err)
	}
	d.highPass = true
	err = d.transport.WriteByteData(ctx, d.addr, regHPFilterCutoff, bitfield.WithField(0x00, hpCutoffMask, byte(cutoff)))
	if err != nil {
		return fmt.Errorf("could not write high-pass cutoff: %w", err)
	}
	slog.Debug("mma8452q high-pass enabled", "cutoff", cutoff, "hz", cutoff.Frequency(d.rate))
	return nil
}

// DisableHighPass switches the output registers back to unfiltered data.
func (d *MMA8452Q) DisableHighPass(ctx context.Context) error {
	err := d.transport.WriteByteData(ctx, d.addr, regXYZDataCfg, dataConfig(d.rng, false))
	if err != nil {
		return fmt.Errorf("could not disable high-pass output: %w", err)
	}
	d.highPass = false
	return nil
}

// Enable puts the device in active mode. Before the first Reset or Configure
// the flag is only recorded and takes effect with the next configuration write.
// Enabling does not read data; use IsDataReady and ReadAccelerationAndStatus.
func (d *MMA8452Q) Enable(ctx context.Context) error {
	return d.setActive(ctx, true)
}

// Disable puts the device in standby, where its configuration may be changed.
func (d *MMA8452Q) Disable(ctx context.Context) error {
	return d.setActive(ctx, false)
}

func (d *MMA8452Q) setActive(ctx context.Context, active bool) error {
	if d.state == StateUnknown {
		d.active = active
		return nil
	}
	err := d.transport.WriteByteData(ctx, d.addr, regCtrl1, control1(active, d.fastRead, d.rate))
	if err != nil {
		return fmt.Errorf("could not write control register 1: %w", err)
	}
	d.active = active
	d.state = d.configuredState()
	return nil
}

// IsDataReady reports whether new data is available on any axis.
// Reading the status does not clear the flag; reading axis data does.
func (d *MMA8452Q) IsDataReady(ctx context.Context) (bool, error) {
	status, err := d.transport.ReadByteData(ctx, d.addr, regStatus)
	if err != nil {
		return false, fmt.Errorf("could not read status: %w", err)
	}
	return bitfield.IsSet(status, statusZYXDR), nil
}

// ReadAccelerationAndStatus reads the status register and the three axes in
// one block transfer and decodes them according to the current range and read mode.
func (d *MMA8452Q) ReadAccelerationAndStatus(ctx context.Context) (Sample, error) {
	var x, y, z float64
	var status byte
	if d.fastRead {
		buf := d.buf[:4]
		err := d.transport.ReadBlockData(ctx, d.addr, regStatus, buf)
		if err != nil {
			return Sample{}, fmt.Errorf("could not read acceleration: %w", err)
		}
		status = buf[0]
		x = convert8(buf[1], d.rng)
		y = convert8(buf[2], d.rng)
		z = convert8(buf[3], d.rng)
	} else {
		buf := d.buf[:7]
		err := d.transport.ReadBlockData(ctx, d.addr, regStatus, buf)
		if err != nil {
			return Sample{}, fmt.Errorf("could not read acceleration: %w", err)
		}
		status = buf[0]
		x = convert12(buf[1], buf[2], d.rng)
		y = convert12(buf[3], buf[4], d.rng)
		z = convert12(buf[5], buf[6], d.rng)
	}
	return Sample{
		Overwritten: bitfield.IsSet(status, statusZYXOW),
		X:           Axis{Value: x, Ready: bitfield.IsSet(status, statusXDR)},
		Y:           Axis{Value: y, Ready: bitfield.IsSet(status, statusYDR)},
		Z:           Axis{Value: z, Ready: bitfield.IsSet(status, statusZDR)},
	}, nil
}

func (d *MMA8452Q) ReadXAcceleration(ctx context.Context) (float64, error) {
	return d.readAxis(ctx, regOutXMSB)
}

func (d *MMA8452Q) ReadYAcceleration(ctx context.Context) (float64, error) {
	return d.readAxis(ctx, regOutYMSB)
}

func (d *MMA8452Q) ReadZAcceleration(ctx context.Context) (float64, error) {
	return d.readAxis(ctx, regOutZMSB)
}

func (d *MMA8452Q) readAxis(ctx context.Context, reg byte) (float64, error) {
	if d.fastRead {
		msb, err := d.transport.ReadByteData(ctx, d.addr, reg)
		if err != nil {
			return 0, fmt.Errorf("could not read axis register %#x: %w", reg, err)
		}
		return convert8(msb, d.rng), nil
	}
	word, err := d.transport.ReadWordData(ctx, d.addr, reg)
	if err != nil {
		return 0, fmt.Errorf("could not read axis register %#x: %w", reg, err)
	}
	// SMBus word order: MSB register in the low byte
	return convert12(byte(word), byte(word>>8), d.rng), nil
}

func (d *MMA8452Q) configuredState() State {
	if d.active {
		return StateActive
	}
	return StateConfigured
}

func dataConfig(rng Range, highPass bool) byte {
	v := bitfield.WithField(0x00, dataCfgRangeMask, byte(rng))
	if highPass {
		v = bitfield.Set(v, dataCfgHPFOut)
	}
	return v
}

func control1(active, fastRead bool, rate DataRate) byte {
	var v byte
	if active {
		v = bitfield.Set(v, ctrl1Active)
	}
	if fastRead {
		v = bitfield.Set(v, ctrl1FastRead)
	}
	return bitfield.WithField(v, ctrl1RateMask, byte(rate))
}

func convert8(msb byte, rng Range) float64 {
	return float64(toSigned(uint16(msb), 8)) * rng.Step(8)
}

// convert12 decodes a left-justified 12-bit sample: 8 bits in msb, 4 bits in
// the upper nibble of lsb.
func convert12(msb, lsb byte, rng Range) float64 {
	raw := uint16(msb)<<4 | uint16(lsb>>4)
	return float64(toSigned(raw, 12)) * rng.Step(12)
}

// toSigned interprets the low bits of v as a two's complement number.
func toSigned(v uint16, bits uint) int {
	limit := 1 << bits
	if int(v)&(limit>>1) == 0 {
		return int(v)
	}
	return int(v) - limit
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
