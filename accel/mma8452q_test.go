package accel

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testAddr = byte(MMA8452QAddrHigh)

// MockRegisterBus is a mock implementation of sensors.RegisterBus using testify/mock
type MockRegisterBus struct {
	mock.Mock
}

func (m *MockRegisterBus) ReadByteData(ctx context.Context, address, register byte) (byte, error) {
	args := m.Called(ctx, address, register)
	return args.Get(0).(byte), args.Error(1)
}

func (m *MockRegisterBus) ReadWordData(ctx context.Context, address, register byte) (uint16, error) {
	args := m.Called(ctx, address, register)
	return args.Get(0).(uint16), args.Error(1)
}

func (m *MockRegisterBus) ReadBlockData(ctx context.Context, address, register byte, buffer []byte) error {
	args := m.Called(ctx, address, register, len(buffer))
	if data, ok := args.Get(0).([]byte); ok {
		copy(buffer, data)
	}
	return args.Error(1)
}

func (m *MockRegisterBus) WriteByteData(ctx context.Context, address, register, value byte) error {
	args := m.Called(ctx, address, register, value)
	return args.Error(0)
}

// steppingClock advances by step on every call
func steppingClock(step time.Duration) func() time.Time {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		now = now.Add(step)
		return now
	}
}

// encode12 returns the left-justified MSB/LSB register pair of a 12-bit count
func encode12(v int) (byte, byte) {
	raw := uint16(v) & 0x0FFF
	return byte(raw >> 4), byte(raw << 4)
}

func TestToSigned(t *testing.T) {
	for _, bits := range []uint{8, 12} {
		t.Run(fmt.Sprintf("%d bits", bits), func(t *testing.T) {
			lo, hi := -(1 << (bits - 1)), 1<<(bits-1)-1
			for v := lo; v <= hi; v++ {
				encoded := uint16(v) & (1<<bits - 1)
				if !assert.Equal(t, v, toSigned(encoded, bits)) {
					return
				}
			}
		})
	}
}

func TestConvert12(t *testing.T) {
	tests := []struct {
		count int
		rng   Range
	}{
		{0, Range2G},
		{1, Range2G},
		{-1, Range2G},
		{2047, Range4G},
		{-2048, Range8G},
		{1024, Range2G},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%d@%s", test.count, test.rng), func(t *testing.T) {
			msb, lsb := encode12(test.count)
			assert.Equal(t, float64(test.count)*test.rng.Step(12), convert12(msb, lsb, test.rng))
		})
	}
}

func TestMMA8452Q_Configure(t *testing.T) {
	tests := []struct {
		name          string
		enableFirst   bool
		rng           Range
		fastRead      bool
		rate          DataRate
		expectDataCfg byte
		expectCtrl1   byte
		expectState   State
	}{
		{
			name:          "standby 2g normal read 6.25Hz",
			rng:           Range2G,
			rate:          Rate6_25Hz,
			expectDataCfg: 0b00000000,
			expectCtrl1:   0b00110000,
			expectState:   StateConfigured,
		},
		{
			name:          "standby 4g fast read 100Hz",
			rng:           Range4G,
			fastRead:      true,
			rate:          Rate100Hz,
			expectDataCfg: 0b00000001,
			expectCtrl1:   0b00011010,
			expectState:   StateConfigured,
		},
		{
			name:          "enabled before configure 8g 800Hz",
			enableFirst:   true,
			rng:           Range8G,
			rate:          Rate800Hz,
			expectDataCfg: 0b00000010,
			expectCtrl1:   0b00000001,
			expectState:   StateActive,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := new(MockRegisterBus)
			d := NewMMA8452Q(bus, testAddr)
			ctx := context.Background()
			if tt.enableFirst {
				// no bus traffic expected before the first configuration write
				require.NoError(t, d.Enable(ctx))
			}
			bus.On("WriteByteData", mock.Anything, testAddr, byte(regXYZDataCfg), tt.expectDataCfg).Return(nil).Once()
			bus.On("WriteByteData", mock.Anything, testAddr, byte(regCtrl1), tt.expectCtrl1).Return(nil).Once()

			err := d.Configure(ctx, tt.rng, tt.fastRead, tt.rate)

			require.NoError(t, err)
			assert.Equal(t, tt.rng, d.Range())
			assert.Equal(t, tt.fastRead, d.FastRead())
			assert.Equal(t, tt.rate, d.DataRate())
			assert.Equal(t, tt.expectState, d.State())
			bus.AssertExpectations(t)
		})
	}
}

func TestMMA8452Q_ConfigureFailureKeepsState(t *testing.T) {
	bus := new(MockRegisterBus)
	d := NewMMA8452Q(bus, testAddr)
	ctx := context.Background()
	bus.On("WriteByteData", mock.Anything, testAddr, byte(regXYZDataCfg), mock.Anything).Return(nil)
	bus.On("WriteByteData", mock.Anything, testAddr, byte(regCtrl1), mock.Anything).Return(errors.New("nack")).Once()

	err := d.Configure(ctx, Range8G, true, Rate50Hz)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "nack")
	assert.Equal(t, Range2G, d.Range())
	assert.False(t, d.FastRead())
	assert.Equal(t, Rate800Hz, d.DataRate())
	assert.Equal(t, StateUnknown, d.State())
}

func TestMMA8452Q_ConfigureRejectsInvalidValues(t *testing.T) {
	d := NewMMA8452Q(new(MockRegisterBus), testAddr)
	err := d.Configure(context.Background(), Range(0b11), false, Rate6_25Hz)
	assert.ErrorIs(t, err, ErrInvalidRange)
	err = d.Configure(context.Background(), Range2G, false, DataRate(8))
	assert.Error(t, err)
}

func TestMMA8452Q_Reset(t *testing.T) {
	bus := new(MockRegisterBus)
	d := NewMMA8452Q(bus, testAddr, WithResetPollInterval(0))
	ctx := context.Background()
	bus.On("WriteByteData", mock.Anything, testAddr, byte(regCtrl2), byte(0b01000000)).Return(nil).Once()
	bus.On("ReadByteData", mock.Anything, testAddr, byte(regCtrl2)).Return(byte(0b01000000), nil).Times(3)
	bus.On("ReadByteData", mock.Anything, testAddr, byte(regCtrl2)).Return(byte(0x00), nil).Once()
	// device reports 4g with high-pass output, 6.25Hz fast read, active
	bus.On("ReadByteData", mock.Anything, testAddr, byte(regXYZDataCfg)).Return(byte(0b00010001), nil).Once()
	bus.On("ReadByteData", mock.Anything, testAddr, byte(regCtrl1)).Return(byte(0b00110011), nil).Once()

	err := d.Reset(ctx)

	require.NoError(t, err)
	assert.Equal(t, Range4G, d.Range())
	assert.True(t, d.HighPass())
	assert.True(t, d.FastRead())
	assert.Equal(t, Rate6_25Hz, d.DataRate())
	assert.True(t, d.Active())
	assert.Equal(t, StateActive, d.State())
	bus.AssertExpectations(t)
}

func TestMMA8452Q_ResetTimeout(t *testing.T) {
	bus := new(MockRegisterBus)
	d := NewMMA8452Q(bus, testAddr, WithResetPollInterval(0), WithClock(steppingClock(time.Second)))
	bus.On("WriteByteData", mock.Anything, testAddr, byte(regCtrl2), mock.Anything).Return(nil)
	bus.On("ReadByteData", mock.Anything, testAddr, byte(regCtrl2)).Return(byte(0b01000000), nil)

	err := d.Reset(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrResetTimeout)
	assert.Equal(t, StateUnknown, d.State())
	// one second per clock read, 30 second budget
	calls := 0
	for _, c := range bus.Calls {
		if c.Method == "ReadByteData" {
			calls++
		}
	}
	assert.InDelta(t, 30, calls, 1)
}

func TestMMA8452Q_ResetErrors(t *testing.T) {
	transportErr := errors.New("bus failure")
	tests := []struct {
		name      string
		setupMock func(*MockRegisterBus)
		expectErr error
	}{
		{
			name: "reset write fails",
			setupMock: func(bus *MockRegisterBus) {
				bus.On("WriteByteData", mock.Anything, testAddr, byte(regCtrl2), mock.Anything).Return(transportErr)
			},
			expectErr: transportErr,
		},
		{
			name: "reserved range code",
			setupMock: func(bus *MockRegisterBus) {
				bus.On("WriteByteData", mock.Anything, testAddr, byte(regCtrl2), mock.Anything).Return(nil)
				bus.On("ReadByteData", mock.Anything, testAddr, byte(regCtrl2)).Return(byte(0x00), nil)
				bus.On("ReadByteData", mock.Anything, testAddr, byte(regXYZDataCfg)).Return(byte(0b11), nil)
				bus.On("ReadByteData", mock.Anything, testAddr, byte(regCtrl1)).Return(byte(0x00), nil)
			},
			expectErr: ErrInvalidRange,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := new(MockRegisterBus)
			tt.setupMock(bus)
			d := NewMMA8452Q(bus, testAddr, WithResetPollInterval(0))
			err := d.Reset(context.Background())
			assert.ErrorIs(t, err, tt.expectErr)
			assert.NotErrorIs(t, err, ErrResetTimeout)
			assert.Equal(t, StateUnknown, d.State())
		})
	}
}

func TestMMA8452Q_ResetCancelled(t *testing.T) {
	bus := new(MockRegisterBus)
	d := NewMMA8452Q(bus, testAddr, WithResetPollInterval(10*time.Millisecond))
	bus.On("WriteByteData", mock.Anything, testAddr, byte(regCtrl2), mock.Anything).Return(nil)
	bus.On("ReadByteData", mock.Anything, testAddr, byte(regCtrl2)).Return(byte(0b01000000), nil)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := d.Reset(ctx)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMMA8452Q_EnableHighPass(t *testing.T) {
	bus := new(MockRegisterBus)
	d := NewMMA8452Q(bus, testAddr)
	ctx := context.Background()
	bus.On("WriteByteData", mock.Anything, testAddr, byte(regXYZDataCfg), byte(0b00000001)).Return(nil).Once()
	bus.On("WriteByteData", mock.Anything, testAddr, byte(regCtrl1), mock.Anything).Return(nil).Once()
	require.NoError(t, d.Configure(ctx, Range4G, false, Rate100Hz))

	bus.On("WriteByteData", mock.Anything, testAddr, byte(regXYZDataCfg), byte(0b00010001)).Return(nil).Once()
	bus.On("WriteByteData", mock.Anything, testAddr, byte(regHPFilterCutoff), byte(0b10)).Return(nil).Once()
	require.NoError(t, d.EnableHighPass(ctx, CutoffLow))
	assert.True(t, d.HighPass())

	// reconfiguring keeps the filter output enabled
	bus.On("WriteByteData", mock.Anything, testAddr, byte(regXYZDataCfg), byte(0b00010010)).Return(nil).Once()
	bus.On("WriteByteData", mock.Anything, testAddr, byte(regCtrl1), mock.Anything).Return(nil).Once()
	require.NoError(t, d.Configure(ctx, Range8G, false, Rate100Hz))

	bus.On("WriteByteData", mock.Anything, testAddr, byte(regXYZDataCfg), byte(0b00000010)).Return(nil).Once()
	require.NoError(t, d.DisableHighPass(ctx))
	assert.False(t, d.HighPass())
	bus.AssertExpectations(t)
}

func TestMMA8452Q_EnableHighPassCutoffFailure(t *testing.T) {
	busErr := errors.New("nack")
	bus := new(MockRegisterBus)
	d := NewMMA8452Q(bus, testAddr)
	ctx := context.Background()
	bus.On("WriteByteData", mock.Anything, testAddr, byte(regXYZDataCfg), byte(0b00010000)).Return(nil).Once()
	bus.On("WriteByteData", mock.Anything, testAddr, byte(regHPFilterCutoff), byte(0b11)).Return(busErr).Once()

	err := d.EnableHighPass(ctx, CutoffLowest)

	assert.ErrorIs(t, err, busErr)
	assert.True(t, d.HighPass(), "filter output was already switched on")
	bus.AssertExpectations(t)
}

func TestMMA8452Q_EnableDisable(t *testing.T) {
	bus := new(MockRegisterBus)
	d := NewMMA8452Q(bus, testAddr)
	ctx := context.Background()
	bus.On("WriteByteData", mock.Anything, testAddr, byte(regXYZDataCfg), mock.Anything).Return(nil).Once()
	bus.On("WriteByteData", mock.Anything, testAddr, byte(regCtrl1), byte(0b00110010)).Return(nil).Once()
	require.NoError(t, d.Configure(ctx, Range2G, true, Rate6_25Hz))

	bus.On("WriteByteData", mock.Anything, testAddr, byte(regCtrl1), byte(0b00110011)).Return(nil).Once()
	require.NoError(t, d.Enable(ctx))
	assert.Equal(t, StateActive, d.State())

	bus.On("WriteByteData", mock.Anything, testAddr, byte(regCtrl1), byte(0b00110010)).Return(nil).Once()
	require.NoError(t, d.Disable(ctx))
	assert.Equal(t, StateConfigured, d.State())
	assert.False(t, d.Active())
	bus.AssertExpectations(t)
}

func TestMMA8452Q_IsDataReady(t *testing.T) {
	tests := []struct {
		status byte
		ready  bool
	}{
		{0b00000000, false},
		{0b00000111, false},
		{0b00001000, true},
		{0b11111111, true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%08b", tt.status), func(t *testing.T) {
			bus := new(MockRegisterBus)
			bus.On("ReadByteData", mock.Anything, testAddr, byte(regStatus)).Return(tt.status, nil).Once()
			ready, err := NewMMA8452Q(bus, testAddr).IsDataReady(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.ready, ready)
			bus.AssertExpectations(t)
		})
	}
}

func TestMMA8452Q_IsDataReadyTransportError(t *testing.T) {
	transportErr := errors.New("i2c read failed")
	bus := new(MockRegisterBus)
	bus.On("ReadByteData", mock.Anything, testAddr, byte(regStatus)).Return(byte(0), transportErr)
	_, err := NewMMA8452Q(bus, testAddr).IsDataReady(context.Background())
	assert.ErrorIs(t, err, transportErr)
}

func configured(t *testing.T, bus *MockRegisterBus, rng Range, fastRead bool, rate DataRate) *MMA8452Q {
	t.Helper()
	d := NewMMA8452Q(bus, testAddr)
	bus.On("WriteByteData", mock.Anything, testAddr, mock.Anything, mock.Anything).Return(nil).Twice()
	require.NoError(t, d.Configure(context.Background(), rng, fastRead, rate))
	return d
}

func TestMMA8452Q_ReadAccelerationAndStatus(t *testing.T) {
	bus := new(MockRegisterBus)
	d := configured(t, bus, Range2G, false, Rate6_25Hz)
	xm, xl := encode12(1024)
	ym, yl := encode12(-1)
	zm, zl := encode12(-2048)
	bus.On("ReadBlockData", mock.Anything, testAddr, byte(regStatus), 7).
		Return([]byte{0b00001111, xm, xl, ym, yl, zm, zl}, nil).Once()

	s, err := d.ReadAccelerationAndStatus(context.Background())

	require.NoError(t, err)
	step := Range2G.Step(12)
	assert.False(t, s.Overwritten)
	assert.Equal(t, Axis{Value: 1024 * step, Ready: true}, s.X)
	assert.Equal(t, Axis{Value: -1 * step, Ready: true}, s.Y)
	assert.Equal(t, Axis{Value: -2048 * step, Ready: true}, s.Z)
	bus.AssertExpectations(t)
}

func TestMMA8452Q_ReadOnlyXReady(t *testing.T) {
	bus := new(MockRegisterBus)
	d := configured(t, bus, Range2G, false, Rate6_25Hz)
	bus.On("ReadBlockData", mock.Anything, testAddr, byte(regStatus), 7).
		Return([]byte{0b00001001, 0x12, 0x30, 0x7F, 0xF0, 0x80, 0x00}, nil).Once()

	s, err := d.ReadAccelerationAndStatus(context.Background())

	require.NoError(t, err)
	assert.True(t, s.X.Ready)
	assert.Equal(t, float64(0x123)*Range2G.Step(12), s.X.Value)
	assert.False(t, s.Y.Ready)
	assert.False(t, s.Z.Ready)
	assert.Equal(t, "", s.Y.String())
}

func TestMMA8452Q_FastRead(t *testing.T) {
	bus := new(MockRegisterBus)
	d := configured(t, bus, Range8G, true, Rate800Hz)
	bus.On("ReadBlockData", mock.Anything, testAddr, byte(regStatus), 4).
		Return([]byte{0b10001111, 0x7F, 0x80, 0x00}, nil).Once()

	s, err := d.ReadAccelerationAndStatus(context.Background())

	require.NoError(t, err)
	assert.True(t, s.Overwritten)
	assert.Equal(t, 7.9375, s.X.Value)
	assert.Equal(t, -8.0, s.Y.Value)
	assert.Equal(t, 0.0, s.Z.Value)
	bus.AssertExpectations(t)
}

func TestMMA8452Q_SingleAxis(t *testing.T) {
	t.Run("normal read", func(t *testing.T) {
		bus := new(MockRegisterBus)
		d := configured(t, bus, Range4G, false, Rate50Hz)
		// MSB register in the low byte
		bus.On("ReadWordData", mock.Anything, testAddr, byte(regOutYMSB)).Return(uint16(0xF0FF), nil).Once()
		v, err := d.ReadYAcceleration(context.Background())
		require.NoError(t, err)
		assert.Equal(t, -Range4G.Step(12), v)
	})
	t.Run("fast read", func(t *testing.T) {
		bus := new(MockRegisterBus)
		d := configured(t, bus, Range2G, true, Rate50Hz)
		bus.On("ReadByteData", mock.Anything, testAddr, byte(regOutZMSB)).Return(byte(0x40), nil).Once()
		v, err := d.ReadZAcceleration(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1.0, v)
	})
}

func TestMMA8452Q_VerifyIdentity(t *testing.T) {
	bus := new(MockRegisterBus)
	d := NewMMA8452Q(bus, testAddr)
	bus.On("ReadByteData", mock.Anything, testAddr, byte(regWhoAmI)).Return(byte(0x2A), nil).Once()
	assert.NoError(t, d.VerifyIdentity(context.Background()))

	bus.On("ReadByteData", mock.Anything, testAddr, byte(regWhoAmI)).Return(byte(0x1A), nil).Once()
	assert.ErrorIs(t, d.VerifyIdentity(context.Background()), ErrUnexpectedDevice)
}

func TestAxis_String(t *testing.T) {
	tests := []struct {
		axis     Axis
		expected string
	}{
		{Axis{Value: 1, Ready: true}, "1.0"},
		{Axis{Value: 0, Ready: true}, "0.0"},
		{Axis{Value: -8, Ready: true}, "-8.0"},
		{Axis{Value: 7.9375, Ready: true}, "7.9375"},
		{Axis{Value: 0.0009765625, Ready: true}, "0.0009765625"},
		{Axis{Value: 3}, ""},
	}
	for _, test := range tests {
		assert.Equal(t, test.expected, test.axis.String())
	}
}
