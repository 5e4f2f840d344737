package i2c

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/i2c/i2ctest"
	"periph.io/x/conn/v3/physic"
)

func TestGenericBus_Registers(t *testing.T) {
	pb := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: 0x1D, W: []byte{0x0D}, R: []byte{0x2A}},
			{Addr: 0x1D, W: []byte{0x2B, 0x40}},
			{Addr: 0x1D, W: []byte{0x00}, R: []byte{0x0F, 0x40, 0x00, 0xC0, 0x00, 0x00, 0x10}},
		},
		DontPanic: true,
	}
	bus := newGenericBus(pb)
	regs := NewRegisters(bus)
	ctx := context.Background()

	id, err := regs.ReadByteData(ctx, 0x1D, 0x0D)
	require.NoError(t, err)
	assert.Equal(t, byte(0x2A), id)
	require.NoError(t, regs.WriteByteData(ctx, 0x1D, 0x2B, 0x40))
	buf := make([]byte, 7)
	require.NoError(t, regs.ReadBlockData(ctx, 0x1D, 0x00, buf))
	assert.Equal(t, []byte{0x0F, 0x40, 0x00, 0xC0, 0x00, 0x00, 0x10}, buf)

	require.NoError(t, bus.Close())
}

func TestGenericBus_WriteThenRead(t *testing.T) {
	pb := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: 0x1C, W: []byte{0x0E}},
			{Addr: 0x1C, R: []byte{0x02}},
		},
		DontPanic: true,
	}
	bus := newGenericBus(pb)
	ctx := context.Background()

	require.NoError(t, bus.Tx(ctx, 0x1C, []byte{0x0E}, nil))
	buf := make([]byte, 1)
	require.NoError(t, bus.Tx(ctx, 0x1C, nil, buf))
	assert.Equal(t, byte(0x02), buf[0])
	require.NoError(t, bus.Close())
}

// speedRecorder is a bus that only records clock changes.
type speedRecorder struct {
	i2ctest.Playback
	speeds []physic.Frequency
	err    error
}

func (s *speedRecorder) SetSpeed(f physic.Frequency) error {
	s.speeds = append(s.speeds, f)
	return s.err
}

func TestGenericBus_SetSpeed(t *testing.T) {
	rec := &speedRecorder{}
	bus := newGenericBus(rec)
	require.NoError(t, bus.SetSpeed(400*physic.KiloHertz))
	assert.Equal(t, []physic.Frequency{400 * physic.KiloHertz}, rec.speeds)

	unsupported := errors.New("not supported by this host driver")
	bus = newGenericBus(&speedRecorder{err: unsupported})
	assert.ErrorIs(t, bus.SetSpeed(100*physic.KiloHertz), unsupported)
}

func TestGenericBus_UnexpectedTransaction(t *testing.T) {
	pb := &i2ctest.Playback{
		Ops:       []i2ctest.IO{{Addr: 0x1D, W: []byte{0x0D}, R: []byte{0x2A}}},
		DontPanic: true,
	}
	bus := newGenericBus(pb)

	err := bus.Tx(context.Background(), 0x1C, []byte{0x0D}, make([]byte, 1))

	assert.Error(t, err)
}
