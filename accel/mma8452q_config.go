package accel

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// Range is the MMA8452Q full-scale range. The value is the FS code written to
// XYZ_DATA_CFG[1:0].
type Range byte

const (
	Range2G Range = 0b00
	Range4G Range = 0b01
	Range8G Range = 0b10
)

var ErrInvalidRange = fmt.Errorf("invalid full-scale range")

// FullScale returns the range magnitude in g.
func (r Range) FullScale() float64 {
	switch r {
	case Range2G:
		return 2
	case Range4G:
		return 4
	case Range8G:
		return 8
	default:
		return 0
	}
}

// Step returns the acceleration (in g) represented by one LSB of a sample that
// is bits wide.
func (r Range) Step(bits int) float64 {
	return r.FullScale() * 2 / float64(uint(1)<<bits)
}

func (r Range) valid() bool {
	return r <= Range8G
}

func (r Range) String() string {
	if !r.valid() {
		return fmt.Sprintf("Range(%#b)", byte(r))
	}
	return strconv.Itoa(int(r.FullScale())) + "g"
}

// ParseRange maps a full-scale value in g (2, 4 or 8) to a Range.
func ParseRange(g int) (Range, error) {
	switch g {
	case 2:
		return Range2G, nil
	case 4:
		return Range4G, nil
	case 8:
		return Range8G, nil
	}
	return 0, fmt.Errorf("%w: %dg", ErrInvalidRange, g)
}

// DataRate is the output data rate. The value is the DR code written to
// CTRL_REG1[5:3].
type DataRate byte

const (
	Rate800Hz DataRate = iota
	Rate400Hz
	Rate200Hz
	Rate100Hz
	Rate50Hz
	Rate12_5Hz
	Rate6_25Hz
	Rate1_56Hz
)

var rateHz = [...]float64{800, 400, 200, 100, 50, 12.5, 6.25, 1.56}

// Hz returns the output data rate in Hertz.
func (r DataRate) Hz() float64 {
	if int(r) >= len(rateHz) {
		return 0
	}
	return rateHz[r]
}

// Period returns the time between two consecutive samples.
func (r DataRate) Period() time.Duration {
	hz := r.Hz()
	if hz == 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / hz)
}

func (r DataRate) String() string {
	if int(r) >= len(rateHz) {
		return fmt.Sprintf("DataRate(%d)", byte(r))
	}
	return strconv.FormatFloat(r.Hz(), 'f', -1, 64) + "Hz"
}

// ParseDataRate maps a rate in Hertz to one of the eight supported rates.
func ParseDataRate(hz float64) (DataRate, error) {
	for i, v := range rateHz {
		if math.Abs(v-hz) < 0.005 {
			return DataRate(i), nil
		}
	}
	return 0, fmt.Errorf("unsupported data rate: %gHz", hz)
}

// HighPassCutoff selects the high-pass filter cutoff (HP_FILTER_CUTOFF[1:0]).
// The resulting frequency depends on the data rate; a higher code means a
// lower cutoff.
type HighPassCutoff byte

const (
	CutoffHighest HighPassCutoff = iota
	CutoffHigh
	CutoffLow
	CutoffLowest
)

// cutoff frequencies in Hz for normal oversampling mode, indexed by data rate
// and cutoff code
var cutoffHz = [...][4]float64{
	Rate800Hz:  {16, 8, 4, 2},
	Rate400Hz:  {16, 8, 4, 2},
	Rate200Hz:  {8, 4, 2, 1},
	Rate100Hz:  {4, 2, 1, 0.5},
	Rate50Hz:   {2, 1, 0.5, 0.25},
	Rate12_5Hz: {2, 1, 0.5, 0.25},
	Rate6_25Hz: {2, 1, 0.5, 0.25},
	Rate1_56Hz: {2, 1, 0.5, 0.25},
}

// Frequency returns the cutoff frequency in Hertz at the given data rate.
func (c HighPassCutoff) Frequency(rate DataRate) float64 {
	if int(rate) >= len(cutoffHz) || c > CutoffLowest {
		return 0
	}
	return cutoffHz[rate][c]
}

func (c HighPassCutoff) String() string {
	switch c {
	case CutoffHighest:
		return "highest"
	case CutoffHigh:
		return "high"
	case CutoffLow:
		return "low"
	case CutoffLowest:
		return "lowest"
	default:
		return fmt.Sprintf("HighPassCutoff(%d)", byte(c))
	}
}

// CutoffForFrequency returns the cutoff whose frequency at rate is closest to hz.
// Ties resolve to the higher cutoff frequency.
func CutoffForFrequency(hz float64, rate DataRate) HighPassCutoff {
	best := CutoffHighest
	bestDiff := math.Inf(1)
	for c := CutoffHighest; c <= CutoffLowest; c++ {
		diff := math.Abs(c.Frequency(rate) - hz)
		if diff < bestDiff {
			best, bestDiff = c, diff
		}
	}
	return best
}

// SystemMode is the current operating mode reported by SYSMOD.
type SystemMode byte

const (
	ModeStandby SystemMode = 0b00
	ModeWake    SystemMode = 0b01
	ModeSleep   SystemMode = 0b10
)

func (m SystemMode) String() string {
	switch m {
	case ModeStandby:
		return "STANDBY"
	case ModeWake:
		return "WAKE"
	case ModeSleep:
		return "SLEEP"
	default:
		return "UNKNOWN"
	}
}
