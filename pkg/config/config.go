// Package config holds the accelerometer logger configuration and the build
// information injected at link time.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
	"periph.io/x/conn/v3/physic"

	"github.com/mklimuk/accellog/accel"
)

// set with -ldflags by the build tool
var (
	Version = "latest"
	Commit  = ""
	Date    = ""
)

type Bus struct {
	// Adapter is one of generic, nanopi, raspi, mcp2221 or mock.
	Adapter string `yaml:"adapter"`
	Device  string `yaml:"device"`
	Address int    `yaml:"address"`
	// BusNumber is used by the gobot adapters; negative selects the board default.
	BusNumber int `yaml:"bus_number"`
	// SpeedKHz sets the clock of the generic adapter; 0 keeps the driver default.
	SpeedKHz int `yaml:"speed_khz"`
}

// Speed returns the configured bus clock, 0 when unset.
func (b Bus) Speed() physic.Frequency {
	return physic.Frequency(b.SpeedKHz) * physic.KiloHertz
}

type Accelerometer struct {
	Range          int           `yaml:"range"`
	DataRate       float64       `yaml:"data_rate"`
	FastRead       bool          `yaml:"fast_read"`
	HighPassHz     float64       `yaml:"high_pass_hz"`
	VerifyIdentity bool          `yaml:"verify_identity"`
	ResetTimeout   time.Duration `yaml:"reset_timeout"`
}

type Log struct {
	File     string        `yaml:"file"`
	Duration time.Duration `yaml:"duration"`
	Buffer   int           `yaml:"buffer"`
}

type Config struct {
	Bus           Bus           `yaml:"bus"`
	Accelerometer Accelerometer `yaml:"accelerometer"`
	Log           Log           `yaml:"log"`
}

func Default() Config {
	return Config{
		Bus: Bus{
			Adapter:   "generic",
			Device:    "/dev/i2c-1",
			Address:   accel.MMA8452QAddrHigh,
			BusNumber: -1,
		},
		Accelerometer: Accelerometer{
			Range:          2,
			DataRate:       6.25,
			VerifyIdentity: true,
			ResetTimeout:   30 * time.Second,
		},
		Log: Log{
			Duration: time.Minute,
			Buffer:   1024,
		},
	}
}

// Load reads a YAML configuration file. Values missing from the file keep their defaults.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("could not open config file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Decode(f)
}

func Decode(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	err := dec.Decode(&cfg)
	if err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("could not decode config: %w", err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch c.Bus.Adapter {
	case "generic", "nanopi", "raspi", "mcp2221", "mock":
	default:
		return fmt.Errorf("unknown bus adapter: %q", c.Bus.Adapter)
	}
	if c.Bus.Address < 0x03 || c.Bus.Address > 0x77 {
		return fmt.Errorf("invalid i2c address: %#x", c.Bus.Address)
	}
	if c.Bus.SpeedKHz < 0 {
		return fmt.Errorf("invalid bus speed: %dkHz", c.Bus.SpeedKHz)
	}
	_, _, err := c.Accelerometer.Settings()
	if err != nil {
		return err
	}
	if c.Accelerometer.HighPassHz < 0 {
		return fmt.Errorf("invalid high-pass cutoff: %gHz", c.Accelerometer.HighPassHz)
	}
	if c.Log.Buffer < 1 {
		return fmt.Errorf("invalid sample buffer size: %d", c.Log.Buffer)
	}
	return nil
}

// Settings converts the configured range and data rate to device values.
func (a Accelerometer) Settings() (accel.Range, accel.DataRate, error) {
	rng, err := accel.ParseRange(a.Range)
	if err != nil {
		return 0, 0, err
	}
	rate, err := accel.ParseDataRate(a.DataRate)
	if err != nil {
		return 0, 0, err
	}
	return rng, rate, nil
}

// Marshal renders the configuration as YAML.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
