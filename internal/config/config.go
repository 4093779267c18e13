// Package config loads the daemon settings. Thresholds live in their own
// hot-reloadable document; everything here is read once at startup.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/zeusync/hitsense/internal/core/restoring"
	phys "github.com/zeusync/hitsense/internal/core/systems/physics"
)

// DefaultName is the settings file looked up in the working directory when
// no path is given.
const DefaultName = "hitsense"

var ErrInvalidSettings = errors.New("invalid settings")

type Settings struct {
	LogLevel   string           `mapstructure:"logLevel"`
	TickRate   time.Duration    `mapstructure:"tickRate"`
	Thresholds ThresholdsConfig `mapstructure:"thresholds"`
	Bridge     BridgeConfig     `mapstructure:"bridge"`
	Spring     SpringConfig     `mapstructure:"spring"`
	Feet       []string         `mapstructure:"feet"`
	Sticks     []StickConfig    `mapstructure:"sticks"`
	Zones      []ZoneConfig     `mapstructure:"zones"`
}

type ThresholdsConfig struct {
	Path     string `mapstructure:"path"`
	Watch    bool   `mapstructure:"watch"`
	Keyboard bool   `mapstructure:"keyboard"`
}

type BridgeConfig struct {
	HTTPAddr      string `mapstructure:"httpAddr"`
	QUICEnabled   bool   `mapstructure:"quicEnabled"`
	QUICAddr      string `mapstructure:"quicAddr"`
	CertFile      string `mapstructure:"certFile"`
	KeyFile       string `mapstructure:"keyFile"`
	SendBuffer    int    `mapstructure:"sendBuffer"`
	MaxCollisions int    `mapstructure:"maxCollisions"`
}

type SpringConfig struct {
	Offset   []float32 `mapstructure:"offset"`
	Strength float32   `mapstructure:"strength"`
}

// Spring converts the settings into the restoring spring.
func (c SpringConfig) Spring() restoring.Spring {
	return restoring.Spring{
		Offset:   phys.V3(c.Offset[0], c.Offset[1], c.Offset[2]),
		Strength: c.Strength,
	}
}

// StickConfig is a contact body held by the player.
type StickConfig struct {
	Name   string `mapstructure:"name"`
	Parent string `mapstructure:"parent"`
}

// ZoneConfig maps a collider to its zone category.
type ZoneConfig struct {
	Collider string `mapstructure:"collider"`
	Zone     string `mapstructure:"zone"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logLevel", "info")
	v.SetDefault("tickRate", "11ms")

	v.SetDefault("thresholds.path", "./settings.json")
	v.SetDefault("thresholds.watch", true)
	v.SetDefault("thresholds.keyboard", true)

	v.SetDefault("bridge.httpAddr", "127.0.0.1:7480")
	v.SetDefault("bridge.quicEnabled", false)
	v.SetDefault("bridge.quicAddr", "127.0.0.1:7481")
	v.SetDefault("bridge.certFile", "")
	v.SetDefault("bridge.keyFile", "")
	v.SetDefault("bridge.sendBuffer", 64)
	v.SetDefault("bridge.maxCollisions", 4096)

	v.SetDefault("spring.offset", []float32{0, 0, 0.3})
	v.SetDefault("spring.strength", 1.0)

	v.SetDefault("feet", []string{"left_foot", "right_foot"})
	v.SetDefault("sticks", []map[string]any{
		{"name": "stick_l", "parent": "pivot_l"},
		{"name": "stick_r", "parent": "pivot_r"},
	})
	v.SetDefault("zones", []map[string]any{
		{"collider": "don_left", "zone": "don"},
		{"collider": "don_right", "zone": "don"},
		{"collider": "ka_left", "zone": "ka"},
		{"collider": "ka_right", "zone": "ka"},
	})
}

// Load reads settings from path, or from hitsense.{json,yaml,toml} in the
// working directory when path is empty. A missing default file is not an
// error. HITSENSE_* environment variables override file values.
func Load(path string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("HITSENSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	} else {
		v.SetConfigName(DefaultName)
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks the settings that would otherwise fail later at wiring.
func (s *Settings) Validate() error {
	if s.TickRate <= 0 {
		return fmt.Errorf("%w: tickRate must be positive, got %s", ErrInvalidSettings, s.TickRate)
	}
	if len(s.Spring.Offset) != 3 {
		return fmt.Errorf("%w: spring.offset needs 3 components, got %d", ErrInvalidSettings, len(s.Spring.Offset))
	}
	for i, st := range s.Sticks {
		if st.Name == "" || st.Parent == "" {
			return fmt.Errorf("%w: sticks[%d] needs name and parent", ErrInvalidSettings, i)
		}
	}
	for i, z := range s.Zones {
		if z.Collider == "" || z.Zone == "" {
			return fmt.Errorf("%w: zones[%d] needs collider and zone", ErrInvalidSettings, i)
		}
	}
	if s.Bridge.QUICEnabled && (s.Bridge.CertFile == "") != (s.Bridge.KeyFile == "") {
		return fmt.Errorf("%w: bridge.certFile and bridge.keyFile go together", ErrInvalidSettings)
	}
	return nil
}
