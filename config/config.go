package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// ControllerType identifies the kind of controller
type ControllerType string

const (
	ControllerLaunchpadX    ControllerType = "launchpad-x"
	ControllerLaunchpadMini ControllerType = "launchpad-mini"
	ControllerKeyboard      ControllerType = "keyboard"
)

// ControllerConfig defines a saved controller configuration
type ControllerConfig struct {
	PortName     string         `mapstructure:"port_name"`
	Type         ControllerType `mapstructure:"type"`
	AutoConnect  bool           `mapstructure:"auto_connect"`
	InputChannel int            `mapstructure:"input_channel"` // for keyboards
}

// TransportConfig configures the clock and the metronome
type TransportConfig struct {
	PPQ   int     `mapstructure:"ppq"`
	Tempo float64 `mapstructure:"tempo"`
	Loop  bool    `mapstructure:"loop"`

	// Metronome is "internal" (audio click), "off", or a MIDI output port name
	Metronome         string `mapstructure:"metronome"`
	MetronomeChannel  int    `mapstructure:"metronome_channel"` // 1-16
	MetronomeNote     int    `mapstructure:"metronome_note"`
	MetronomeVelocity int    `mapstructure:"metronome_velocity"`

	// ClockOut mirrors MIDI clock to an external port (empty = off)
	ClockOut string `mapstructure:"clock_out"`
}

// OutputConfig is the default synth output
type OutputConfig struct {
	Port string `mapstructure:"port"`
}

// UIConfig stores UI preferences
type UIConfig struct {
	Palette    string `mapstructure:"palette"`
	Background string `mapstructure:"background"`
	Panel      string `mapstructure:"panel"`
}

// LogConfig controls the debug log
type LogConfig struct {
	Debug bool   `mapstructure:"debug"`
	Level string `mapstructure:"level"`
	Path  string `mapstructure:"path"`
}

// Config is the main configuration structure
type Config struct {
	Transport   TransportConfig    `mapstructure:"transport"`
	Output      OutputConfig       `mapstructure:"output"`
	Controllers []ControllerConfig `mapstructure:"controllers"`
	UI          UIConfig           `mapstructure:"ui"`
	Log         LogConfig          `mapstructure:"log"`
	ProjectsDir string             `mapstructure:"projects_dir"`
}

// EnvPrefix is the prefix for environment overrides, e.g. GOBEATS_TRANSPORT_TEMPO
const EnvPrefix = "GOBEATS"

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-beats"), nil
}

// ConfigPath returns the full path to config.toml
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

func setDefaults(v *viper.Viper) {
	dir, _ := ConfigDir()

	v.SetDefault("transport.ppq", 24)
	v.SetDefault("transport.tempo", 120.0)
	v.SetDefault("transport.loop", true)
	v.SetDefault("transport.metronome", "internal")
	v.SetDefault("transport.metronome_channel", 10)
	v.SetDefault("transport.metronome_note", 76)
	v.SetDefault("transport.metronome_velocity", 100)
	v.SetDefault("transport.clock_out", "")
	v.SetDefault("output.port", "")
	v.SetDefault("controllers", []map[string]any{
		{
			"port_name":    "Launchpad X LPX MIDI",
			"type":         string(ControllerLaunchpadX),
			"auto_connect": true,
		},
	})
	v.SetDefault("ui.palette", "plasma")
	v.SetDefault("ui.background", "")
	v.SetDefault("ui.panel", "steps")
	v.SetDefault("log.debug", false)
	v.SetDefault("log.level", "debug")
	v.SetDefault("log.path", "")
	v.SetDefault("projects_dir", filepath.Join(dir, "projects"))
}

// Default returns a config with sensible defaults
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// defaults always decode
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Load reads the config from path (ConfigPath if empty) and the environment.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("toml")
	if path == "" {
		path = os.Getenv(EnvPrefix + "_CONFIG")
	}
	if path == "" {
		path, _ = ConfigPath()
	}
	if path != "" {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if err := v.ReadInConfig(); err != nil {
			// only a file that exists but cannot be parsed is an error
			if _, statErr := os.Stat(path); statErr == nil {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.clamp()
	return &cfg, nil
}

func (c *Config) clamp() {
	if c.Transport.PPQ <= 0 {
		c.Transport.PPQ = 24
	}
	if c.Transport.MetronomeChannel < 1 || c.Transport.MetronomeChannel > 16 {
		c.Transport.MetronomeChannel = 10
	}
	if c.Transport.MetronomeNote < 0 || c.Transport.MetronomeNote > 127 {
		c.Transport.MetronomeNote = 76
	}
	if c.Transport.MetronomeVelocity < 1 || c.Transport.MetronomeVelocity > 127 {
		c.Transport.MetronomeVelocity = 100
	}
}

// Save writes the config to path (ConfigPath if empty)
func (c *Config) Save(path string) error {
	if path == "" {
		var err error
		path, err = ConfigPath()
		if err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigType("toml")
	v.Set("transport.ppq", c.Transport.PPQ)
	v.Set("transport.tempo", c.Transport.Tempo)
	v.Set("transport.loop", c.Transport.Loop)
	v.Set("transport.metronome", c.Transport.Metronome)
	v.Set("transport.metronome_channel", c.Transport.MetronomeChannel)
	v.Set("transport.metronome_note", c.Transport.MetronomeNote)
	v.Set("transport.metronome_velocity", c.Transport.MetronomeVelocity)
	v.Set("transport.clock_out", c.Transport.ClockOut)
	v.Set("output.port", c.Output.Port)
	controllers := make([]map[string]any, 0, len(c.Controllers))
	for _, ctrl := range c.Controllers {
		controllers = append(controllers, map[string]any{
			"port_name":     ctrl.PortName,
			"type":          string(ctrl.Type),
			"auto_connect":  ctrl.AutoConnect,
			"input_channel": ctrl.InputChannel,
		})
	}
	v.Set("controllers", controllers)
	v.Set("ui.palette", c.UI.Palette)
	v.Set("ui.background", c.UI.Background)
	v.Set("ui.panel", c.UI.Panel)
	v.Set("log.debug", c.Log.Debug)
	v.Set("log.level", c.Log.Level)
	v.Set("log.path", c.Log.Path)
	v.Set("projects_dir", c.ProjectsDir)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// FindController finds a controller config by port name
func (c *Config) FindController(portName string) *ControllerConfig {
	for i := range c.Controllers {
		if c.Controllers[i].PortName == portName {
			return &c.Controllers[i]
		}
	}
	return nil
}

// AddController adds or updates a controller config
func (c *Config) AddController(ctrl ControllerConfig) {
	for i := range c.Controllers {
		if c.Controllers[i].PortName == ctrl.PortName {
			c.Controllers[i] = ctrl
			return
		}
	}
	c.Controllers = append(c.Controllers, ctrl)
}

// AutoConnectControllers returns controllers with autoConnect enabled
func (c *Config) AutoConnectControllers() []ControllerConfig {
	var result []ControllerConfig
	for _, ctrl := range c.Controllers {
		if ctrl.AutoConnect {
			result = append(result, ctrl)
		}
	}
	return result
}
