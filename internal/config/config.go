// Package config loads go-avatar settings from a YAML file, AVATAR_*
// environment variables and built-in defaults, in that order of priority.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/teslashibe/go-avatar/internal/log"
	"github.com/teslashibe/go-avatar/pkg/avatar"
	"github.com/teslashibe/go-avatar/pkg/calibration"
	"github.com/teslashibe/go-avatar/pkg/expression"
	"github.com/teslashibe/go-avatar/pkg/rig"
	"github.com/teslashibe/go-avatar/pkg/web"
)

// EnvPrefix is prepended to environment overrides, e.g. AVATAR_RENDER_FPS.
const EnvPrefix = "AVATAR"

// ErrInvalidConfig is returned when a loaded configuration fails validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the full application configuration.
type Config struct {
	Logger      log.Config              `mapstructure:"logger" yaml:"logger"`
	Render      RenderConfig            `mapstructure:"render" yaml:"render"`
	Calibration calibration.SearchSpace `mapstructure:"calibration" yaml:"calibration"`
	Expression  expression.Config       `mapstructure:"expression" yaml:"expression"`
	Web         web.Config              `mapstructure:"web" yaml:"web"`
}

// RenderConfig selects the rig and drives the render loop.
type RenderConfig struct {
	FPS float64 `mapstructure:"fps" yaml:"fps"`

	// Rig names an embedded template. RigFile, when set, wins.
	Rig     string `mapstructure:"rig" yaml:"rig"`
	RigFile string `mapstructure:"rig_file" yaml:"rig_file"`
}

// SetDefaults registers every default with v.
func SetDefaults(v *viper.Viper) {
	lc := log.DefaultConfig()
	v.SetDefault("logger.level", lc.Level)
	v.SetDefault("logger.format", lc.Format)
	v.SetDefault("logger.file", lc.File)
	v.SetDefault("logger.max_size", lc.MaxSize)
	v.SetDefault("logger.max_backups", lc.MaxBackups)
	v.SetDefault("logger.max_age", lc.MaxAge)
	v.SetDefault("logger.compress", lc.Compress)

	v.SetDefault("render.fps", avatar.DefaultOptions().FPS)
	v.SetDefault("render.rig", "tpose")
	v.SetDefault("render.rig_file", "")

	ss := calibration.DefaultSearchSpace()
	v.SetDefault("calibration.shoulder_roll", ss.ShoulderRoll)
	v.SetDefault("calibration.upper_arm_roll", ss.UpperArmRoll)
	v.SetDefault("calibration.upper_arm_pitch", ss.UpperArmPitch)
	v.SetDefault("calibration.elbow_bend", ss.ElbowBend)

	ec := expression.DefaultConfig()
	v.SetDefault("expression.idle_rate", ec.IdleRate)
	v.SetDefault("expression.base_yaw", ec.BaseYaw)
	v.SetDefault("expression.sway_frequency", ec.SwayFrequency)
	v.SetDefault("expression.sway_amplitude", ec.SwayAmplitude)
	v.SetDefault("expression.sway_noise", ec.SwayNoise)
	v.SetDefault("expression.noise_seed", ec.NoiseSeed)
	v.SetDefault("expression.blink_threshold", ec.BlinkThreshold)
	v.SetDefault("expression.talk_rate", ec.TalkRate)
	v.SetDefault("expression.signal_buffer", ec.SignalBuffer)

	wc := web.DefaultConfig()
	v.SetDefault("web.enabled", wc.Enabled)
	v.SetDefault("web.port", wc.Port)
	v.SetDefault("web.static_dir", wc.StaticDir)
	v.SetDefault("web.frame_divisor", wc.FrameDivisor)
}

// New returns a viper instance with defaults and environment overrides
// configured. path is optional; without it ./avatar.yaml is used if present.
func New(path string) *viper.Viper {
	v := viper.New()
	SetDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("avatar")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the configuration. A missing default config file is not an
// error; a missing explicit path is.
func Load(path string) (*Config, error) {
	v := New(path)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return FromViper(v)
}

// FromViper decodes and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration with nothing overridden.
func Default() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("unmarshal default config: %v", err))
	}
	return &cfg
}

// Validate checks for values the avatar cannot run with.
func (c *Config) Validate() error {
	if c.Render.FPS <= 0 {
		return fmt.Errorf("%w: render.fps must be positive, got %v", ErrInvalidConfig, c.Render.FPS)
	}
	if c.Render.Rig == "" && c.Render.RigFile == "" {
		return fmt.Errorf("%w: one of render.rig or render.rig_file is required", ErrInvalidConfig)
	}
	if err := c.Calibration.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Expression.SignalBuffer < 1 {
		return fmt.Errorf("%w: expression.signal_buffer must be at least 1", ErrInvalidConfig)
	}
	if c.Web.Enabled && c.Web.Port == "" {
		return fmt.Errorf("%w: web.port is required when web is enabled", ErrInvalidConfig)
	}
	return nil
}

// AvatarOptions converts the configuration into avatar load options.
func (c *Config) AvatarOptions() avatar.Options {
	return avatar.Options{
		Search:     c.Calibration,
		Expression: c.Expression,
		FPS:        c.Render.FPS,
	}
}

// LoadRig loads the configured rig definition.
func (c *Config) LoadRig() (*rig.Definition, error) {
	if c.Render.RigFile != "" {
		return rig.LoadFile(c.Render.RigFile)
	}
	return rig.LoadEmbedded(c.Render.Rig)
}
