package expression

import "math"

// Config holds animation loop tuning.
type Config struct {
	// IdleRate advances the idle clock, in units per second.
	IdleRate float64 `mapstructure:"idle_rate" yaml:"idle_rate"`

	// BaseYaw is the resting root yaw in radians. Pi faces the camera.
	BaseYaw float64 `mapstructure:"base_yaw" yaml:"base_yaw"`

	// SwayFrequency and SwayAmplitude shape the sinusoidal idle sway.
	SwayFrequency float64 `mapstructure:"sway_frequency" yaml:"sway_frequency"`
	SwayAmplitude float64 `mapstructure:"sway_amplitude" yaml:"sway_amplitude"`

	// SwayNoise adds Perlin jitter of this amplitude on top of the sway.
	// Zero disables it.
	SwayNoise float64 `mapstructure:"sway_noise" yaml:"sway_noise"`
	NoiseSeed int64   `mapstructure:"noise_seed" yaml:"noise_seed"`

	// BlinkThreshold is compared with (sin(t)+1)/2.
	BlinkThreshold float64 `mapstructure:"blink_threshold" yaml:"blink_threshold"`

	// TalkRate advances the viseme phase while talking, in units per second.
	TalkRate float64 `mapstructure:"talk_rate" yaml:"talk_rate"`

	// SignalBuffer bounds the pending talk signal queue.
	SignalBuffer int `mapstructure:"signal_buffer" yaml:"signal_buffer"`
}

// DefaultConfig returns the tuning used at 60 frames per second: idle
// clock 0.03 and talk phase 0.12 per frame.
func DefaultConfig() Config {
	return Config{
		IdleRate:       1.8,
		BaseYaw:        math.Pi,
		SwayFrequency:  0.25,
		SwayAmplitude:  0.04,
		SwayNoise:      0,
		NoiseSeed:      1,
		BlinkThreshold: 0.97,
		TalkRate:       7.2,
		SignalBuffer:   16,
	}
}
