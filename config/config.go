// SPDX-License-Identifier: MIT

// Package config loads the settings of the lvchol command from defaults, an
// optional config file, LVCHOL_* environment variables and command-line
// flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/katalvlaran/lvgpu/device"
	"github.com/katalvlaran/lvgpu/dtype"
	"github.com/katalvlaran/lvgpu/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. LVCHOL_DEVICE_BACKEND.
const EnvPrefix = "LVCHOL"

// Flag names registered by AddFlags.
const (
	FlagConfig    = "config"
	FlagBackend   = "backend"
	FlagDevice    = "device"
	FlagDType     = "dtype"
	FlagFormat    = "format"
	FlagPrecision = "precision"
)

// Output formats.
const (
	FormatTable = "table"
	FormatCSV   = "csv"
	FormatJSON  = "json"
)

// ErrInvalid wraps every validation failure returned by Load.
var ErrInvalid = errors.New("config: invalid configuration")

// Config is the configuration of the lvchol command.
type Config struct {
	Device DeviceConfig `mapstructure:"device"`
	Input  InputConfig  `mapstructure:"input"`
	Output OutputConfig `mapstructure:"output"`
	Log    LogConfig    `mapstructure:"log"`
}

type DeviceConfig struct {
	Backend string `mapstructure:"backend" validate:"oneof=host cuda"`
	Index   int    `mapstructure:"index" validate:"gte=0"`
}

type InputConfig struct {
	// DType converts the matrix before factoring; invalid keeps the file's type.
	DType dtype.DType `mapstructure:"dtype" validate:"realdtype"`
	// Format overrides detection from the file extension.
	Format string `mapstructure:"format" validate:"omitempty,oneof=csv json"`
}

type OutputConfig struct {
	Format    string `mapstructure:"format" validate:"oneof=table csv json"`
	Precision int    `mapstructure:"precision" validate:"gte=0,lte=17"`
}

type LogConfig struct {
	Debug      bool   `mapstructure:"debug"`
	Path       string `mapstructure:"path"`
	MaxSize    int    `mapstructure:"max_size" validate:"gte=0"`
	MaxAge     int    `mapstructure:"max_age" validate:"gte=0"`
	MaxBackups int    `mapstructure:"max_backups" validate:"gte=0"`
}

// Sink converts the log section into a file sink for log.SetLogger.
func (c LogConfig) Sink() log.FileSink {
	return log.FileSink{Path: c.Path, MaxSize: c.MaxSize, MaxAge: c.MaxAge, MaxBackups: c.MaxBackups}
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{Backend: device.HostBackendName},
		Output: OutputConfig{Format: FormatTable, Precision: 6},
		Log:    LogConfig{MaxSize: 100},
	}
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("device.backend", cfg.Device.Backend)
	v.SetDefault("device.index", cfg.Device.Index)
	v.SetDefault("input.dtype", "")
	v.SetDefault("input.format", cfg.Input.Format)
	v.SetDefault("output.format", cfg.Output.Format)
	v.SetDefault("output.precision", cfg.Output.Precision)
	v.SetDefault("log.debug", cfg.Log.Debug)
	v.SetDefault("log.path", cfg.Log.Path)
	v.SetDefault("log.max_size", cfg.Log.MaxSize)
	v.SetDefault("log.max_age", cfg.Log.MaxAge)
	v.SetDefault("log.max_backups", cfg.Log.MaxBackups)
}

// flagKeys maps flag names to configuration keys.
var flagKeys = map[string]string{
	FlagBackend:        "device.backend",
	FlagDevice:         "device.index",
	FlagDType:          "input.dtype",
	FlagFormat:         "output.format",
	FlagPrecision:      "output.precision",
	log.FlagDebug:      "log.debug",
	log.FlagPath:       "log.path",
	log.FlagMaxSize:    "log.max_size",
	log.FlagMaxAge:     "log.max_age",
	log.FlagMaxBackups: "log.max_backups",
}

// AddFlags registers the configuration flags, including the logging flags.
func AddFlags(flagSet *pflag.FlagSet) {
	def := DefaultConfig()
	flagSet.StringP(FlagConfig, "c", "", "path of config file (toml, yaml or json)")
	flagSet.String(FlagBackend, def.Device.Backend, "device backend (host or cuda)")
	flagSet.Int(FlagDevice, def.Device.Index, "device index")
	flagSet.String(FlagDType, "", "convert the input to this dtype before factoring")
	flagSet.String(FlagFormat, def.Output.Format, "output format (table, csv or json)")
	flagSet.Int(FlagPrecision, def.Output.Precision, "digits after the decimal point")
	log.AddFlags(flagSet)
}

// Load builds the configuration. path may be empty; flagSet may be nil. Only
// flags changed on the command line override file and environment values.
func Load(path string, flagSet *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	cfg := DefaultConfig()
	setDefaults(v, cfg)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flagSet != nil {
		for name, key := range flagKeys {
			if f := flagSet.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("config: bind flag %q: %w", name, err)
				}
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	hook := viper.DecodeHook(mapstructure.TextUnmarshallerHookFunc())
	if err := v.Unmarshal(cfg, hook); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// invalid means "keep the input type"; complex types cannot be factored
	_ = v.RegisterValidation("realdtype", func(fl validator.FieldLevel) bool {
		d := dtype.DType(fl.Field().Uint())
		return d == dtype.Invalid || (d.Valid() && !d.IsComplex())
	})
	return v
}

// Validate checks cfg against its struct constraints.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s must satisfy %q, got %v", ErrInvalid, fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}
