package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Input    InputConfig    `mapstructure:"input"`
	Output   OutputConfig   `mapstructure:"output"`
	Phase    PhaseConfig    `mapstructure:"phase"`
	Process  ProcessConfig  `mapstructure:"process"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// InputConfig selects and describes the input files
type InputConfig struct {
	Path           string   `mapstructure:"path" validate:"required"`
	Pattern        string   `mapstructure:"pattern"`
	ExcludePattern string   `mapstructure:"exclude_pattern"`
	Extensions     []string `mapstructure:"extensions" validate:"min=1,dive,required"`
	System         string   `mapstructure:"system" validate:"required"`
	TimeFmtIn      string   `mapstructure:"time_fmt_in"`
	ColSpec        string   `mapstructure:"col_spec"`
	RepairHeader   bool     `mapstructure:"repair_header"`
}

// OutputConfig controls where and how results are written
type OutputConfig struct {
	Dir         string `mapstructure:"dir" validate:"required"`
	Suffix      string `mapstructure:"suffix"`
	Format      string `mapstructure:"format" validate:"oneof=csv xlsx"`
	Orientation string `mapstructure:"orientation" validate:"oneof=parameter-wide subject-wide"`
	Precision   int    `mapstructure:"precision" validate:"min=-1,max=15"`
}

// PhaseConfig holds the dark period used when the data has no light column
type PhaseConfig struct {
	DarkStart string `mapstructure:"dark_start" validate:"required"`
	DarkEnd   string `mapstructure:"dark_end" validate:"required"`
}

// ProcessConfig holds the transformation settings
type ProcessConfig struct {
	ForceRegularize bool   `mapstructure:"force_regularize"`
	Frequency       int64  `mapstructure:"frequency" validate:"min=0"`
	MatchStart      string `mapstructure:"match_start" validate:"required"`
	TrimFromEnd     bool   `mapstructure:"trim_from_end"`
}

// StorageConfig holds the run ledger configuration
type StorageConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DBPath  string `mapstructure:"db_path" validate:"required_if=Enabled true"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries" validate:"min=0"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json text"`
	File   string `mapstructure:"file"`
}

// flagKeys maps command line flags onto configuration keys.
var flagKeys = map[string]string{
	"input":           "input.path",
	"pattern":         "input.pattern",
	"exclude":         "input.exclude_pattern",
	"system":          "input.system",
	"time_fmt_in":     "input.time_fmt_in",
	"col_spec":        "input.col_spec",
	"output":          "output.dir",
	"out_file_suffix": "output.suffix",
	"format":          "output.format",
	"orientation":     "output.orientation",
	"dark_start":      "phase.dark_start",
	"dark_end":        "phase.dark_end",
	"frequency":       "process.frequency",
	"regularize":      "process.force_regularize",
	"match_start":     "process.match_start",
	"log":             "logging.file",
	"log_level":       "logging.level",
}

// Load reads configuration from file, environment variables and flags.
// An empty path skips the config file; flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Enable environment variable override
	v.SetEnvPrefix("CAGECONVERT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	// Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}
	return nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}

	// Input defaults
	v.SetDefault("input.path", cwd)
	v.SetDefault("input.extensions", []string{"csv", "txt", "tsv", "asc"})
	v.SetDefault("input.system", "clams-oxymax")
	v.SetDefault("input.repair_header", true)

	// Output defaults
	v.SetDefault("output.dir", cwd)
	v.SetDefault("output.format", "csv")
	v.SetDefault("output.orientation", "parameter-wide")
	v.SetDefault("output.precision", 6)

	// Phase defaults
	v.SetDefault("phase.dark_start", "18:00:00")
	v.SetDefault("phase.dark_end", "06:00:00")

	// Process defaults
	v.SetDefault("process.force_regularize", true)
	v.SetDefault("process.frequency", 0)
	v.SetDefault("process.match_start", "1970-01-01")
	v.SetDefault("process.trim_from_end", true)

	// Storage defaults
	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.db_path", "./data/cageconvert.db")

	// Telegram defaults
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

var validate = newValidator()

// newValidator reports fields by their configuration key.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%s failed the %q check", fieldKey(verrs[0].Namespace()), verrs[0].Tag())
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Validate Phase config
	if _, err := time.Parse("15:04:05", c.Phase.DarkStart); err != nil {
		return fmt.Errorf("phase.dark_start must be a clock time like 18:00:00")
	}
	if _, err := time.Parse("15:04:05", c.Phase.DarkEnd); err != nil {
		return fmt.Errorf("phase.dark_end must be a clock time like 06:00:00")
	}
	if c.Phase.DarkStart == c.Phase.DarkEnd {
		return fmt.Errorf("phase.dark_start and phase.dark_end must differ")
	}

	// Validate Process config
	if _, err := time.Parse("2006-01-02", c.Process.MatchStart); err != nil {
		return fmt.Errorf("process.match_start must be a date in yyyy-mm-dd format")
	}
	if c.Process.Frequency != 0 && c.Process.Frequency < 60 {
		return fmt.Errorf("process.frequency must be 0 or at least 60 seconds")
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	return nil
}

// fieldKey turns a validator namespace like Config.output.format into the
// configuration key output.format.
func fieldKey(namespace string) string {
	if i := strings.IndexByte(namespace, '.'); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}
