package config

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"codeberg.org/mutker/powerwatch/internal/errors"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	defaultEnvPrefix  = "POWERWATCH"
	defaultConfigPath = "/etc/powerwatch.conf"
	configEnv         = "CONFIG"
)

type Config struct {
	Source            string        `mapstructure:"source" validate:"oneof=upower dbus"`
	UpowerCommand     string        `mapstructure:"upower_command" validate:"required"`
	QueryTimeout      time.Duration `mapstructure:"query_timeout" validate:"gt=0"`
	DiscoveryInterval time.Duration `mapstructure:"discovery_interval" validate:"gte=100ms"`
	BatteryInterval   time.Duration `mapstructure:"battery_interval" validate:"gte=100ms"`
	ChargeInterval    time.Duration `mapstructure:"charge_interval" validate:"gte=100ms"`
	SubscriberBuffer  int           `mapstructure:"subscriber_buffer" validate:"gte=1"`
	LogLevel          LogLevel      `mapstructure:"log_level" validate:"loglevel"`
	PIDFile           string        `mapstructure:"pid_file" validate:"required"`
	Warning           Warning       `mapstructure:"warning"`
	Metrics           Metrics       `mapstructure:"metrics"`
	Breaker           Breaker       `mapstructure:"breaker"`
}

type Warning struct {
	Early         int    `mapstructure:"early" validate:"gte=0,lte=100,gtfield=Urgent"`
	Urgent        int    `mapstructure:"urgent" validate:"gte=0,lte=100"`
	NotifyCommand string `mapstructure:"notify_command"`
}

type Metrics struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen" validate:"required_if=Enabled true"`
}

type Breaker struct {
	MaxFailures uint32        `mapstructure:"max_failures" validate:"gte=1"`
	OpenTimeout time.Duration `mapstructure:"open_timeout" validate:"gte=0"`
}

// flagKeys maps command line flags onto configuration keys.
var flagKeys = map[string]string{
	"source":             "source",
	"upower-command":     "upower_command",
	"query-timeout":      "query_timeout",
	"discovery-interval": "discovery_interval",
	"battery-interval":   "battery_interval",
	"charge-interval":    "charge_interval",
	"log-level":          "log_level",
	"pid-file":           "pid_file",
	"metrics":            "metrics.enabled",
	"metrics-listen":     "metrics.listen",
	"notify-command":     "warning.notify_command",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("source", SourceUpower)
	v.SetDefault("upower_command", "upower")
	v.SetDefault("query_timeout", 5*time.Second)
	v.SetDefault("discovery_interval", 60*time.Second)
	v.SetDefault("battery_interval", 10*time.Second)
	v.SetDefault("charge_interval", 5*time.Second)
	v.SetDefault("subscriber_buffer", 64)
	v.SetDefault("log_level", string(LogLevelInfo))
	v.SetDefault("pid_file", filepath.Join(os.TempDir(), "powerwatch.pid"))
	v.SetDefault("warning.early", 20)
	v.SetDefault("warning.urgent", 5)
	v.SetDefault("warning.notify_command", "")
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen", "127.0.0.1:9121")
	v.SetDefault("breaker.max_failures", 5)
	v.SetDefault("breaker.open_timeout", 30*time.Second)
}

func newFlagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("powerwatch", pflag.ContinueOnError)

	flags.String("config", "", "Path to the TOML configuration file")
	flags.String("source", SourceUpower, "Device information backend (upower, dbus)")
	flags.String("upower-command", "upower", "upower executable")
	flags.Duration("query-timeout", 5*time.Second, "Timeout for a single device query")
	flags.Duration("discovery-interval", 60*time.Second, "Interval between device discoveries")
	flags.Duration("battery-interval", 10*time.Second, "Interval between battery load polls")
	flags.Duration("charge-interval", 5*time.Second, "Interval between charge/supply polls")
	flags.String("log-level", string(LogLevelInfo), "Log level (debug, info, warning, error)")
	flags.Bool("debug", false, "Enable debug logging")
	flags.String("pid-file", "", "PID file path")
	flags.Bool("metrics", false, "Serve Prometheus metrics")
	flags.String("metrics-listen", "127.0.0.1:9121", "Metrics listen address")
	flags.String("notify-command", "", "Command run with a message on low battery, e.g. notify-send")

	return flags
}

// Load builds the configuration from defaults, the config file, the
// environment and args, in increasing order of precedence.
func Load(args []string, opts ...Option) (*Config, error) {
	errFactory := errors.New()

	o := options{envPrefix: defaultEnvPrefix}
	for _, opt := range opts {
		opt(&o)
	}

	flags := newFlagSet()
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil, err
		}
		return nil, errFactory.Wrap(ErrBindFlags, err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(o.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for name, key := range flagKeys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return nil, errFactory.Wrap(ErrBindFlags, err)
		}
	}

	if err := readConfigFile(v, flags, o); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(ErrReadConfig, err)
	}

	if debug, _ := flags.GetBool("debug"); debug {
		cfg.LogLevel = LogLevelDebug
	}
	cfg.LogLevel = LogLevel(strings.ToLower(string(cfg.LogLevel)))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// readConfigFile loads the TOML file named by --config, the CONFIG
// environment variable, an explicit option, or the default path. Only a
// missing default file is tolerated.
func readConfigFile(v *viper.Viper, flags *pflag.FlagSet, o options) error {
	errFactory := errors.New()

	path, _ := flags.GetString("config")
	if path == "" {
		path = os.Getenv(o.envPrefix + "_" + configEnv)
	}
	if path == "" {
		path = o.configPath
	}
	explicit := path != ""
	if !explicit {
		path = defaultConfigPath
	}

	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return errFactory.Wrap(ErrReadConfig, err)
	}

	return nil
}

func (c *Config) Validate() error {
	errFactory := errors.New()

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.RegisterValidation("loglevel", func(fl validator.FieldLevel) bool {
		return LogLevel(fl.Field().String()).IsValid()
	}); err != nil {
		return errFactory.Wrap(ErrInvalidConfig, err)
	}

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Namespace()+":"+fe.Tag())
			}
			return errFactory.WithData(ErrInvalidConfig, strings.Join(fields, ", "))
		}
		return errFactory.Wrap(ErrInvalidConfig, err)
	}

	return nil
}
