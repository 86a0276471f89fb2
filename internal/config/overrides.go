package config

import (
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Flag names bound by ApplyOverrides.
const (
	FlagEngineURL = "engine-url"
	FlagDialect   = "dialect"
	FlagLogLevel  = "log-level"
)

// RegisterFlags registers the override flags on the given FlagSet.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.StringSlice(FlagEngineURL, nil, "Engine URLs (comma-separated), overrides ENGINE_URL")
	flags.String(FlagDialect, "", "Engine dialect: v6 or v7, overrides ENGINE_DIALECT")
	flags.String(FlagLogLevel, "", "Log level: debug, info, warn, error")
}

// ApplyOverrides layers ENGINE_* environment variables and CLI flags over the
// file configuration, then validates the result.
// Priority: CLI flags > environment variables > config file > defaults.
// flags may be nil.
func ApplyOverrides(cfg *Config, flags *pflag.FlagSet) error {
	v := viper.New()

	_ = v.BindEnv("engine.urls", "ENGINE_URL")
	_ = v.BindEnv("engine.server", "ENGINE_SERVER")
	_ = v.BindEnv("engine.dialect", "ENGINE_DIALECT")
	_ = v.BindEnv("engine.username", "ENGINE_USERNAME")
	_ = v.BindEnv("engine.password", "ENGINE_PASSWORD")
	_ = v.BindEnv("engine.default_index", "ENGINE_DEFAULT_INDEX")
	_ = v.BindEnv("engine.index_prefix", "ENGINE_INDEX_PREFIX")
	_ = v.BindEnv("engine.indexes", "ENGINE_INDEXES")
	_ = v.BindEnv("engine.force_refresh", "ENGINE_FORCE_REFRESH")
	_ = v.BindEnv("engine.auto_aggregations", "ENGINE_AUTO_AGGREGATIONS")
	_ = v.BindEnv("engine.enforce_schema", "ENGINE_ENFORCE_SCHEMA")
	_ = v.BindEnv("logging.level", "LOG_LEVEL")

	if flags != nil {
		bindFlag(v, flags, "engine.urls", FlagEngineURL)
		bindFlag(v, flags, "engine.dialect", FlagDialect)
		bindFlag(v, flags, "logging.level", FlagLogLevel)
	}

	if v.IsSet("engine.urls") {
		cfg.Engine.URLs = SplitList(v.GetStringSlice("engine.urls")...)
	}
	setString(v, "engine.server", &cfg.Engine.Server)
	setString(v, "engine.dialect", &cfg.Engine.Dialect)
	setString(v, "engine.username", &cfg.Engine.Username)
	setString(v, "engine.password", &cfg.Engine.Password)
	setString(v, "engine.default_index", &cfg.Engine.DefaultIndex)
	setString(v, "engine.index_prefix", &cfg.Engine.IndexPrefix)
	setString(v, "logging.level", &cfg.Logging.Level)

	if v.IsSet("engine.indexes") {
		indexes, err := ParseIndexes(v.GetString("engine.indexes"))
		if err != nil {
			return fmt.Errorf("ENGINE_INDEXES: %w", err)
		}
		cfg.Engine.Indexes = indexes
	}
	if v.IsSet("engine.force_refresh") {
		refresh := v.GetBool("engine.force_refresh")
		cfg.Engine.ForceRefresh = &refresh
	}
	if v.IsSet("engine.auto_aggregations") {
		cfg.Engine.AutoAggregations = v.GetBool("engine.auto_aggregations")
	}
	if v.IsSet("engine.enforce_schema") {
		cfg.Engine.EnforceSchema = v.GetBool("engine.enforce_schema")
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func bindFlag(v *viper.Viper, flags *pflag.FlagSet, key, name string) {
	if f := flags.Lookup(name); f != nil {
		_ = v.BindPFlag(key, f)
	}
}

func setString(v *viper.Viper, key string, dst *string) {
	if v.IsSet(key) {
		*dst = v.GetString(key)
	}
}
