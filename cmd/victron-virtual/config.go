package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	envPrefix      = "VICTRON_VIRTUAL"
	configFileName = "victron-virtual"
	configFileType = "yaml"

	// Config keys.
	cfgKeyBus           = "bus"
	cfgKeyAddress       = "address"
	cfgKeyDefinition    = "definition"
	cfgKeyProtocolLog   = "protocol_log"
	cfgKeyLogLevel      = "log_level"
	cfgKeyS2Path        = "s2_path"
	cfgKeyAddDefaults   = "add_defaults"
	cfgKeyConnectionTag = "connection_tag"
	cfgKeyInteractive   = "interactive"
)

// Config holds the resolved settings of one run.
type Config struct {
	Bus           string
	Address       string
	Definition    string
	ProtocolLog   string
	LogLevel      slog.Level
	S2Path        string
	AddDefaults   bool
	ConnectionTag string
	Interactive   bool
}

// loadConfig merges, in order of precedence, command-line flags,
// VICTRON_VIRTUAL_* environment variables, the config file and defaults.
// A missing config file is not an error unless it was named explicitly.
func loadConfig(configFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetDefault(cfgKeyBus, "system")
	v.SetDefault(cfgKeyLogLevel, "info")
	v.SetDefault(cfgKeyAddDefaults, true)
	v.SetDefault(cfgKeyConnectionTag, "Virtual")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(configFileName)
		v.SetConfigType(configFileType)
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/victron-virtual")
		v.AddConfigPath("/data/conf")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if flags != nil {
		// Flag names use dashes, config keys underscores.
		var bindErr error
		flags.VisitAll(func(f *pflag.Flag) {
			key := strings.ReplaceAll(f.Name, "-", "_")
			if err := v.BindPFlag(key, f); err != nil && bindErr == nil {
				bindErr = err
			}
		})
		if bindErr != nil {
			return nil, fmt.Errorf("bind flags: %w", bindErr)
		}
	}

	cfg := &Config{
		Bus:           v.GetString(cfgKeyBus),
		Address:       v.GetString(cfgKeyAddress),
		Definition:    v.GetString(cfgKeyDefinition),
		ProtocolLog:   v.GetString(cfgKeyProtocolLog),
		S2Path:        v.GetString(cfgKeyS2Path),
		AddDefaults:   v.GetBool(cfgKeyAddDefaults),
		ConnectionTag: v.GetString(cfgKeyConnectionTag),
		Interactive:   v.GetBool(cfgKeyInteractive),
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(v.GetString(cfgKeyLogLevel))); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", cfgKeyLogLevel, err)
	}
	switch cfg.Bus {
	case "system", "session":
	default:
		return nil, fmt.Errorf("invalid %s %q (must be system or session)", cfgKeyBus, cfg.Bus)
	}
	return cfg, nil
}
