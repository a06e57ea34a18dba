// Package config loads the settings of the three binaries. Values come from,
// in order of precedence: command-line flags, HELLO_* environment variables,
// the optional --config file, and the flag defaults.
package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"hello-services/logging"
)

// EnvPrefix prefixes every environment variable: HELLO_PORT, HELLO_LOG_LEVEL.
const EnvPrefix = "HELLO"

// ConfigFlag names the flag holding the config file path.
const ConfigFlag = "config"

// sections are flag-name prefixes that map to nested keys:
// --log-level -> log.level -> HELLO_LOG_LEVEL.
var sections = []string{"log", "registry"}

type validator interface {
	Validate() error
}

// Load fills out from fs, the environment and the config file, then
// validates it.
func Load(fs *pflag.FlagSet, out validator) error {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var bindErr error
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Name == ConfigFlag || f.Name == "help" {
			return
		}
		if err := v.BindPFlag(flagKey(f.Name), f); err != nil {
			bindErr = errors.Join(bindErr, err)
		}
	})
	if bindErr != nil {
		return fmt.Errorf("config: bind flags: %w", bindErr)
	}

	if f := fs.Lookup(ConfigFlag); f != nil && f.Value.String() != "" {
		v.SetConfigFile(f.Value.String())
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("config: read %s: %w", f.Value.String(), err)
		}
	}

	if err := v.Unmarshal(out); err != nil {
		return fmt.Errorf("config: decode: %w", err)
	}
	return out.Validate()
}

func flagKey(name string) string {
	for _, section := range sections {
		if rest, ok := strings.CutPrefix(name, section+"-"); ok {
			return section + "." + strings.ReplaceAll(rest, "-", "_")
		}
	}
	return strings.ReplaceAll(name, "-", "_")
}

func joinHostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

func validatePort(port int) error {
	if port < 0 || port > 65535 {
		return fmt.Errorf("config: port %d out of range", port)
	}
	return nil
}

func addLogFlags(fs *pflag.FlagSet) {
	def := logging.DefaultConfig()
	fs.String("log-level", def.Level, "Log level: debug, info, warn or error")
	fs.String("log-format", def.Format, "Log encoding: console or json")
	fs.Bool("log-development", def.Development, "Enable zap development mode")
}

func addConfigFlag(fs *pflag.FlagSet) {
	fs.String(ConfigFlag, "", "Optional config file (yaml, json or toml)")
}
