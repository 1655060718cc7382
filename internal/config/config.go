// Package config loads the server configuration from flags, environment and an optional file.
package config

import (
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"chat-help-mcp/internal/protocol"
	"chat-help-mcp/internal/wiki"
)

// EnvPrefix is prepended to every environment variable derived from a key.
const EnvPrefix = "CHAT_HELP"

// Config holds all runtime settings.
type Config struct {
	Port            int           `mapstructure:"port"`
	StrictProtocol  bool          `mapstructure:"strict_protocol"`
	ToolTimeout     time.Duration `mapstructure:"tool_timeout"`
	ProtocolVersion string        `mapstructure:"protocol_version"`
	ServerName      string        `mapstructure:"server_name"`
	ServerVersion   string        `mapstructure:"server_version"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	WikiBaseURL  string        `mapstructure:"wiki_base_url"`
	WikiTimeout  time.Duration `mapstructure:"wiki_timeout"`
	WikiCacheTTL time.Duration `mapstructure:"wiki_cache_ttl"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	TLSCertFile string `mapstructure:"tls_cert_file"`
	TLSKeyFile  string `mapstructure:"tls_key_file"`

	// Stdio serves one session over stdin/stdout instead of listening on Port.
	Stdio bool `mapstructure:"stdio"`
}

var defaults = map[string]any{
	"port":             3000,
	"strict_protocol":  false,
	"tool_timeout":     "30s",
	"protocol_version": protocol.DefaultProtocolVersion,
	"server_name":      "chat-help",
	"server_version":   "1.0.0",
	"max_body_bytes":   1 << 20,
	"shutdown_timeout": "10s",
	"wiki_base_url":    wiki.DefaultBaseURL,
	"wiki_timeout":     "10s",
	"wiki_cache_ttl":   "12h",
	"log_level":        "info",
	"log_format":       "text",
	"tls_cert_file":    "",
	"tls_key_file":     "",
	"stdio":            false,
}

// Keys also read from their bare, unprefixed environment names.
var bareEnv = map[string]string{
	"port":          "PORT",
	"tls_cert_file": "TLS_CERT_FILE",
	"tls_key_file":  "TLS_KEY_FILE",
	"wiki_base_url": "WIKI_BASE_URL",
}

// RegisterFlags adds one flag per key to fs. Flag names use dashes where keys use underscores.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to a YAML config file")
	fs.Int("port", 3000, "port to listen on")
	fs.Bool("strict-protocol", false, "reject tools/call before initialize")
	fs.Duration("tool-timeout", 30*time.Second, "maximum time a tool may run")
	fs.String("wiki-base-url", wiki.DefaultBaseURL, "base URL of the department wiki")
	fs.String("log-level", "info", "log level (trace, debug, info, warn, error)")
	fs.String("log-format", "text", "log format (text or json)")
	fs.String("tls-cert-file", "", "TLS certificate file")
	fs.String("tls-key-file", "", "TLS key file")
	fs.Bool("stdio", false, "serve newline-delimited JSON-RPC on stdin/stdout instead of HTTP")
}

// Load resolves the configuration from v. When fs is non-nil its flags take precedence; a --config flag
// names a YAML file read below the environment.
func Load(v *viper.Viper, fs *pflag.FlagSet) (Config, error) {
	for k, d := range defaults {
		v.SetDefault(k, d)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	for key, bare := range bareEnv {
		if err := v.BindEnv(key, EnvPrefix+"_"+strings.ToUpper(key), bare); err != nil {
			return Config{}, errors.Wrapf(err, "binding %s", key)
		}
	}

	if fs != nil {
		var bindErr *multierror.Error
		fs.VisitAll(func(f *pflag.Flag) {
			if f.Name == "config" {
				return
			}
			key := strings.ReplaceAll(f.Name, "-", "_")
			bindErr = multierror.Append(bindErr, v.BindPFlag(key, f))
		})
		if err := bindErr.ErrorOrNil(); err != nil {
			return Config{}, errors.Wrap(err, "binding flags")
		}
		if path, _ := fs.GetString("config"); path != "" {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return Config{}, errors.Wrapf(err, "reading config file %s", path)
			}
			log.WithField("file", v.ConfigFileUsed()).Info("loaded config file")
		}
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.StringToTimeDurationHookFunc())
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return Config{}, errors.Wrap(err, "decoding config")
	}
	return cfg, cfg.Validate()
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var result *multierror.Error
	if c.Port < 1 || c.Port > 65535 {
		result = multierror.Append(result, errors.Errorf("port %d out of range", c.Port))
	}
	for name, d := range map[string]time.Duration{
		"tool_timeout":     c.ToolTimeout,
		"shutdown_timeout": c.ShutdownTimeout,
		"wiki_timeout":     c.WikiTimeout,
		"wiki_cache_ttl":   c.WikiCacheTTL,
	} {
		if d <= 0 {
			result = multierror.Append(result, errors.Errorf("%s must be positive, got %s", name, d))
		}
	}
	if c.MaxBodyBytes <= 0 {
		result = multierror.Append(result, errors.New("max_body_bytes must be positive"))
	}
	if c.ProtocolVersion == "" {
		result = multierror.Append(result, errors.New("protocol_version cannot be empty"))
	}
	if c.WikiBaseURL == "" {
		result = multierror.Append(result, errors.New("wiki_base_url cannot be empty"))
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		result = multierror.Append(result, errors.Wrap(err, "log_level"))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		result = multierror.Append(result, errors.Errorf("log_format must be text or json, got %q", c.LogFormat))
	}
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		result = multierror.Append(result, errors.New("tls_cert_file and tls_key_file must be set together"))
	}
	return result.ErrorOrNil()
}

// TLSEnabled reports whether the server should terminate TLS itself.
func (c Config) TLSEnabled() bool {
	return c.TLSCertFile != "" && c.TLSKeyFile != ""
}
