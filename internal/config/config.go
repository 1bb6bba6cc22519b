// Package config loads typed server/client configuration from a file,
// environment variables, and defaults, layered via github.com/spf13/viper
// (§9 ambient config surface). No command-line flags are bound.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// ServerConfig holds everything the server binary needs to start.
type ServerConfig struct {
	ListenAddr   string `mapstructure:"listen_addr"`
	BufferMs     int    `mapstructure:"buffer_ms"`
	DefaultCodec string `mapstructure:"default_codec"`
	SampleRate   int    `mapstructure:"sample_rate"`
	Channels     int    `mapstructure:"channels"`
	BitDepth     int    `mapstructure:"bit_depth"`
	AudioFile    string `mapstructure:"audio_file"`
	EnableMDNS   bool   `mapstructure:"enable_mdns"`
	ServiceName  string `mapstructure:"service_name"`

	TLSCertFile string `mapstructure:"tls_cert_file"`
	TLSKeyFile  string `mapstructure:"tls_key_file"`
	TLSCAFile   string `mapstructure:"tls_ca_file"`
}

// ClientConfig holds everything the client binary needs to start.
type ClientConfig struct {
	ServerAddr string `mapstructure:"server_addr"`
	Name       string `mapstructure:"name"`
	BufferMs   int    `mapstructure:"buffer_ms"`
	Volume     int    `mapstructure:"volume"`
	Transport  string `mapstructure:"transport"` // tcp, tls, websocket, rist
}

func newViper(envPrefix string) *viper.Viper {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/airwave")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	return v
}

// LoadServerConfig reads server configuration from defaults,
// ./config.yaml or /etc/airwave/config.yaml (if present), and
// AIRWAVE_SERVER_* environment variables, in that ascending order of
// precedence.
func LoadServerConfig() (ServerConfig, error) {
	v := newViper("AIRWAVE_SERVER")
	v.SetDefault("listen_addr", ":1704")
	v.SetDefault("buffer_ms", 1000)
	v.SetDefault("default_codec", "pcm")
	v.SetDefault("sample_rate", 48000)
	v.SetDefault("channels", 2)
	v.SetDefault("bit_depth", 16)
	v.SetDefault("audio_file", "")
	v.SetDefault("enable_mdns", true)
	v.SetDefault("service_name", "airwave")

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return ServerConfig{}, fmt.Errorf("config: read server config: %w", err)
		}
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return ServerConfig{}, fmt.Errorf("config: unmarshal server config: %w", err)
	}
	return cfg, nil
}

// LoadClientConfig reads client configuration from ./config.yaml (if
// present), AIRWAVE_CLIENT_* environment variables, and defaults.
func LoadClientConfig() (ClientConfig, error) {
	v := newViper("AIRWAVE_CLIENT")
	v.SetDefault("server_addr", "")
	v.SetDefault("name", "")
	v.SetDefault("buffer_ms", 1000)
	v.SetDefault("volume", 100)
	v.SetDefault("transport", "tcp")

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return ClientConfig{}, fmt.Errorf("config: read client config: %w", err)
		}
	}

	var cfg ClientConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return ClientConfig{}, fmt.Errorf("config: unmarshal client config: %w", err)
	}
	return cfg, nil
}
