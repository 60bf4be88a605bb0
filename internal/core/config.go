// Package core holds the engine configuration.
package core

import (
	"time"
)

// Instance type tags accepted in the api_instances configuration list.
const (
	InstanceTypePiped     = "piped"
	InstanceTypeInvidious = "invidious"
)

type Config struct {
	Providers ProvidersConfig
	Search    SearchConfig
	Server    ServerConfig
	Log       LogConfig
}

// InstanceConfig is one mirror endpoint override entry.
type InstanceConfig struct {
	Type string `mapstructure:"type"`
	URL  string `mapstructure:"url"`
}

type ProvidersConfig struct {
	// APIInstances overrides the built-in mirror endpoint pools. Entries
	// are partitioned by Type; families with no entries keep their
	// defaults.
	APIInstances []InstanceConfig `mapstructure:"api_instances"`
	// RequestTimeout bounds every single provider request.
	RequestTimeout time.Duration
	// ThrottlePerMinute caps outbound requests per endpoint host.
	ThrottlePerMinute int
}

// InstancesFor returns the override endpoints of one provider family, in
// configuration order. An empty result means "use the defaults".
func (p ProvidersConfig) InstancesFor(instanceType string) []string {
	var urls []string
	for _, inst := range p.APIInstances {
		if inst.Type == instanceType && inst.URL != "" {
			urls = append(urls, inst.URL)
		}
	}
	return urls
}

type SearchConfig struct {
	// MaxResults caps both per-provider and merged result counts.
	MaxResults int
	// MaxDurationSeconds filters out overlong tracks; 0 disables.
	MaxDurationSeconds int
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

func DefaultConfig() *Config {
	return &Config{
		Providers: ProvidersConfig{
			RequestTimeout:    5 * time.Second,
			ThrottlePerMinute: 30,
		},
		Search: SearchConfig{
			MaxResults: 10,
		},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
