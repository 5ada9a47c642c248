/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package monitor

import (
	"fmt"
	"os"
	"time"

	yaml "gopkg.in/yaml.v2"
)

// ServerConfig describes one monitored NTP source
type ServerConfig struct {
	Host     string            `yaml:"host"`
	Priority int               `yaml:"priority"`
	Tags     map[string]string `yaml:"tags"`
}

// CSVConfig describes the CSV sink; empty file disables it
type CSVConfig struct {
	File string `yaml:"file"`
}

// InfluxConfig describes the InfluxDB sink; empty URL disables it
type InfluxConfig struct {
	URL    string `yaml:"url"`
	Token  string `yaml:"token"`
	Org    string `yaml:"org"`
	Bucket string `yaml:"bucket"`
}

// Enabled reports whether the sink is configured
func (c *InfluxConfig) Enabled() bool {
	return c.URL != ""
}

// PlotConfig describes the optional plot exporter; empty file disables it
type PlotConfig struct {
	File     string        `yaml:"file"`
	Interval time.Duration `yaml:"interval"`
}

// QualityConfig holds the optional sync quality expression; empty
// expression disables the check
type QualityConfig struct {
	Expression string `yaml:"expression"`
}

// Config specifies ntpmon run options
type Config struct {
	Interval         time.Duration  `yaml:"interval"`
	Timeout          time.Duration  `yaml:"timeout"`
	MaxPoints        int            `yaml:"maxpoints"`
	MonitoringPort   int            `yaml:"monitoringport"`
	FailureThreshold int            `yaml:"failurethreshold"`
	Backoff          BackoffConfig  `yaml:"backoff"`
	Servers          []ServerConfig `yaml:"servers"`
	CSV              CSVConfig      `yaml:"csv"`
	Influx           InfluxConfig   `yaml:"influx"`
	Plot             PlotConfig     `yaml:"plot"`
	Quality          QualityConfig  `yaml:"quality"`
}

// DefaultConfig returns Config initialized with default values
func DefaultConfig() *Config {
	return &Config{
		Interval:         60 * time.Second,
		Timeout:          5 * time.Second,
		MaxPoints:        1000,
		MonitoringPort:   8889,
		FailureThreshold: 5,
		Backoff: BackoffConfig{
			Factor:      2,
			MaxInterval: 10 * time.Minute,
		},
		CSV:  CSVConfig{File: "ntp_metrics.csv"},
		Plot: PlotConfig{Interval: 5 * time.Minute},
	}
}

// ReadConfig reads config from the file
func ReadConfig(path string) (*Config, error) {
	c := DefaultConfig()
	cData, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	err = yaml.Unmarshal(cData, c)
	if err != nil {
		return nil, err
	}

	return c, nil
}

// Validate config is sane. A failure here is fatal at startup, before
// any scheduling begins.
func (c *Config) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be greater than zero")
	}
	if c.Timeout <= 0 || c.Timeout >= c.Interval {
		return fmt.Errorf("timeout must be greater than zero but less than interval")
	}
	if c.MaxPoints < 1 {
		return fmt.Errorf("maxpoints must be at least 1")
	}
	if c.MonitoringPort < 0 {
		return fmt.Errorf("monitoringport must be 0 or positive")
	}
	if c.FailureThreshold < 1 {
		return fmt.Errorf("failurethreshold must be at least 1")
	}
	if err := c.Backoff.Validate(); err != nil {
		return err
	}
	if c.Backoff.MaxInterval < c.Interval {
		return fmt.Errorf("backoff maxinterval must not be less than interval")
	}
	if len(c.Servers) == 0 {
		return fmt.Errorf("at least one server must be specified")
	}
	seen := map[string]bool{}
	for _, s := range c.Servers {
		if s.Host == "" {
			return fmt.Errorf("server host must not be empty")
		}
		if seen[s.Host] {
			return fmt.Errorf("duplicate server %q", s.Host)
		}
		seen[s.Host] = true
	}
	if c.Plot.File != "" && c.Plot.Interval <= 0 {
		return fmt.Errorf("plot interval must be greater than zero")
	}
	return nil
}

// PrepareConfig reads the config file when given, layers flag overrides
// on top of it, appends positional servers, then validates the result
func PrepareConfig(cfgPath string, hosts []string, interval time.Duration, timeout time.Duration, monitoringPort int, setFlags map[string]bool) (*Config, error) {
	cfg := DefaultConfig()
	var err error
	if cfgPath != "" {
		cfg, err = ReadConfig(cfgPath)
		if err != nil {
			return nil, fmt.Errorf("reading config %q: %w", cfgPath, err)
		}
	}
	if setFlags["interval"] {
		cfg.Interval = interval
	}
	if setFlags["timeout"] {
		cfg.Timeout = timeout
	}
	if setFlags["monitoringport"] {
		cfg.MonitoringPort = monitoringPort
	}
	for _, h := range hosts {
		cfg.Servers = append(cfg.Servers, ServerConfig{Host: h})
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
