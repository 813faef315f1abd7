package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Default values applied when the config file leaves a field unset.
const (
	DefaultHostsFile    = "hosts.txt"
	DefaultTemplate     = "html.tpl"
	DefaultOutputDir    = "web"
	DefaultLocalMarker  = "localhost"
	DefaultProbeSeconds = 5
	DefaultListen       = ":8080"
)

// Config holds the run configuration. Flag values override anything
// loaded from the file.
type Config struct {
	HostsFile           string `yaml:"hosts_file"`
	Template            string `yaml:"template"`
	OutputDir           string `yaml:"output_dir"`
	LocalMarker         string `yaml:"local_marker"`
	SSHUser             string `yaml:"ssh_user"`
	ProbeTimeoutSeconds int    `yaml:"probe_timeout_seconds"`
	MinTrivyVersion     string `yaml:"min_trivy_version"`
	Listen              string `yaml:"listen"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		HostsFile:           DefaultHostsFile,
		Template:            DefaultTemplate,
		OutputDir:           DefaultOutputDir,
		LocalMarker:         DefaultLocalMarker,
		ProbeTimeoutSeconds: DefaultProbeSeconds,
		Listen:              DefaultListen,
	}
}

// Load reads the YAML config file at path into a Config with defaults
// applied for unset fields.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	cfg := New()
	dec := yaml.NewDecoder(f)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config file %s: %w", path, err)
	}
	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.HostsFile == "" {
		cfg.HostsFile = DefaultHostsFile
	}
	if cfg.Template == "" {
		cfg.Template = DefaultTemplate
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = DefaultOutputDir
	}
	if cfg.LocalMarker == "" {
		cfg.LocalMarker = DefaultLocalMarker
	}
	if cfg.ProbeTimeoutSeconds <= 0 {
		cfg.ProbeTimeoutSeconds = DefaultProbeSeconds
	}
	if cfg.Listen == "" {
		cfg.Listen = DefaultListen
	}
}

// LoadHosts reads the host list file: one address per line, surrounding
// whitespace trimmed, blank lines and lines starting with '#' skipped.
// An empty result is an error so a misconfigured run fails before any
// scanning.
func LoadHosts(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open hosts file: %w", err)
	}
	defer f.Close()

	var hosts []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		hosts = append(hosts, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read hosts file %s: %w", path, err)
	}
	if len(hosts) == 0 {
		return nil, fmt.Errorf("hosts file %s contains no addresses", path)
	}
	return hosts, nil
}
