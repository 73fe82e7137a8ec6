package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/vburojevic/calltap/internal/config"
)

// ConfigCmd groups the configuration subcommands
type ConfigCmd struct {
	Show     ConfigShowCmd     `cmd:"" default:"1" help:"Show the effective configuration"`
	Path     ConfigPathCmd     `cmd:"" help:"Show which config file is loaded"`
	Generate ConfigGenerateCmd `cmd:"" help:"Print or write a sample config file"`
}

// ConfigShowCmd shows the effective configuration
type ConfigShowCmd struct{}

// ConfigOutput is the JSON shape of config show
type ConfigOutput struct {
	Type string `json:"type"`
	*config.Config
}

// Run executes the config show command
func (c *ConfigShowCmd) Run(globals *Globals) error {
	cfg := globals.Config
	if globals.jsonOutput() {
		return writeJSON(globals, ConfigOutput{Type: "config", Config: cfg})
	}

	w := globals.Stdout
	fmt.Fprintln(w, "Current Configuration:")
	fmt.Fprintf(w, "  format: %s\n", cfg.Format)
	fmt.Fprintf(w, "  verbose: %t\n", cfg.Verbose)
	fmt.Fprintf(w, "  timeout: %s\n", cfg.Timeout)
	fmt.Fprintf(w, "  socket_template: %s\n", cfg.SocketTemplate)
	fmt.Fprintf(w, "  metrics_addr: %s\n", cfg.MetricsAddr)
	fmt.Fprintf(w, "  prefix: %d\n", cfg.Prefix)
	fmt.Fprintf(w, "  show_time: %t\n", cfg.ShowTime)
	fmt.Fprintf(w, "  show_duration: %t\n", cfg.ShowDuration)
	fmt.Fprintln(w, "Defaults:")
	fmt.Fprintf(w, "  slow: %d\n", cfg.Defaults.Slow)
	fmt.Fprintf(w, "  output: %s\n", cfg.Defaults.Output)
	fmt.Fprintf(w, "  append: %t\n", cfg.Defaults.Append)
	fmt.Fprintf(w, "  tracers: %s\n", strings.Join(cfg.Defaults.Tracers, ", "))
	return nil
}

// ConfigPathCmd shows the loaded config file
type ConfigPathCmd struct{}

// Run executes the config path command
func (c *ConfigPathCmd) Run(globals *Globals) error {
	path := config.ConfigFile()
	if globals.jsonOutput() {
		return writeJSON(globals, map[string]string{"type": "config_path", "path": path})
	}
	if path == "" {
		fmt.Fprintln(globals.Stdout, "No configuration file found")
		fmt.Fprintln(globals.Stdout, "Searched: ./.calltap.yaml, ~/.calltap.yaml, ~/.config/calltap/calltap.yaml, /etc/calltap/calltap.yaml")
		return nil
	}
	fmt.Fprintf(globals.Stdout, "Config file: %s\n", path)
	return nil
}

// ConfigGenerateCmd prints a sample config, or writes the defaults to a file
type ConfigGenerateCmd struct {
	Path string `arg:"" optional:"" type:"path" help:"Write the default config to this file instead of printing a sample"`
}

const sampleConfig = `# calltap configuration file
# Place at ./.calltap.yaml, ~/.calltap.yaml, ~/.config/calltap/calltap.yaml
# or /etc/calltap/calltap.yaml. Every key can be overridden with a
# CALLTAP_ environment variable, e.g. CALLTAP_TIMEOUT=10s.

# Output format for diagnostics and results: text or json
format: text

# Enable debug logging
verbose: false

# How long to wait for attach, detach and eval replies
timeout: 5s

# Event socket path, %d is the traced pid
socket_template: /tmp/calltap-%d.sock

# Serve Prometheus metrics while tracing (empty disables)
metrics_addr: ""

# Trace rendering
prefix: 2
show_time: false
show_duration: true

defaults:
  # Slow threshold in milliseconds used by --slow-methods alone
  slow: 250
  # Trace output file (empty writes to stdout)
  output: ""
  append: false
  # Tracer files loaded when --config is not given
  tracers: []
`

// Run executes the config generate command
func (c *ConfigGenerateCmd) Run(globals *Globals) error {
	if c.Path == "" {
		_, err := io.WriteString(globals.Stdout, sampleConfig)
		return err
	}
	if err := config.WriteDefault(c.Path); err != nil {
		return outputErrorCommon(globals, "OUTPUT_FAILED", fmt.Sprintf("write %s: %v", c.Path, err), "the file must not exist yet")
	}
	fmt.Fprintf(globals.Stdout, "Wrote default configuration to %s\n", c.Path)
	return nil
}
