// Package config loads the host configuration from an HCL file.
//
//	host {
//	  signature     = "8BIM"
//	  serial_number = 0
//	  max_space_mb  = 512
//	  show_dialogs  = false
//	}
//
//	plugins {
//	  search_paths = ["${home()}/filters", env("FILTER_PATH")]
//	}
//
//	state {
//	  directory = "${home()}/.filterhost"
//	}
//
//	log {
//	  level = "info"
//	}
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/mitchellh/go-wordwrap"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"

	"github.com/justyntemme/filterhost/pkg/filterapi"
	"github.com/justyntemme/filterhost/pkg/framework/debug"
)

// Host describes how the host presents itself to plug-ins.
type Host struct {
	Signature    string `hcl:"signature,optional"`
	SerialNumber int32  `hcl:"serial_number,optional"`
	MaxSpaceMB   int64  `hcl:"max_space_mb,optional"`
	ShowDialogs  bool   `hcl:"show_dialogs,optional"`
}

// Plugins lists where plug-in modules are looked up.
type Plugins struct {
	SearchPaths []string `hcl:"search_paths,optional"`
}

// State configures where saved parameters are kept.
type State struct {
	Directory string `hcl:"directory,optional"`
}

// Log configures the logger.
type Log struct {
	Level string `hcl:"level,optional"`
}

// Config is the decoded configuration file.
type Config struct {
	Host    *Host    `hcl:"host,block"`
	Plugins *Plugins `hcl:"plugins,block"`
	State   *State   `hcl:"state,block"`
	Log     *Log     `hcl:"log,block"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Host: &Host{
			Signature:  filterapi.HostSignature.String(),
			MaxSpaceMB: 512,
		},
		Plugins: &Plugins{},
		State:   &State{Directory: filepath.Join(home, ".filterhost")},
		Log:     &Log{Level: debug.LogLevelInfo.String()},
	}
}

// Error is a configuration problem with its source position.
type Error struct {
	Filename string
	Line     int
	Column   int
	Message  string
}

// Error renders the message wrapped at 80 columns.
func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString("Error:\n")
	for _, l := range strings.Split(wordwrap.WrapString(e.Message, 78), "\n") {
		sb.WriteString("  " + l + "\n")
	}
	if e.Filename != "" {
		fmt.Fprintf(&sb, "\n  %s:%d,%d\n", e.Filename, e.Line, e.Column)
	}
	return sb.String()
}

// Load reads and validates the file at path. Blocks and attributes left out keep their
// defaults.
func Load(path string) (*Config, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(src, path)
}

// Parse decodes HCL source; filename is used in diagnostics only.
func Parse(src []byte, filename string) (*Config, error) {
	parser := hclparse.NewParser()
	f, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, diagError(diags)
	}

	cfg := &Config{}
	if diags := gohcl.DecodeBody(f.Body, buildContext(), cfg); diags.HasErrors() {
		return nil, diagError(diags)
	}

	cfg.fillDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) fillDefaults() {
	def := Default()
	if c.Host == nil {
		c.Host = def.Host
	}
	if c.Host.Signature == "" {
		c.Host.Signature = def.Host.Signature
	}
	if c.Host.MaxSpaceMB == 0 {
		c.Host.MaxSpaceMB = def.Host.MaxSpaceMB
	}
	if c.Plugins == nil {
		c.Plugins = def.Plugins
	}
	if c.State == nil {
		c.State = def.State
	}
	if c.State.Directory == "" {
		c.State.Directory = def.State.Directory
	}
	if c.Log == nil {
		c.Log = def.Log
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
}

// Validate checks values that HCL types cannot express.
func (c *Config) Validate() error {
	if len(c.Host.Signature) != 4 {
		return &Error{Message: fmt.Sprintf("host.signature must be exactly four characters, got %q", c.Host.Signature)}
	}
	if c.Host.MaxSpaceMB < 0 {
		return &Error{Message: fmt.Sprintf("host.max_space_mb must not be negative, got %d", c.Host.MaxSpaceMB)}
	}
	if _, err := debug.ParseLevel(c.Log.Level); err != nil {
		return &Error{Message: err.Error()}
	}
	return nil
}

// HostSignature returns the configured signature as a four character code.
func (c *Config) HostSignature() filterapi.OSType {
	return filterapi.MakeOSType(c.Host.Signature)
}

// MaxSpace returns the buffer budget in bytes.
func (c *Config) MaxSpace() int64 {
	return c.Host.MaxSpaceMB << 20
}

// LogLevel returns the parsed log level.
func (c *Config) LogLevel() debug.LogLevel {
	l, err := debug.ParseLevel(c.Log.Level)
	if err != nil {
		return debug.LogLevelInfo
	}
	return l
}

func diagError(diags hcl.Diagnostics) error {
	var errs []error
	for _, d := range diags {
		if d.Severity != hcl.DiagError {
			continue
		}
		e := &Error{Message: d.Summary}
		if d.Detail != "" {
			e.Message += ": " + d.Detail
		}
		if d.Subject != nil {
			e.Filename = d.Subject.Filename
			e.Line = d.Subject.Start.Line
			e.Column = d.Subject.Start.Column
		}
		errs = append(errs, e)
	}
	return errors.Join(errs...)
}

func buildContext() *hcl.EvalContext {
	envFunc := function.New(&function.Spec{
		Params: []function.Parameter{
			{
				Name:             "env",
				Type:             cty.String,
				AllowDynamicType: true,
			},
		},
		Type: function.StaticReturnType(cty.String),
		Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
			return cty.StringVal(os.Getenv(args[0].AsString())), nil
		},
	})

	homeFunc := function.New(&function.Spec{
		Type: function.StaticReturnType(cty.String),
		Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
			h, _ := os.UserHomeDir()
			return cty.StringVal(h), nil
		},
	})

	return &hcl.EvalContext{
		Functions: map[string]function.Function{
			"env":  envFunc,
			"home": homeFunc,
		},
		Variables: map[string]cty.Value{},
	}
}
