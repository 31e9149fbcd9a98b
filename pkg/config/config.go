/* Package config loads run settings from an HCL file. Every setting has a
command line override, so a config file is optional. */
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"gitlab.com/grometheus/gromet/pkg/android"
	"gitlab.com/grometheus/gromet/pkg/sched"
)

type BlueprintBlock struct {
	/* Source trees to scan for .bp files. */
	Roots []string `hcl:"roots"`
}

type Config struct {
	OutputDir   string `hcl:"output_dir,optional"`
	Jobs        uint   `hcl:"jobs,optional"`
	LogLevel    string `hcl:"log_level,optional"`
	LogFormat   string `hcl:"log_format,optional"`
	ManifestURL string `hcl:"manifest_url,optional"`
	/* Compress on-disk task result caches. Defaults to true. */
	CompressCache *bool `hcl:"compress_cache,optional"`
	/* Process only this tag instead of discovering the full list. */
	DebugTag string `hcl:"debug_tag,optional"`

	Blueprint []BlueprintBlock `hcl:"blueprint,block"`
}

/* Default returns the configuration of a run with no config file. */
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

/* Load reads the HCL file at path. Expressions may reference process
environment variables as env.NAME. */
func Load(path string) (*Config, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, diags)
	}
	cfg := &Config{}
	if diags := gohcl.DecodeBody(file.Body, evalContext(), cfg); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode config %s: %w", path, diags)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func evalContext() *hcl.EvalContext {
	env := make(map[string]cty.Value)
	for _, kv := range os.Environ() {
		if key, value, ok := strings.Cut(kv, "="); ok && key != "" {
			env[key] = cty.StringVal(value)
		}
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{"env": cty.ObjectVal(env)},
	}
}

func (c *Config) applyDefaults() {
	if c.Jobs == 0 {
		c.Jobs = sched.DefaultJobs()
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
	if c.ManifestURL == "" {
		c.ManifestURL = android.DefaultManifestURL
	}
	if c.CompressCache == nil {
		compress := true
		c.CompressCache = &compress
	}
}

func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q, expected debug, info, warn, or error", c.LogLevel)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log_format %q, expected text or json", c.LogFormat)
	}
	return nil
}

/* BlueprintRoots flattens the roots of every blueprint block. */
func (c *Config) BlueprintRoots() []string {
	var roots []string
	for _, b := range c.Blueprint {
		roots = append(roots, b.Roots...)
	}
	return roots
}
