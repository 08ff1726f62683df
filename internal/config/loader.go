package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. AUTUMN_LOG_LEVEL.
const EnvPrefix = "AUTUMN"

type SourceKind string

const (
	SourceDefault SourceKind = "default"
	SourceFile    SourceKind = "file"
	SourceEnv     SourceKind = "env"
)

type Source struct {
	Kind   SourceKind
	Name   string // env variable for env sources
	File   string
	Line   int
	Column int
}

type LoadResult struct {
	Config  *Config
	Sources map[string]Source // YAML path -> last writer
	File    string            // loaded file, empty when none existed
}

// Dir returns the directory relative script paths are resolved against.
func (r *LoadResult) Dir() string {
	if r.File == "" {
		if path, err := DefaultConfigPath(); err == nil {
			return filepath.Dir(path)
		}
		return ""
	}
	return filepath.Dir(r.File)
}

// ScriptPath resolves the configured script file.
func (r *LoadResult) ScriptPath() string {
	return r.Config.ScriptPath(r.Dir())
}

// envKeys maps YAML paths to the environment variable that overrides them.
var envKeys = map[string]string{
	"script":             EnvPrefix + "_SCRIPT",
	"display":            EnvPrefix + "_DISPLAY",
	"log_level":          EnvPrefix + "_LOG_LEVEL",
	"grid.rows":          EnvPrefix + "_GRID_ROWS",
	"grid.cols":          EnvPrefix + "_GRID_COLS",
	"grid.padding":       EnvPrefix + "_GRID_PADDING",
	"grid.margin":        EnvPrefix + "_GRID_MARGIN",
	"reconcile_interval": EnvPrefix + "_RECONCILE_INTERVAL",
	"script_timeout":     EnvPrefix + "_SCRIPT_TIMEOUT",
	"metrics_addr":       EnvPrefix + "_METRICS_ADDR",
	"reload_hotkey":      EnvPrefix + "_RELOAD_HOTKEY",
}

func DefaultConfigPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "autumn", "config.yaml"), nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "autumn", "config.yaml"), nil
}

// Load reads the configuration from the standard location, applies
// environment overrides and validates the result.
func Load() (*LoadResult, error) {
	path, err := DefaultConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath is Load for an explicit file. A missing file yields the
// defaults.
func LoadFromPath(path string) (*LoadResult, error) {
	cfg := DefaultConfig()
	sources := map[string]Source{}
	res := &LoadResult{Config: cfg, Sources: sources}

	exists, err := pathExists(path)
	if err != nil {
		return nil, err
	}
	if exists {
		canon, err := canonicalPath(path)
		if err != nil {
			return nil, err
		}
		data, err := os.ReadFile(canon)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to read: %w", canon, err)
		}

		var doc yaml.Node
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%s: %w", canon, err)
		}
		if err := decodeStrictYAML(data, cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", canon, err)
		}
		for key, src := range collectSources(&doc, canon) {
			sources[key] = src
		}
		res.File = canon
	}

	if err := applyEnv(cfg, sources); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, attachSourceContext(err, sources)
	}
	return res, nil
}

func applyEnv(cfg *Config, sources map[string]Source) error {
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return fmt.Errorf("environment overrides: %w", err)
	}
	for path, key := range envKeys {
		if _, ok := os.LookupEnv(key); ok {
			sources[path] = Source{Kind: SourceEnv, Name: key}
		}
	}
	return nil
}

func decodeStrictYAML(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}
	return nil
}

func canonicalPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %q: %w", path, err)
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		// Best-effort; still use abs.
		return abs, nil
	}
	return real, nil
}

func pathExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func collectSources(doc *yaml.Node, file string) map[string]Source {
	out := make(map[string]Source)
	if doc == nil {
		return out
	}
	node := doc
	if node.Kind == yaml.DocumentNode && len(node.Content) > 0 {
		node = node.Content[0]
	}
	collectSourcesRec(node, file, "", out)
	return out
}

func collectSourcesRec(node *yaml.Node, file string, prefix string, out map[string]Source) {
	if node == nil || node.Kind != yaml.MappingNode {
		return
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode := node.Content[i]
		valNode := node.Content[i+1]
		path := keyNode.Value
		if prefix != "" {
			path = prefix + "." + keyNode.Value
		}
		out[path] = Source{
			Kind:   SourceFile,
			File:   file,
			Line:   valNode.Line,
			Column: valNode.Column,
		}
		collectSourcesRec(valNode, file, path, out)
	}
}

func attachSourceContext(err error, sources map[string]Source) error {
	verr, ok := err.(*ValidationError)
	if !ok || verr == nil {
		return err
	}
	if verr.Path == "" {
		return err
	}
	if src, ok := sources[verr.Path]; ok {
		verr.Source = src
	}
	return verr
}
