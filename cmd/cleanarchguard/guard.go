package main

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-faster/errors"
	"github.com/roblaszczak/go-cleanarch/cleanarch"
	"gopkg.in/yaml.v3"
)

type layerAliases struct {
	Domain         []string `yaml:"domain"`
	Application    []string `yaml:"application"`
	Interfaces     []string `yaml:"interfaces"`
	Infrastructure []string `yaml:"infrastructure"`
}

type config struct {
	Root              string       `yaml:"root"`
	IgnoreTests       bool         `yaml:"ignore_tests"`
	IgnorePackages    []string     `yaml:"ignore_packages"`
	SharedModules     []string     `yaml:"shared_modules"`
	AllowedViolations []string     `yaml:"allow_violations"`
	Aliases           layerAliases `yaml:"aliases"`
}

type violationError struct {
	count int
}

func (e *violationError) Error() string {
	return fmt.Sprintf("%d layer violations", e.count)
}

func defaultConfig() *config {
	return &config{
		Root:        "modules",
		IgnoreTests: true,
		Aliases: layerAliases{
			Domain:         []string{"domain"},
			Application:    []string{"services"},
			Interfaces:     []string{"presentation"},
			Infrastructure: []string{"infrastructure"},
		},
	}
}

// loadConfig overlays the YAML file at path on the defaults. A missing file is not an error.
func loadConfig(path string) (*config, error) {
	cfg := defaultConfig()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	if cfg.Root == "" {
		cfg.Root = "."
	}
	return cfg, nil
}

func (c *config) layers() map[string]cleanarch.Layer {
	out := map[string]cleanarch.Layer{}
	add := func(names []string, layer cleanarch.Layer) {
		for _, n := range names {
			if n = strings.TrimSpace(n); n != "" {
				out[n] = layer
			}
		}
	}
	add(c.Aliases.Domain, cleanarch.LayerDomain)
	add(c.Aliases.Application, cleanarch.LayerApplication)
	add(c.Aliases.Interfaces, cleanarch.LayerInterfaces)
	add(c.Aliases.Infrastructure, cleanarch.LayerInfrastructure)
	return out
}

// check runs the validator and returns the violations that are not allowed by cfg.
func check(cfg *config) ([]string, error) {
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve %s", cfg.Root)
	}
	ok, errs, err := cleanarch.NewValidator(cfg.layers()).Validate(root, cfg.IgnoreTests, cfg.IgnorePackages)
	if err != nil {
		return nil, errors.Wrap(err, "validate layers")
	}
	if ok {
		return nil, nil
	}
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.Error())
	}
	return cfg.filter(msgs), nil
}

var crossModulePattern = regexp.MustCompile(`between ([\w-]+) and ([\w-]+) modules`)

// filter drops violations that touch a shared module or contain an allowed pattern.
func (c *config) filter(msgs []string) []string {
	shared := map[string]bool{}
	for _, m := range c.SharedModules {
		if m = strings.TrimSpace(m); m != "" {
			shared[m] = true
		}
	}
	var out []string
	for _, msg := range msgs {
		if m := crossModulePattern.FindStringSubmatch(msg); len(m) == 3 && (shared[m[1]] || shared[m[2]]) {
			continue
		}
		if c.allowed(msg) {
			continue
		}
		out = append(out, msg)
	}
	return out
}

func (c *config) allowed(msg string) bool {
	for _, p := range c.AllowedViolations {
		if p != "" && strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
