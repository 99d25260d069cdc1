// Package config loads the tree-support core's settings from YAML,
// mirroring the nested, per-subsystem Config layout used elsewhere in
// the corpus (github.com/firestar-voxel-world/chunk-server/internal/config),
// adapted from JSON to YAML (gopkg.in/yaml.v3) and from a server's
// runtime knobs to the core's geometric tunables.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/orcatree/treesupport/extract"
	"github.com/orcatree/treesupport/mesh"
	"github.com/orcatree/treesupport/oracle"
	"github.com/orcatree/treesupport/organic"
	"github.com/orcatree/treesupport/propagate"
	"github.com/orcatree/treesupport/tip"
)

// Config bundles every component's settings, loadable from a single YAML
// document.
type Config struct {
	Oracle oracle.Settings `yaml:"oracle"`
	Tip tip.Settings `yaml:"tip"`
	Propagate propagate.Settings `yaml:"propagate"`
	Extract extract.Settings `yaml:"extract"`
	Organic organic.Settings `yaml:"organic"`
	Mesh mesh.Settings `yaml:"mesh"`

	Workers int `yaml:"workers"`
	RaftLayers int `yaml:"raftLayers"`
}

// Load reads YAML configuration from path. An empty path returns
// Default().
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Default returns representative millimetre-scale defaults: oracle,
// propagate and organic use their package's DefaultSettings; tip, extract
// and mesh use the values set in this package.
func Default() *Config {
	return &Config{
		Oracle: oracle.DefaultSettings(),
		Tip: defaultTipSettings(),
		Propagate: propagate.DefaultSettings(),
		Extract: extract.Settings{MinDttToModel: 6},
		Organic: organic.DefaultSettings(),
		Mesh: defaultMeshSettings(),

		Workers: 4,
		RaftLayers: 0,
	}
}

func defaultTipSettings() tip.Settings {
	return tip.Settings{
		MinRadius: 0.4,
		BranchDistance: 2000, // 2mm in Coord units
		ConnectLength: 6000,
		MinSupportPoints: 4,
		SupportOnModel: true,
		RoofEnabled: true,
		RoofLayers: 4,
		MinRoofArea: 4.0,
		EnforcerExtraOffset: 500,
		ForceTipToRoof: false,
		SharpTailMinWidth: 800,
		CantileverMinWidth: 800,
	}
}

func defaultMeshSettings() mesh.Settings {
	return mesh.Settings{
		AngleStepEpsilon: 0.02,
		LineWidth: 400,
		SimplifyTolerance: 20,
		RestAreaThreshold: 0.5,
	}
}

// Validate checks the subset of fields whose invalid values would make
// the pipeline misbehave rather than merely underperform.
func (c *Config) Validate() error {
	if c.Workers <= 0 {
		return errors.New("workers must be positive")
	}
	if c.Propagate.MinRadius <= 0 || c.Propagate.BranchRadius <= 0 {
		return errors.New("propagate.minRadius and branchRadius must be positive")
	}
	if c.Propagate.BranchRadius < c.Propagate.MinRadius {
		return errors.New("propagate.branchRadius must be >= minRadius")
	}
	if c.Tip.MinSupportPoints <= 0 {
		return errors.New("tip.minSupportPoints must be positive")
	}
	if c.RaftLayers < 0 {
		return errors.New("raftLayers cannot be negative")
	}
	return nil
}
