package main

import (
	"context"
	"fmt"
	"os"

	"sigs.k8s.io/yaml"

	"github.com/datawire/pypi2spack/pkg/python/pep440"
	"github.com/datawire/pypi2spack/pkg/spack/spackver"
)

//nolint:gochecknoglobals // Set by persistent flags on the root command.
var (
	flagConfigFile string
	flagDB         string
)

// Config is the on-disk configuration ("pypi2spack.yaml" in the working
// directory unless --config says otherwise).  Flags override it.
type Config struct {
	// DB is the path of the index snapshot database.
	DB string `json:"db"`
	// SnapshotURL is where `update` fetches the gzipped snapshot from.
	SnapshotURL string `json:"snapshot_url"`
	// PythonFloor is the oldest interpreter version worth declaring
	// constraints against; constraints entirely below it are dropped.
	PythonFloor string `json:"python_floor"`
	// MaxVersions caps how many of the newest matching releases of each
	// package `generate` processes.
	MaxVersions int `json:"max_versions"`
	// Prefix is prepended to normalized PyPI names to form Spack package
	// names.
	Prefix string `json:"prefix"`
}

const defaultSnapshotURL = "https://github.com/haampie/pypi-to-spack-package/releases/download/latest/data.db.gz"

func defaultConfig() Config {
	return Config{
		DB:          "data.db",
		SnapshotURL: defaultSnapshotURL,
		PythonFloor: "3.7",
		MaxVersions: 10,
		Prefix:      "py-",
	}
}

// loadConfig reads the config file (if there is one) over the defaults, then
// applies flag overrides.
func loadConfig() (Config, error) {
	cfg := defaultConfig()

	filename := flagConfigFile
	optional := filename == ""
	if optional {
		filename = "pypi2spack.yaml"
	}
	content, err := os.ReadFile(filename)
	switch {
	case err == nil:
		if err := yaml.UnmarshalStrict(content, &cfg); err != nil {
			return Config{}, fmt.Errorf("config %q: %w", filename, err)
		}
	case os.IsNotExist(err) && optional:
		// no config file; defaults apply
	default:
		return Config{}, err
	}

	if flagDB != "" {
		cfg.DB = flagDB
	}
	return cfg, nil
}

// floor parses the configured interpreter floor into the target version
// model.
func (cfg Config) floor(ctx context.Context) (spackver.Version, error) {
	ver, err := pep440.ParseVersion(cfg.PythonFloor)
	if err != nil {
		return spackver.Version{}, fmt.Errorf("config: python_floor: %w", err)
	}
	return spackver.FromPEP440(ctx, *ver), nil
}
