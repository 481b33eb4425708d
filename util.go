package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/datawire/pypi2spack/pkg/pypi"
	"github.com/datawire/pypi2spack/pkg/python/pep508"
)

// openIndex opens the snapshot database, offering to download it first if it
// does not exist yet and stdin is a terminal.
func openIndex(ctx context.Context, cfg Config) (*pypi.Store, error) {
	if _, err := os.Stat(cfg.DB); os.IsNotExist(err) {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return nil, fmt.Errorf("no index snapshot at %q; run `pypi2spack update` to fetch it", cfg.DB)
		}
		fmt.Fprintf(os.Stderr, "Database %q does not exist, download? (y/n) ", cfg.DB)
		answer, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return nil, err
		}
		switch strings.TrimSpace(answer) {
		case "y", "Y", "yes":
			// proceed
		default:
			return nil, fmt.Errorf("no index snapshot at %q", cfg.DB)
		}
		if err := pypi.DownloadSnapshot(ctx, cfg.SnapshotURL, cfg.DB); err != nil {
			return nil, err
		}
	}
	return pypi.OpenStore(cfg.DB)
}

// readRequirements parses a requirements.txt-style file: one requirement per
// line, "#" comments stripped, blank lines skipped.
func readRequirements(filename string) ([]pep508.Requirement, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	var ret []pep508.Requirement
	for i, line := range strings.Split(string(content), "\n") {
		if idx := strings.Index(line, "#"); idx >= 0 {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		req, err := pep508.ParseRequirement(line)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", filename, i+1, err)
		}
		ret = append(ret, *req)
	}
	return ret, nil
}
