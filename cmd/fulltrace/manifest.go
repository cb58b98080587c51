package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

const manifestName = "fulltrace.toml"

type projectManifest struct {
	Path   string
	Root   string
	Config projectConfig
	meta   toml.MetaData
}

type projectConfig struct {
	Pass    passConfig    `toml:"pass"`
	Targets targetsConfig `toml:"targets"`
}

type passConfig struct {
	BaseDir     string `toml:"base_dir"`
	Capacity    uint32 `toml:"capacity"`
	ScanRecords bool   `toml:"scan_records"`
	SiteMap     bool   `toml:"site_map"`
	Suffix      string `toml:"suffix"`
	OutDir      string `toml:"out_dir"`
	Jobs        int    `toml:"jobs"`
}

type targetsConfig struct {
	Locations []string `toml:"locations"`
	File      string   `toml:"file"`
}

func findManifest(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, manifestName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

func loadProjectManifest(startDir string) (*projectManifest, bool, error) {
	manifestPath, ok, err := findManifest(startDir)
	if err != nil || !ok {
		return nil, ok, err
	}
	cfg, meta, err := loadProjectConfig(manifestPath)
	if err != nil {
		return nil, true, err
	}
	return &projectManifest{
		Path:   manifestPath,
		Root:   filepath.Dir(manifestPath),
		Config: cfg,
		meta:   meta,
	}, true, nil
}

func loadProjectConfig(path string) (projectConfig, toml.MetaData, error) {
	var cfg projectConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return projectConfig{}, meta, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return projectConfig{}, meta, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if meta.IsDefined("pass", "capacity") && cfg.Pass.Capacity == 0 {
		return projectConfig{}, meta, fmt.Errorf("%s: [pass].capacity must be positive", path)
	}
	if meta.IsDefined("pass", "jobs") && cfg.Pass.Jobs < 0 {
		return projectConfig{}, meta, fmt.Errorf("%s: [pass].jobs must not be negative", path)
	}
	return cfg, meta, nil
}

// defined reports whether key was present in the manifest.
func (m *projectManifest) defined(key ...string) bool {
	return m != nil && m.meta.IsDefined(key...)
}

// resolve makes a manifest-relative path absolute.
func (m *projectManifest) resolve(p string) string {
	if p == "" || m == nil || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Root, filepath.FromSlash(p))
}

// readTargetsFile returns the non-empty, non-comment lines of path.
func readTargetsFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("targets file: %w", err)
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("targets file %s: %w", path, err)
	}
	return out, nil
}
