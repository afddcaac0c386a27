package store

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultConfig returns the hard-coded configuration tree. User settings in
// config.yaml are deep-merged over this on load.
func DefaultConfig() map[string]any {
	return map[string]any{
		"version": 1,
		"diff": map[string]any{
			"max_diff_bytes": 100000,
			"context_lines":  3,
		},
		"contracts": map[string]any{
			"max_file_bytes":  1048576,
			"fail_fast":       false,
			"severity_filter": "all",
		},
		"sandbox": map[string]any{
			"stash_prefix": "phaser",
		},
		"branches": map[string]any{
			"merge_strategy": "squash",
		},
	}
}

// LoadConfig reads config.yaml and deep-merges it over the defaults.
// A missing file yields the defaults without creating anything.
func (s *Store) LoadConfig() (map[string]any, error) {
	data, err := ReadLocked(s.Path(ConfigFile))
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}
	var user map[string]any
	if err := yaml.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidContent, ConfigFile, err)
	}
	return deepMerge(DefaultConfig(), user), nil
}

// SaveConfig writes the full configuration tree.
func (s *Store) SaveConfig(cfg map[string]any) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return WriteAtomic(s.Path(ConfigFile), data)
}

// SetConfigValue sets a single leaf addressed by a dot path, e.g.
// "diff.max_diff_bytes", creating intermediate maps as needed.
func (s *Store) SetConfigValue(dotted string, value any) error {
	if dotted == "" {
		return fmt.Errorf("%w: config key", ErrMissingField)
	}
	cfg, err := s.LoadConfig()
	if err != nil {
		return err
	}

	keys := strings.Split(dotted, ".")
	node := cfg
	for _, key := range keys[:len(keys)-1] {
		child, ok := node[key].(map[string]any)
		if !ok {
			child = map[string]any{}
			node[key] = child
		}
		node = child
	}
	node[keys[len(keys)-1]] = value
	return s.SaveConfig(cfg)
}

// ResetConfig writes the default tree verbatim, discarding user settings.
func (s *Store) ResetConfig() error {
	return s.SaveConfig(DefaultConfig())
}

// deepMerge overlays src onto dst, recursing into maps. Non-map values in
// src replace dst values. dst is mutated and returned.
func deepMerge(dst, src map[string]any) map[string]any {
	for key, srcVal := range src {
		if srcMap, ok := srcVal.(map[string]any); ok {
			if dstMap, ok := dst[key].(map[string]any); ok {
				dst[key] = deepMerge(dstMap, srcMap)
				continue
			}
		}
		dst[key] = srcVal
	}
	return dst
}
