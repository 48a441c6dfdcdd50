// Copyright 2024 The nlarc Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/northlight-forge/nlarc/instance"
)

// instanceTOML is one [[instance]] table in an instances.toml file.
type instanceTOML struct {
	Key     string `toml:"key"`
	Name    string `toml:"name"`
	Version string `toml:"version"`
	Root    string `toml:"root"`
	Cache   string `toml:"cache"`
	Export  string `toml:"export"`
}

type instancesTOML struct {
	Instance []instanceTOML `toml:"instance"`
}

// loadInstance resolves the instance.Config for a run: if instancesPath
// is set, it is decoded and the table whose key matches instanceKey is
// used; otherwise a default instance is synthesized rooted at the
// archive's own directory, so a bare `nlarc explore game.rmdtoc` works
// with no config file at all.
func loadInstance(instancesPath, instanceKey, archivePath string) (instance.Config, error) {
	if instancesPath == "" {
		dir := filepath.Dir(archivePath)
		return instance.Static{
			KeyValue: "default",
			Name:     "default",
			Root:     dir,
			Cache:    filepath.Join(dir, ".nlarc-cache"),
			Export:   filepath.Join(dir, ".nlarc-export"),
		}, nil
	}

	var doc instancesTOML
	if _, err := toml.DecodeFile(instancesPath, &doc); err != nil {
		return nil, fmt.Errorf("nlarc: decoding %s: %w", instancesPath, err)
	}

	for _, inst := range doc.Instance {
		if instanceKey == "" || inst.Key == instanceKey {
			return instance.Static{
				KeyValue: inst.Key,
				Name:     inst.Name,
				Version:  inst.Version,
				Root:     inst.Root,
				Cache:    inst.Cache,
				Export:   inst.Export,
			}, nil
		}
	}
	return nil, fmt.Errorf("nlarc: no instance %q in %s", instanceKey, instancesPath)
}

func ensureDir(path string) error {
	return os.MkdirAll(path, 0o755)
}
