// Copyright 2024 The nlarc Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/northlight-forge/nlarc/log"
	"github.com/northlight-forge/nlarc/vfs"
)

type exploreEntry struct {
	Path     string `json:"path"`
	Kind     string `json:"kind"`
	Size     int64  `json:"size,omitempty"`
	ChildDir int    `json:"child_dirs,omitempty"`
}

func newExploreCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "explore <archive>",
		Short: "List every folder and file in a .rmdp/.rmdtoc archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			archivePath := args[0]
			inst, err := loadInstance(instancesTOMLPath, instanceKey, archivePath)
			if err != nil {
				return err
			}

			logger := log.NewStdLogger(os.Stderr)
			if !verbose {
				logger = log.NewFilter(logger, log.FilterLevel(log.LevelWarn))
			}

			admin := vfs.NewAdmin(inst, archivePath, logger, progressPrinter())
			tree, err := admin.Tree()
			if err != nil {
				return err
			}

			var entries []exploreEntry
			for _, f := range tree.Folders {
				entries = append(entries, exploreEntry{Path: f.Path("std"), Kind: "dir", ChildDir: len(f.ChildDirIDs)})
			}
			for _, f := range tree.Files {
				sz, err := f.Size()
				if err != nil {
					return err
				}
				entries = append(entries, exploreEntry{Path: f.Path("std"), Kind: "file", Size: sz})
			}
			sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "\t")
				return enc.Encode(entries)
			}
			for _, e := range entries {
				if e.Kind == "dir" {
					fmt.Printf("%s/\n", e.Path)
				} else {
					fmt.Printf("%s\t%d\n", e.Path, e.Size)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "emit a JSON array instead of a plain listing")
	return cmd
}

// progressPrinter reports every Admin stage to stderr when verbose is set.
func progressPrinter() vfs.ProgressFunc {
	return func(stage string, start bool) {
		if !verbose {
			return
		}
		if start {
			fmt.Fprintf(os.Stderr, "-> %s\n", stage)
		} else {
			fmt.Fprintf(os.Stderr, "<- %s\n", stage)
		}
	}
}
