// Copyright 2024 The nlarc Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/northlight-forge/nlarc/log"
	"github.com/northlight-forge/nlarc/vfs"
)

func newExportCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "export <archive> [raw-path]",
		Short: "Export one file, or every file, from a .rmdp/.rmdtoc archive to disk",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			archivePath := args[0]
			inst, err := loadInstance(instancesTOMLPath, instanceKey, archivePath)
			if err != nil {
				return err
			}

			logger := log.NewStdLogger(os.Stderr)
			admin := vfs.NewAdmin(inst, archivePath, logger, progressPrinter())
			tree, err := admin.Tree()
			if err != nil {
				return err
			}

			if all {
				for _, f := range tree.Files {
					if err := f.Export(); err != nil {
						return fmt.Errorf("nlarc: exporting %s: %w", f.PathRaw(), err)
					}
				}
				fmt.Printf("exported %d files to %s\n", len(tree.Files), admin.ExportRoot())
				return nil
			}

			if len(args) != 2 {
				return fmt.Errorf("nlarc: export requires a raw-path argument, or --all")
			}
			rawPath := args[1]
			target := findFileByRawPath(tree, rawPath)
			if target == nil {
				return fmt.Errorf("nlarc: no file at path %q", rawPath)
			}
			if err := target.Export(); err != nil {
				return err
			}
			p, err := target.ExportPath()
			if err != nil {
				return err
			}
			fmt.Println(p)
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "export every file in the archive instead of a single path")
	return cmd
}

// findFileByRawPath linear-scans the tree for a file whose raw path
// (no instance prefix) matches rawPath, case-sensitively, accepting
// either '/' or '\\' separators.
func findFileByRawPath(tree *vfs.TreeAdmin, rawPath string) *vfs.File {
	want := strings.ReplaceAll(rawPath, "\\", "/")
	for _, f := range tree.Files {
		if f.PathRaw() == want {
			return f
		}
	}
	return nil
}
