// Copyright 2024 The nlarc Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/northlight-forge/nlarc/bundle"
	"github.com/northlight-forge/nlarc/cid"
	"github.com/northlight-forge/nlarc/dpfile"
	"github.com/northlight-forge/nlarc/log"
)

// newDumpObjectCmd decodes one already-exported object file as one of
// the formats layered on top of the raw .bin payload (spec.md §4.8-4.10,
// §4.12): a CID bin, a dp_ file, an archive bin, or a string-table bin.
func newDumpObjectCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "dump-object <file>",
		Short: "Decode one exported object file and print it as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			name := filepath.Base(path)

			if format == "" {
				format = guessFormat(name)
			}

			var out any
			switch format {
			case "cid":
				r, err := cid.Open(name, data)
				if err != nil {
					return err
				}
				out = struct {
					Name        string `json:"name"`
					Version     uint32 `json:"version"`
					ContentType uint32 `json:"content_type"`
					NumElements uint32 `json:"num_elements"`
					Form        string `json:"form"`
				}{r.Name, r.Version, r.ContentType, r.NumElements, r.Form.String()}
			case "dpfile":
				f, err := dpfile.Parse(name, data, log.NewStdLogger(os.Stderr))
				if err != nil {
					return err
				}
				out = struct {
					Name      string `json:"name"`
					Variant   string `json:"variant"`
					DataSize  int64  `json:"data_size"`
					DataStart int64  `json:"data_start"`
				}{f.Name, f.Variant.String(), f.DataSize, f.DataStart}
			case "archive-bin":
				a, err := bundle.OpenArchiveBin(name, data)
				if err != nil {
					return err
				}
				out = a
			case "string-table":
				s, err := bundle.OpenStringTableBin(name, data)
				if err != nil {
					return err
				}
				out = s
			default:
				return fmt.Errorf("nlarc: unknown --format %q (want cid, dpfile, archive-bin, or string-table)", format)
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "\t")
			return enc.Encode(out)
		},
	}

	cmd.Flags().StringVar(&format, "format", "", "object format: cid, dpfile, archive-bin, string-table (guessed from the filename if omitted)")
	return cmd
}

// guessFormat applies the same filename conventions the archives
// themselves use: a "dp_" prefix marks a dpfile, "string_table.bin"
// marks a locale string table, and everything else is treated as a CID
// bin; an archive bin is never guessed and needs an explicit --format.
func guessFormat(name string) string {
	switch {
	case len(name) >= 3 && name[:3] == "dp_":
		return "dpfile"
	case name == "string_table.bin":
		return "string-table"
	default:
		return "cid"
	}
}
