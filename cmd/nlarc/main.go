// Copyright 2024 The nlarc Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Command nlarc explores and exports Northlight Remedy Package archives
// (.rmdp/.rmdtoc), in the shape of saferwall-pe's pedumper: a root
// command plus one subcommand per operation.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is the CLI's own release tag, independent of any archive's
// VersionMajor/VersionMinor.
const version = "0.1.0"

var (
	verbose           bool
	instancesTOMLPath string
	instanceKey       string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "nlarc",
		Short: "Explore and export Northlight Remedy Package archives",
		Long:  "nlarc reads .rmdp/.rmdtoc package archives and lets you walk, export, and inspect the objects packed inside them.",
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&instancesTOMLPath, "instances", "", "path to an instances.toml file")
	rootCmd.PersistentFlags().StringVar(&instanceKey, "instance", "", "instance key to select from --instances (defaults to the first entry)")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the nlarc version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("nlarc " + version)
		},
	}

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(newExploreCmd())
	rootCmd.AddCommand(newExportCmd())
	rootCmd.AddCommand(newDumpObjectCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
