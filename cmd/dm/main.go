// Package main is the entry point for the dm-engine CLI
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "dm",
	Short: "AI Dungeon Master engine",
	Long:  `dm runs an interactive tabletop session: deterministic rules and world state, AI narration on top.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(playCmd)
}
