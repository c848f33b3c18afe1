package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/equ-0/cascade/internal/config"
)

var validateConfigPath string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load a configuration file and report whether it is valid",
	RunE:  runValidate,
}

func init() {
	validateCmd.Flags().StringVar(&validateConfigPath, "config", "", "path to the JSON configuration file (required)")
	validateCmd.MarkFlagRequired("config")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(validateConfigPath)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	fmt.Printf("ok: site %d, %d server sites, %d sender sites, window %d, max payload %d\n",
		cfg.LocalSiteID, len(cfg.ServerSites), len(cfg.SenderSites), cfg.WindowSize, cfg.MaxPayloadSize)
	return nil
}
