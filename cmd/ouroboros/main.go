// Copyright (C) 2026 Ouroboros Labs, Inc.
// See LICENSE for copying information.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"ouroboros.dev/ouroboros/control"
	"ouroboros.dev/ouroboros/control/controldb"
	"ouroboros.dev/ouroboros/internal/cfgstruct"
	"ouroboros.dev/ouroboros/internal/process"
)

// version is set at build time via -ldflags.
var version = "dev"

// Flags defines the control plane configuration.
type Flags struct {
	Database string `help:"postgres connection url for the control plane database" default:"postgres://localhost/ouroboros?sslmode=disable"`

	control.Config
}

// SetupFlags extends Flags with setup-only options.
type SetupFlags struct {
	Flags

	CreateSchema bool `default:"false" help:"create the database schema during setup"`
}

var (
	rootCmd = &cobra.Command{
		Use:   "ouroboros",
		Short: "Ouroboros password cracking control plane",
	}
	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the control plane",
		RunE:  cmdRun,
	}
	setupCmd = &cobra.Command{
		Use:         "setup",
		Short:       "Create config files",
		RunE:        cmdSetup,
		Annotations: map[string]string{"type": "setup"},
	}

	runCfg   Flags
	setupCfg SetupFlags

	confDir string
)

func init() {
	defaultConfDir := applicationDir()
	cfgstruct.SetupFlag(zap.L(), rootCmd, &confDir, "config-dir", defaultConfDir, "main directory for ouroboros configuration")
	defaults := cfgstruct.DefaultsFlag(rootCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(setupCmd)
	process.Bind(runCmd, &runCfg, defaults, cfgstruct.ConfDir(confDir))
	process.Bind(setupCmd, &setupCfg, defaults, cfgstruct.ConfDir(confDir), cfgstruct.SetupMode())
}

func applicationDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ouroboros"
	}
	return filepath.Join(home, ".ouroboros")
}

func cmdRun(cmd *cobra.Command, args []string) (err error) {
	ctx := process.Ctx(cmd)
	log := zap.L()

	db, err := controldb.Open(ctx, log.Named("db"), runCfg.Database)
	if err != nil {
		return errs.New("error connecting to the database: %+v", err)
	}
	defer func() { err = errs.Combine(err, db.Close()) }()

	peer, err := control.New(log, db, runCfg.Config, version)
	if err != nil {
		return err
	}

	runError := peer.Run(ctx)
	closeError := peer.Close()
	return errs.Combine(runError, closeError)
}

func cmdSetup(cmd *cobra.Command, args []string) (err error) {
	setupDir := os.ExpandEnv(confDir)
	if err := os.MkdirAll(setupDir, 0700); err != nil {
		return err
	}

	configFile := filepath.Join(setupDir, process.DefaultCfgFilename)
	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("configuration already exists (%v)", configFile)
	}

	if setupCfg.CreateSchema {
		ctx := process.Ctx(cmd)
		db, err := controldb.Open(ctx, zap.L().Named("db"), setupCfg.Database)
		if err != nil {
			return errs.New("error connecting to the database: %+v", err)
		}
		defer func() { err = errs.Combine(err, db.Close()) }()

		if err := db.CreateSchema(ctx); err != nil {
			return errs.New("error creating the database schema: %+v", err)
		}
	}

	return process.SaveConfig(cmd.Flags(), configFile)
}

func main() {
	process.Exec(rootCmd)
}
