// Copyright (C) 2026 Ouroboros Labs, Inc.
// See LICENSE for copying information.

// Package process provides uniform command line flags, configuration loading,
// logging and context management for the ouroboros binaries.
package process

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"ouroboros.dev/ouroboros/internal/cfgstruct"
)

// DefaultCfgFilename is the default filename used for storing a configuration.
const DefaultCfgFilename = "config.yaml"

var (
	commandMtx sync.Mutex
	contexts   = map[*cobra.Command]context.Context{}
)

// Bind sets flags on a command that match the configuration struct 'config'
// so that the struct has all of its values loaded when the command runs.
func Bind(cmd *cobra.Command, config interface{}, opts ...cfgstruct.BindOpt) {
	cfgstruct.Bind(cmd.Flags(), config, opts...)
}

// Exec runs a Cobra command. Before a command runs it loads the config.yaml
// from the config-dir flag when present, applies environment overrides, and
// replaces the global loggers.
func Exec(cmd *cobra.Command) {
	cmd.PersistentFlags().AddGoFlagSet(flag.CommandLine)

	cleanup(cmd)
	if cmd.Execute() != nil {
		os.Exit(1)
	}
}

// Ctx returns the appropriate context.Context for the command, canceled when
// the process receives SIGINT or SIGTERM.
func Ctx(cmd *cobra.Command) context.Context {
	commandMtx.Lock()
	defer commandMtx.Unlock()

	ctx := contexts[cmd]
	if ctx == nil {
		ctx = context.Background()
		contexts[cmd] = ctx
	}
	return ctx
}

// cleanup wraps all the commands' RunE methods with the config loading logic.
func cleanup(cmd *cobra.Command) {
	for _, ccmd := range cmd.Commands() {
		cleanup(ccmd)
	}
	if cmd.Run != nil {
		panic("Please use cobra's RunE instead of Run")
	}
	internalRun := cmd.RunE
	if internalRun == nil {
		return
	}

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		vip := viper.New()
		if err := vip.BindPFlags(cmd.Flags()); err != nil {
			return err
		}
		vip.SetEnvPrefix("ouroboros")
		vip.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
		vip.AutomaticEnv()

		if cfgFlag := cmd.Flags().Lookup("config-dir"); cfgFlag != nil && cfgFlag.Value.String() != "" {
			path := filepath.Join(os.ExpandEnv(cfgFlag.Value.String()), DefaultCfgFilename)
			if cmd.Annotations["type"] != "setup" && fileExists(path) {
				vip.SetConfigFile(path)
				if err := vip.ReadInConfig(); err != nil {
					return err
				}
			}
		}

		// Apply the viper values onto all the flags that were not set
		// explicitly on the command line.
		cmd.Flags().VisitAll(func(f *pflag.Flag) {
			if f.Changed || !vip.IsSet(f.Name) {
				return
			}
			if err := f.Value.Set(viperToString(vip.Get(f.Name))); err != nil {
				fmt.Fprintf(os.Stderr, "Invalid configuration value for %s: %v\n", f.Name, err)
			}
		})

		logger, err := NewLogger()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		zap.ReplaceGlobals(logger)
		zap.RedirectStdLog(logger)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		commandMtx.Lock()
		contexts[cmd] = ctx
		commandMtx.Unlock()

		signals := make(chan os.Signal, 1)
		signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(signals)
		go func() {
			select {
			case sig := <-signals:
				logger.Info("Got a signal from the OS", zap.Stringer("signal", sig))
				cancel()
			case <-ctx.Done():
			}
		}()

		workErr := internalRun(cmd, args)
		if workErr != nil {
			logger.Debug("Unrecoverable error", zap.Error(workErr))
			fmt.Println("Error:", workErr.Error())
			_ = logger.Sync()
			os.Exit(1)
		}
		return nil
	}
}

// SaveConfig saves the flags' values to the given file as YAML.
func SaveConfig(flags *pflag.FlagSet, outfile string) error {
	var lines []string
	flags.VisitAll(func(f *pflag.Flag) {
		switch f.Name {
		case "config-dir", "defaults", "help":
			return
		}
		if f.Usage != "" {
			lines = append(lines, "# "+f.Usage)
		}
		lines = append(lines, fmt.Sprintf("%s: %q", f.Name, f.Value.String()), "")
	})

	return Error.Wrap(os.WriteFile(outfile, []byte(strings.Join(lines, "\n")), 0600))
}

func viperToString(value interface{}) string {
	switch v := value.(type) {
	case []interface{}:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, fmt.Sprint(item))
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(v)
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}
