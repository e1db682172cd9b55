// Copyright (C) 2026 Ouroboros Labs, Inc.
// See LICENSE for copying information.

// Package cfgstruct binds tagged configuration structs to command line flags.
package cfgstruct

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

type bindOptions struct {
	vars    map[string]string
	isDev   bool
	isSetup bool
}

// BindOpt is an option for the Bind method.
type BindOpt func(*bindOptions)

// ConfDir sets a variable for default options called $CONFDIR.
func ConfDir(path string) BindOpt {
	val := filepath.Clean(os.ExpandEnv(path))
	return func(options *bindOptions) {
		options.vars["CONFDIR"] = val
	}
}

// UseDevDefaults forces the bind to use development defaults unless
// the default is overridden by a devDefault struct tag.
func UseDevDefaults() BindOpt {
	return func(options *bindOptions) {
		options.isDev = true
	}
}

// UseReleaseDefaults forces the bind to use release defaults unless
// the default is overridden by a releaseDefault struct tag.
func UseReleaseDefaults() BindOpt {
	return func(options *bindOptions) {
		options.isDev = false
	}
}

// SetupMode registers flags that are only relevant during setup.
func SetupMode() BindOpt {
	return func(options *bindOptions) {
		options.isSetup = true
	}
}

// DefaultsType returns the type of defaults (dev/release) this binary should use.
func DefaultsType() string {
	defaults := strings.ToLower(FindFlagEarly("defaults"))
	if defaults != "" {
		return defaults
	}
	return "release"
}

// DefaultsFlag sets up the defaults=dev/release flag options, which is needed
// before `flag.Parse` has been called.
func DefaultsFlag(cmd *cobra.Command) BindOpt {
	defaults := DefaultsType()

	// define the flag so that the flag parsing system will be happy,
	// the value has already been determined from os.Args.
	_ = cmd.PersistentFlags().String("defaults", defaults,
		"determines which set of configuration defaults to use. can either be 'dev' or 'release'")

	switch defaults {
	case "dev":
		return UseDevDefaults()
	case "release":
		return UseReleaseDefaults()
	default:
		panic(fmt.Sprintf("unsupported defaults value %q", defaults))
	}
}

// SetupFlag sets up flags that are needed before `flag.Parse` has been called.
func SetupFlag(log *zap.Logger, cmd *cobra.Command, value *string, name, vip, usage string) {
	if cmd.PersistentFlags().Lookup(name) == nil {
		cmd.PersistentFlags().StringVar(value, name, vip, usage)
	}
	if found := FindFlagEarly(name); found != "" {
		if err := cmd.PersistentFlags().Set(name, found); err != nil {
			log.Error("failed to set flag provided on command line",
				zap.String("flag", name), zap.Error(err))
		}
	}
}

// FindFlagEarly retrieves the value of a flag before `flag.Parse` has been called.
func FindFlagEarly(name string) string {
	for i, arg := range os.Args {
		if strings.HasPrefix(arg, "--"+name+"=") {
			return strings.TrimPrefix(arg, "--"+name+"=")
		}
		if arg == "--"+name && i+1 < len(os.Args) {
			return os.Args[i+1]
		}
	}
	return ""
}

// Bind sets flags on a FlagSet that match the configuration struct 'config'.
// This works by traversing the config struct using the 'reflect' package.
func Bind(flags *pflag.FlagSet, config interface{}, opts ...BindOpt) {
	ptr := reflect.ValueOf(config)
	if ptr.Kind() != reflect.Ptr {
		panic(fmt.Sprintf("invalid config type: %#v, expecting pointer to struct", config))
	}
	options := bindOptions{vars: map[string]string{}}
	for _, opt := range opts {
		opt(&options)
	}
	bindConfig(flags, "", ptr.Elem(), &options)
}

func bindConfig(flags *pflag.FlagSet, prefix string, val reflect.Value, options *bindOptions) {
	if val.Kind() != reflect.Struct {
		panic(fmt.Sprintf("invalid config type: %s, expecting struct", val.Type()))
	}

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := val.Type().Field(i)
		if fieldType.PkgPath != "" {
			continue
		}

		if field.Kind() == reflect.Struct && field.Addr().Type() != reflect.TypeOf(&time.Time{}) {
			if fieldType.Anonymous {
				bindConfig(flags, prefix, field, options)
			} else {
				bindConfig(flags, prefix+hyphenate(fieldType.Name)+".", field, options)
			}
			continue
		}

		flagname := prefix + hyphenate(fieldType.Name)
		help := fieldType.Tag.Get("help")

		def := fieldType.Tag.Get("default")
		if options.isDev {
			if v, ok := fieldType.Tag.Lookup("devDefault"); ok {
				def = v
			}
		} else {
			if v, ok := fieldType.Tag.Lookup("releaseDefault"); ok {
				def = v
			}
		}
		def = expand(def, options.vars)

		if fieldType.Tag.Get("setup") == "true" && !options.isSetup {
			continue
		}

		switch value := field.Addr().Interface().(type) {
		case *string:
			flags.StringVar(value, flagname, def, help)
		case *bool:
			flags.BoolVar(value, flagname, parseBool(flagname, def), help)
		case *int:
			flags.IntVar(value, flagname, int(parseInt(flagname, def)), help)
		case *int64:
			flags.Int64Var(value, flagname, parseInt(flagname, def), help)
		case *uint:
			flags.UintVar(value, flagname, uint(parseUint(flagname, def)), help)
		case *uint64:
			flags.Uint64Var(value, flagname, parseUint(flagname, def), help)
		case *float64:
			flags.Float64Var(value, flagname, parseFloat(flagname, def), help)
		case *time.Duration:
			flags.DurationVar(value, flagname, parseDuration(flagname, def), help)
		case *[]string:
			flags.StringSliceVar(value, flagname, parseSlice(def), help)
		default:
			panic(fmt.Sprintf("invalid field type %s for flag %s", field.Type(), flagname))
		}

		if fieldType.Tag.Get("internal") == "true" {
			if err := flags.MarkHidden(flagname); err != nil {
				panic(err)
			}
		}
	}
}

// hyphenate converts a camel cased field name into a kebab cased flag name.
func hyphenate(name string) string {
	runes := []rune(name)
	var out []rune
	for i, r := range runes {
		if unicode.IsUpper(r) && i > 0 &&
			(unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
			out = append(out, '-')
		}
		out = append(out, unicode.ToLower(r))
	}
	return string(out)
}

func expand(s string, vars map[string]string) string {
	for name, val := range vars {
		s = strings.ReplaceAll(s, "$"+name, val)
	}
	return s
}

func parseBool(flagname, s string) bool {
	if s == "" {
		return false
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		panic(fmt.Sprintf("invalid bool default for %s: %q", flagname, s))
	}
	return v
}

func parseInt(flagname, s string) int64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		panic(fmt.Sprintf("invalid int default for %s: %q", flagname, s))
	}
	return v
}

func parseUint(flagname, s string) uint64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		panic(fmt.Sprintf("invalid uint default for %s: %q", flagname, s))
	}
	return v
}

func parseFloat(flagname, s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		panic(fmt.Sprintf("invalid float default for %s: %q", flagname, s))
	}
	return v
}

func parseDuration(flagname, s string) time.Duration {
	if s == "" {
		return 0
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		panic(fmt.Sprintf("invalid duration default for %s: %q", flagname, s))
	}
	return v
}

func parseSlice(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
