// Copyright (C) 2026 Ouroboros Labs, Inc.
// See LICENSE for copying information.

package cfgstruct

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func TestBind(t *testing.T) {
	var config struct {
		Name     string        `help:"a name" default:"ouroboros"`
		Enabled  bool          `help:"a toggle" default:"true"`
		Limit    int           `help:"a limit" default:"100"`
		Interval time.Duration `help:"an interval" releaseDefault:"1h" devDefault:"10s"`
		Nested   struct {
			MaxAge time.Duration `help:"nested value" default:"24h"`
		}
		Token string `help:"hidden value" internal:"true"`
	}

	flags := pflag.NewFlagSet("test", pflag.PanicOnError)
	Bind(flags, &config, UseReleaseDefaults())

	require.Equal(t, "ouroboros", config.Name)
	require.True(t, config.Enabled)
	require.Equal(t, 100, config.Limit)
	require.Equal(t, time.Hour, config.Interval)
	require.Equal(t, 24*time.Hour, config.Nested.MaxAge)

	nested := flags.Lookup("nested.max-age")
	require.NotNil(t, nested)
	require.Equal(t, "24h0m0s", nested.DefValue)

	hidden := flags.Lookup("token")
	require.NotNil(t, hidden)
	require.True(t, hidden.Hidden)
}

func TestBindDevDefaults(t *testing.T) {
	var config struct {
		Interval time.Duration `releaseDefault:"1h" devDefault:"10s"`
	}

	flags := pflag.NewFlagSet("test", pflag.PanicOnError)
	Bind(flags, &config, UseDevDefaults())

	require.Equal(t, 10*time.Second, config.Interval)
}

func TestBindConfDirExpansion(t *testing.T) {
	var config struct {
		Path string `default:"$CONFDIR/ouroboros.db"`
	}

	flags := pflag.NewFlagSet("test", pflag.PanicOnError)
	Bind(flags, &config, ConfDir("/tmp/testdir"))

	require.Equal(t, "/tmp/testdir/ouroboros.db", config.Path)
}

func TestHyphenate(t *testing.T) {
	for _, tt := range []struct {
		in   string
		want string
	}{
		{"Address", "address"},
		{"ListLimit", "list-limit"},
		{"DatabaseURL", "database-url"},
		{"APIKey", "api-key"},
		{"UseSSL", "use-ssl"},
	} {
		require.Equal(t, tt.want, hyphenate(tt.in), tt.in)
	}
}
