package state

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/mt-inside/concon/pkg/fetch"
	"github.com/mt-inside/concon/pkg/resolve"
)

func withViper(t *testing.T, settings map[string]any) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	SetDefaults()
	for k, v := range settings {
		viper.Set(k, v)
	}
}

func TestRequestDataDefaults(t *testing.T) {
	withViper(t, nil)

	rqD, err := RequestDataFromViper()
	require.NoError(t, err)
	require.Equal(t, uint16(80), rqD.Port)
	require.Equal(t, ResolverSystem, rqD.Resolver)
	require.Equal(t, resolve.DefaultResolvConf, rqD.ResolvConf)
	require.Equal(t, fetch.DefaultBufferSize, rqD.BufferSize)
	require.Zero(t, rqD.ConnectTimeout, "connects block for as long as the dialer does, unless asked otherwise")
	require.Zero(t, rqD.Overrides.Len())
	require.False(t, rqD.DNSSEC)
}

func TestRequestDataFromSettings(t *testing.T) {
	withViper(t, map[string]any{
		"port":            8080,
		"resolver":        "dns",
		"resolve":         []string{"example.test=192.0.2.1"},
		"buffer-size":     16,
		"connect-timeout": "2s",
		"dnssec":          true,
	})

	rqD, err := RequestDataFromViper()
	require.NoError(t, err)
	require.Equal(t, uint16(8080), rqD.Port)
	require.Equal(t, ResolverDNS, rqD.Resolver)
	require.Equal(t, 16, rqD.BufferSize)
	require.Equal(t, 2*time.Second, rqD.ConnectTimeout)
	require.True(t, rqD.DNSSEC)

	addrs, ok := rqD.Overrides.Lookup("example.test")
	require.True(t, ok)
	require.Len(t, addrs, 1)
}

func TestRequestDataInvalid(t *testing.T) {
	for name, settings := range map[string]map[string]any{
		"port zero":     {"port": 0},
		"port too big":  {"port": 70000},
		"resolver":      {"resolver": "carrier-pigeon"},
		"bad overrides": {"resolve": []string{"example.test"}},
	} {
		t.Run(name, func(t *testing.T) {
			withViper(t, settings)
			_, err := RequestDataFromViper()
			require.Error(t, err)
		})
	}
}

func TestPrintOptsFromViper(t *testing.T) {
	withViper(t, map[string]any{"dns": true, "body-stats": true})

	require.Equal(t, PrintOpts{Dns: true, BodyStats: true}, PrintOptsFromViper())
}
