package state

import (
	"fmt"
	"math"
	"time"

	"github.com/spf13/viper"

	"github.com/mt-inside/concon/pkg/fetch"
	"github.com/mt-inside/concon/pkg/resolve"
	"github.com/mt-inside/concon/pkg/utils"
)

const (
	ResolverSystem = "system"
	ResolverDNS    = "dns"
)

// No timeout: a connect that blocks forever blocks its worker forever.
const DefaultConnectTimeout time.Duration = 0

// RequestData is everything that's the same for every target.
type RequestData struct {
	Port uint16

	Resolver   string
	ResolvConf string
	Overrides  *resolve.Static
	DNSSEC     bool

	ConnectTimeout time.Duration
	BufferSize     int

	MetricsFile string
}

func RequestDataFromViper() (*RequestData, error) {
	port := viper.GetUint("port")
	if port == 0 || port > math.MaxUint16 {
		return nil, fmt.Errorf("invalid port %d", port)
	}

	requestData := &RequestData{
		Port:           uint16(port),
		Resolver:       viper.GetString("resolver"),
		ResolvConf:     viper.GetString("resolv-conf"),
		DNSSEC:         viper.GetBool("dnssec"),
		ConnectTimeout: viper.GetDuration("connect-timeout"),
		BufferSize:     viper.GetInt("buffer-size"),
		MetricsFile:    viper.GetString("metrics-file"),
	}

	switch requestData.Resolver {
	case ResolverSystem, ResolverDNS:
	case "":
		requestData.Resolver = ResolverSystem
	default:
		return nil, fmt.Errorf("unknown resolver %q (want %s or %s)", requestData.Resolver, ResolverSystem, ResolverDNS)
	}

	if requestData.ResolvConf == "" {
		requestData.ResolvConf = resolve.DefaultResolvConf
	}

	if requestData.BufferSize <= 0 {
		requestData.BufferSize = fetch.DefaultBufferSize
	}

	overrides, err := resolve.ParseOverrides(viper.GetStringSlice("resolve"))
	if err != nil {
		return nil, err
	}
	requestData.Overrides = overrides

	return requestData, nil
}

// SetDefaults registers the defaults that don't come from a flag, eg when driven purely from
// a config file.
func SetDefaults() {
	viper.SetDefault("port", utils.DefaultPort)
	viper.SetDefault("resolver", ResolverSystem)
	viper.SetDefault("resolv-conf", resolve.DefaultResolvConf)
	viper.SetDefault("buffer-size", fetch.DefaultBufferSize)
	viper.SetDefault("connect-timeout", DefaultConnectTimeout)
}
