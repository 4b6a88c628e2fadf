package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/logrusorgru/aurora/v3"
	"github.com/mt-inside/go-usvc"
	"github.com/mt-inside/http-log/pkg/bios"
	"github.com/mt-inside/http-log/pkg/output"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mt-inside/concon/pkg/fetch"
	"github.com/mt-inside/concon/pkg/metrics"
	"github.com/mt-inside/concon/pkg/probes"
	"github.com/mt-inside/concon/pkg/resolve"
	"github.com/mt-inside/concon/pkg/state"
	"github.com/mt-inside/concon/pkg/utils"
)

func init() {
	spew.Config.DisableMethods = true
	spew.Config.DisablePointerMethods = true
}

func main() {

	cmd := &cobra.Command{
		Use:           "concon host[:port]...",
		Short:         "Race a connection to every address of each host, and GET / over the first to connect",
		Args:          cobra.MinimumNArgs(1),
		RunE:          appMain,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().Uint16P("port", "p", utils.DefaultPort, "Port to connect to, for targets that don't give one")
	cmd.Flags().StringP("resolver", "r", state.ResolverSystem, "Address resolver: system or dns")
	cmd.Flags().String("resolv-conf", resolve.DefaultResolvConf, "resolv.conf to read nameservers from, for --resolver=dns and --dnssec")
	cmd.Flags().StringSlice("resolve", nil, "Static addresses for a host, as host=addr[,addr...]; repeatable")
	cmd.Flags().Bool("dnssec", false, "Report whether each host's name validates with DNSSEC")
	cmd.Flags().Duration("connect-timeout", state.DefaultConnectTimeout, "Timeout for each connection attempt; 0 for none")
	cmd.Flags().Int("buffer-size", fetch.DefaultBufferSize, "Read buffer size; a read that doesn't fill it ends the response")
	cmd.Flags().BoolP("dns", "d", false, "Print DNS information")
	cmd.Flags().BoolP("transport", "t", false, "Print connection race information")
	cmd.Flags().BoolP("request", "q", false, "Print request information")
	cmd.Flags().BoolP("body-stats", "b", false, "Print response size and encoding information")
	cmd.Flags().Bool("no-color", false, "Don't colour output")
	cmd.Flags().CountP("verbose", "v", "Log verbosity; repeat for more")
	cmd.Flags().String("metrics-file", "", "Write Prometheus metrics to this file on exit")
	cmd.Flags().Bool("dump", false, "Dump each host's full probe state")
	err := viper.BindPFlags(cmd.Flags())
	if err != nil {
		panic(errors.New("can't set up flags"))
	}

	err = cmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("concon")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName("concon")
	viper.AddConfigPath(usvc.HomePath(".config/concon"))
	viper.AddConfigPath(".")
	state.SetDefaults()
}

func appMain(cmd *cobra.Command, args []string) error {
	initConfig()

	log := usvc.GetLogger(true, viper.GetInt("verbose"))
	s := output.NewTtyStyler(aurora.NewAurora(!viper.GetBool("no-color")))
	b := bios.NewTtyBios(s)

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			b.PrintErr(fmt.Sprintf("config file: %v", err))
			return err
		}
	} else {
		log.V(1).Info("Read config file", "path", viper.ConfigFileUsed())
	}

	requestData, err := state.RequestDataFromViper()
	if b.CheckPrintErr(err) {
		return err
	}
	printOpts := state.PrintOptsFromViper()

	m := metrics.New()
	prober, err := probes.NewProberFromRequestData(log, requestData, m)
	if b.CheckPrintErr(err) {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	err = prober.ProbeAll(ctx, args, func(rD *state.ResponseData) {
		if len(args) > 1 {
			fmt.Print(s.Banner(rD.RawTarget))
		}
		rD.Print(s, b, os.Stdout, printOpts)
		if viper.GetBool("dump") {
			spew.Dump(rD)
		}
	})

	if requestData.MetricsFile != "" {
		b.CheckPrintWarn(m.WriteTextfile(requestData.MetricsFile))
	}

	if err != nil {
		fmt.Println()
		b.PrintErr(fmt.Sprintf("%d of %d host(s) failed", len(unjoin(err)), len(args)))
	}
	return err
}

func unjoin(err error) []error {
	if u, ok := err.(interface{ Unwrap() []error }); ok {
		return u.Unwrap()
	}
	return []error{err}
}
