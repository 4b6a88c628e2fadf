package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/logrusorgru/aurora/v3"
	"github.com/mt-inside/go-usvc"
	"github.com/mt-inside/http-log/pkg/bios"
	"github.com/mt-inside/http-log/pkg/output"
	dmp "github.com/sergi/go-diff/diffmatchpatch"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mt-inside/concon/pkg/fetch"
	"github.com/mt-inside/concon/pkg/metrics"
	"github.com/mt-inside/concon/pkg/probes"
	"github.com/mt-inside/concon/pkg/resolve"
	"github.com/mt-inside/concon/pkg/state"
	"github.com/mt-inside/concon/pkg/utils"
)

func main() {

	cmd := &cobra.Command{
		Use:           "reference-host[:port] new-host[:port]",
		Short:         "Fetch GET / from two hosts and show how the responses differ",
		Args:          cobra.ExactArgs(2),
		RunE:          appMain,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().Uint16P("port", "p", utils.DefaultPort, "Port to connect to, for targets that don't give one")
	cmd.Flags().StringP("resolver", "r", state.ResolverSystem, "Address resolver: system or dns")
	cmd.Flags().String("resolv-conf", resolve.DefaultResolvConf, "resolv.conf to read nameservers from, for --resolver=dns")
	cmd.Flags().StringSlice("resolve", nil, "Static addresses for a host, as host=addr[,addr...]; repeatable")
	cmd.Flags().Duration("connect-timeout", state.DefaultConnectTimeout, "Timeout for each connection attempt; 0 for none")
	cmd.Flags().Int("buffer-size", fetch.DefaultBufferSize, "Read buffer size; a read that doesn't fill it ends the response")
	cmd.Flags().BoolP("print-body", "b", false, "Print the new host's response")
	cmd.Flags().Bool("no-color", false, "Don't colour output")
	cmd.Flags().CountP("verbose", "v", "Log verbosity; repeat for more")
	err := viper.BindPFlags(cmd.Flags())
	if err != nil {
		panic(errors.New("can't set up flags"))
	}

	err = cmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func appMain(cmd *cobra.Command, args []string) error {
	state.SetDefaults()

	log := usvc.GetLogger(true, viper.GetInt("verbose"))
	s := output.NewTtyStyler(aurora.NewAurora(!viper.GetBool("no-color")))
	b := bios.NewTtyBios(s)

	requestData, err := state.RequestDataFromViper()
	if b.CheckPrintErr(err) {
		return err
	}
	prober, err := probes.NewProberFromRequestData(log, requestData, metrics.New())
	if b.CheckPrintErr(err) {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	refTarget, newTarget := args[0], args[1]
	fmt.Printf("Testing %v against reference %v\n", s.Addr(newTarget), s.Addr(refTarget))

	/* Check reference */

	fmt.Print(s.Banner("Reference host"))
	refData := prober.Probe(ctx, refTarget)
	refData.Print(s, b, os.Stdout, state.PrintOpts{Transport: true})
	if err := refData.Err(); err != nil {
		return err
	}

	/* Check new */

	fmt.Print(s.Banner("New host"))
	newData := prober.Probe(ctx, newTarget)
	newData.Print(s, b, os.Stdout, state.PrintOpts{Transport: true})
	if err := newData.Err(); err != nil {
		return err
	}

	/* Diff */

	fmt.Print(s.Banner("Differences"))

	if viper.GetBool("print-body") {
		fmt.Println("NEW response:")
		fmt.Println(newData.Response.Text)
	}

	if refData.Response.Skipped > 0 || newData.Response.Skipped > 0 {
		b.PrintWarn("one or more responses weren't valid utf-8; invalid bytes were dropped before diffing")
	}
	if !printDiff(b, os.Stdout, refData.Response.Text, newData.Response.Text) {
		return errors.New("responses differ")
	}

	return nil
}

// printDiff reports whether the texts are equal, printing the differences if not.
func printDiff(b bios.Bios, out io.Writer, ref, got string) bool {
	differ := dmp.New()
	diffs := differ.DiffMain(ref, got, true)

	if equal(diffs) {
		b.PrintInfo("responses equal")
		return true
	}

	b.PrintWarn("responses differ")
	fmt.Fprintln(out, differ.DiffPrettyText(differ.DiffCleanupSemantic(diffs)))
	return false
}

func equal(diffs []dmp.Diff) bool {
	for _, d := range diffs {
		if d.Type != dmp.DiffEqual {
			return false
		}
	}
	return true
}
