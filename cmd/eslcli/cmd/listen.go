package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/atomscat/softswitch-gateway/codec"
	"github.com/atomscat/softswitch-gateway/connection"
	"github.com/atomscat/softswitch-gateway/internal/log"
	"github.com/atomscat/softswitch-gateway/internal/metrics"
	"github.com/atomscat/softswitch-gateway/listener"
	"github.com/atomscat/softswitch-gateway/options"
)

var listenAddr string

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Accept FreeSWITCH outbound-mode connections and print their initial channel data",
	RunE:  runListen,
}

func init() {
	listenCmd.Flags().StringVar(&listenAddr, "addr", "127.0.0.1:8084", "address to accept outbound sockets on")
	rootCmd.AddCommand(listenCmd)
}

type outboundPrintingListener struct {
	listener.BaseListener
}

func (outboundPrintingListener) OnConnect(ctx *listener.Context, ev *codec.Event) {
	fmt.Printf("outbound connect from %s: %s\n", ctx.RemoteAddr(), ev.Get("Channel-Call-UUID"))
}

func (outboundPrintingListener) HandleEslEvent(_ *listener.Context, ev *codec.Event) {
	fmt.Printf("event %s: %s\n", ev.Name, ev.MessageBody)
}

func runListen(_ *cobra.Command, _ []string) error {
	logger, err := log.NewProduction()
	if err != nil {
		return err
	}

	opt := options.Default("", 0, "")
	opt.EventFilter = "ALL"

	srv, err := connection.ListenOutbound(listenAddr, outboundPrintingListener{}, opt, logger, metrics.NewNop())
	if err != nil {
		return fmt.Errorf("eslcli: listen: %w", err)
	}
	fmt.Printf("listening for outbound connections on %s\n", srv.Addr())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		cancel()
	}()

	return srv.Serve(ctx)
}
