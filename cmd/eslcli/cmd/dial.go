package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/atomscat/softswitch-gateway/client"
	"github.com/atomscat/softswitch-gateway/codec"
	"github.com/atomscat/softswitch-gateway/internal/log"
	"github.com/atomscat/softswitch-gateway/internal/metrics"
	"github.com/atomscat/softswitch-gateway/listener"
	"github.com/atomscat/softswitch-gateway/options"
)

var eventFilter string

var dialCmd = &cobra.Command{
	Use:   "dial",
	Short: "Dial FreeSWITCH in inbound mode and print events",
	RunE:  runDial,
}

func init() {
	dialCmd.Flags().StringVar(&eventFilter, "events", "ALL", "event subscription filter")
	rootCmd.AddCommand(dialCmd)
}

type printingListener struct {
	listener.BaseListener
	log log.Logger
}

func (p *printingListener) HandleEslEvent(_ *listener.Context, ev *codec.Event) {
	fmt.Printf("event %s: %s\n", ev.Name, ev.MessageBody)
}

func (p *printingListener) HandleDisconnectNotice(remoteAddr string, _ *listener.Context) {
	p.log.Warn("disconnected", zap.String("remote_addr", remoteAddr))
}

func runDial(_ *cobra.Command, _ []string) error {
	logger, err := log.NewProduction()
	if err != nil {
		return err
	}

	opt := options.Default(host, port, password)
	opt.EventFilter = eventFilter

	c := client.New(&printingListener{log: logger}, logger, metrics.NewNop())
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := c.AddServer(ctx, opt); err != nil {
		return fmt.Errorf("eslcli: dial: %w", err)
	}
	fmt.Printf("connected to %s, subscribed to %q\n", opt.Addr(), opt.EventFilter)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	return nil
}
