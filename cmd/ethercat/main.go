// Command ethercat is a minimal example MainDevice: it opens a raw
// Ethernet link on the named interface, discovers the ring, brings every
// device up to OPERATIONAL as a single group and then cycles process
// data until interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ethercat-go/ethercat"
	"github.com/ethercat-go/ethercat/pkg/config"
	"github.com/ethercat-go/ethercat/pkg/link/rawsocket"
	"github.com/ethercat-go/ethercat/pkg/wire"
)

const (
	defaultInterface = "eth0"
	defaultCycle     = time.Millisecond
	frameSlots       = 32
	maxPduData       = 1486
)

func main() {
	log.SetLevel(log.DebugLevel)
	iface := flag.String("i", defaultInterface, "network interface to bind, e.g. eth0")
	cyclePeriod := flag.Duration("cycle", defaultCycle, "process data exchange period")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	link, err := rawsocket.Open(*iface)
	if err != nil {
		fmt.Printf("could not open interface %v: %v\n", *iface, err)
		os.Exit(1)
	}
	link.WithLogger(logger)
	defer link.Close()

	md, err := ethercat.New(link, frameSlots, maxPduData, config.DefaultConfig())
	if err != nil {
		fmt.Printf("failed to start MainDevice: %v\n", err)
		os.Exit(1)
	}
	md.WithLogger(logger)
	defer md.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	devices, err := md.Discover(ctx)
	if err != nil {
		fmt.Printf("discovery failed: %v\n", err)
		os.Exit(1)
	}
	logger.Info("discovered devices", "count", len(devices))

	if err := md.InitDC(ctx, devices); err != nil {
		fmt.Printf("DC initialisation failed: %v\n", err)
		os.Exit(1)
	}

	groups, err := md.InitGroups(ctx, devices, ethercat.SingleGroup)
	if err != nil {
		fmt.Printf("group initialisation failed: %v\n", err)
		os.Exit(1)
	}

	for _, g := range groups {
		if err := g.TransitionTo(ctx, md, wire.AlStateOp); err != nil {
			fmt.Printf("group %v failed to reach OPERATIONAL: %v\n", g, err)
			os.Exit(1)
		}
	}
	logger.Info("all groups operational, starting cyclic exchange", "period", *cyclePeriod)

	ticker := time.NewTicker(*cyclePeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return
		case <-ticker.C:
			for _, g := range groups {
				// Application code reading/writing each group's process
				// image via g.Reader/g.Writer belongs here.
				if _, err := g.TxRx(ctx, md); err != nil {
					logger.Warn("cyclic exchange failed", "error", err)
				}
			}
		}
	}
}
