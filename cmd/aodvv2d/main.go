// Command aodvv2d runs a route message server bound to one network
// interface. It loads an optional TOML configuration, answers inbound route
// requests and replies with a logged callback, and shuts down cleanly on
// SIGINT or SIGTERM.
package main

import (
	"flag"
	"net/netip"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/aodvv2"
	"github.com/opd-ai/aodvv2/rfc5444"
	"github.com/opd-ai/aodvv2/transport"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML configuration file")
	ifName := flag.String("interface", "", "network interface to bind (required)")
	logLevel := flag.String("log-level", "info", "logrus level: trace, debug, info, warn, error")
	find := flag.String("find", "", "optional IPv6 address to discover a route to on startup")
	flag.Parse()

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		logrus.WithField("level", *logLevel).Fatal("Unknown log level")
	}
	logrus.SetLevel(level)
	logrus.SetOutput(os.Stdout)

	if *ifName == "" {
		logrus.Fatal("An interface must be named with -interface")
	}

	cfg := aodvv2.DefaultConfig()
	if *configPath != "" {
		cfg, err = aodvv2.LoadConfig(*configPath)
		if err != nil {
			logrus.WithError(err).Fatal("Couldn't load configuration")
		}
	}

	ifc, err := aodvv2.InterfaceByName(*ifName)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"interface": *ifName,
			"error":     err.Error(),
		}).Fatal("Couldn't resolve network interface")
	}

	dispatcher, err := transport.NewUDPDispatcher(cfg.Port, transport.NewHeapAllocator())
	if err != nil {
		logrus.WithError(err).Fatal("Couldn't open UDP transport")
	}
	defer func() { _ = dispatcher.Close() }()

	server, err := aodvv2.NewServer(cfg, dispatcher)
	if err != nil {
		logrus.WithError(err).Fatal("Couldn't create server")
	}

	server.OnRouteMessage(func(t rfc5444.MsgType, pkt *aodvv2.PacketData) {
		logrus.WithFields(logrus.Fields{
			"type":        t,
			"sender":      pkt.Sender.String(),
			"orig":        pkt.OrigNode.Addr.String(),
			"orig_seqnum": pkt.OrigNode.Seqnum,
			"targ":        pkt.TargNode.Addr.String(),
			"hop_limit":   pkt.HopLimit,
		}).Info("Route message received")
	})

	worker, err := server.Init(ifc)
	if err != nil {
		logrus.WithError(err).Fatal("Couldn't initialize server")
	}
	logrus.WithFields(logrus.Fields{
		"interface": ifc.Name(),
		"address":   server.LocalAddr().String(),
		"port":      cfg.Port,
		"worker":    worker.ID(),
	}).Info("aodvv2d running")

	if *find != "" {
		target, err := netip.ParseAddr(*find)
		if err != nil {
			logrus.WithField("target", *find).Fatal("Invalid discovery target")
		}
		if err := server.FindRoute(target); err != nil {
			logrus.WithError(err).Error("Route discovery failed")
		}
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigs

	logrus.WithField("signal", sig.String()).Info("Shutting down")
	if err := server.Close(); err != nil {
		logrus.WithError(err).Error("Server shutdown failed")
	}
}
