// Command lccnode runs one OpenLCB/LCC node: it arbitrates an alias,
// dispatches inbound/outbound messages over a configured CAN transport,
// and exposes a read-mostly monitor. Wiring follows the teacher's
// cmd/edgeflow/main.go shape — config, then collaborators, then the
// long-running servers — narrowed to this node's fixed component set.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/edgeflow/lccstack/internal/aliasmap"
	"github.com/edgeflow/lccstack/internal/arbiter"
	"github.com/edgeflow/lccstack/internal/builder"
	"github.com/edgeflow/lccstack/internal/config"
	"github.com/edgeflow/lccstack/internal/executor"
	"github.com/edgeflow/lccstack/internal/housekeeping"
	"github.com/edgeflow/lccstack/internal/iface"
	"github.com/edgeflow/lccstack/internal/lccmsg"
	"github.com/edgeflow/lccstack/internal/logger"
	"github.com/edgeflow/lccstack/internal/monitor"
	"github.com/edgeflow/lccstack/internal/nodeid"
	"github.com/edgeflow/lccstack/internal/snip"
	"github.com/edgeflow/lccstack/internal/telemetry"
	"github.com/edgeflow/lccstack/internal/transport/frameio"
	"github.com/edgeflow/lccstack/internal/transport/gridconnect"
	"github.com/edgeflow/lccstack/internal/transport/spican"
)

var Version = "0.1.0"

func main() {
	configPath := os.Getenv("LCC_CONFIG_FILE")
	loader, cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "lccnode: config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		FilePath:   cfg.Logger.FilePath,
		MaxSizeMB:  cfg.Logger.MaxSizeMB,
		MaxBackups: cfg.Logger.MaxBackups,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "lccnode: logger: %v\n", err)
		os.Exit(1)
	}
	log := logger.Get()
	defer logger.Sync()

	log.Info("lccnode starting", zap.String("version", Version))

	localNID, err := cfg.Node.ParsedNodeID()
	if err != nil {
		log.Fatal("invalid node.node_id", zap.Error(err))
	}

	sink, err := openTransport(log, cfg.Transport)
	if err != nil {
		log.Fatal("failed to open CAN transport", zap.Error(err))
	}
	defer sink.Close()

	counters := telemetry.New()
	countingSink := frameio.NewCountingSink(sink, counters)

	aliases := aliasmap.New(log)
	msgs := builder.New(log, aliases)

	var exec executor.Executor
	if cfg.Executor.Kind == "inline" {
		exec = executor.NewInline()
	} else {
		exec = executor.NewPool()
	}

	var iv *iface.Interface
	arb := arbiter.New(log, localNID, countingSink, func(alias nodeid.Alias) {
		aliases.Insert(alias, localNID)
		log.Info("alias arbitration complete", zap.Stringer("alias", alias))
		if iv != nil {
			_ = iv.OutputConnection(lccmsg.NewInitializationComplete(localNID))
		}
	}, func() {
		log.Warn("alias collision, restarting arbitration")
		counters.IncArbitrationRestarts()
	})

	iv = iface.New(iface.Config{
		Log:      log,
		LocalNID: localNID,
		AliasMap: aliases,
		Builder:  msgs,
		Arbiter:  arb,
		Sink:     countingSink,
		Executor: exec,
		SNIP: snip.Info{
			Manufacturer:    cfg.Node.Manufacturer,
			Model:           cfg.Node.Model,
			HardwareVersion: cfg.Node.HardwareVersion,
			SoftwareVersion: cfg.Node.SoftwareVersion,
		},
		OnDatagramTimeout: func(dest nodeid.NodeID) {
			log.Warn("datagram acknowledgement timed out", zap.Stringer("dest", dest))
			counters.IncDatagramTimeouts()
		},
	})

	mon := monitor.New(monitor.Config{
		Log:      log,
		AliasMap: aliases,
		Arbiter:  arb,
		Counters: counters,
		JWT:      monitor.JWTConfig{SecretKey: cfg.Monitor.JWTSecret},
		BindAddr: cfg.Monitor.BindAddr,
	})
	logger.SetBroadcaster(mon.TapLog)

	iv.RegisterHandler(func(lccmsg.Message) bool { return true }, func(msg lccmsg.Message) {
		counters.IncMessagesDispatched()
		mon.TapMessage(msg)
	})

	hk := housekeeping.New(log)
	if err := hk.AddJob("verify-node-id", "@every 5m", func() error {
		return iv.OutputConnection(lccmsg.NewVerifyNodeIDGlobal(localNID, nodeid.Zero))
	}); err != nil {
		log.Fatal("failed to schedule re-announcement job", zap.Error(err))
	}

	var pusher *telemetry.InfluxPusher
	if cfg.Telemetry.InfluxURL != "" {
		pusher = telemetry.NewInfluxPusher(log, localNID.String(), telemetry.InfluxConfig{
			URL:    cfg.Telemetry.InfluxURL,
			Token:  cfg.Telemetry.InfluxToken,
			Org:    cfg.Telemetry.InfluxOrg,
			Bucket: cfg.Telemetry.InfluxBucket,
		})
		defer pusher.Close()

		if err := hk.AddJob("telemetry-flush", cfg.Telemetry.FlushEvery, func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return pusher.Push(ctx, counters.Snapshot())
		}); err != nil {
			log.Fatal("failed to schedule telemetry flush job", zap.Error(err))
		}
	}
	hk.Start()
	defer hk.Stop()

	loader.OnChange(func(newCfg config.NodeProfile) {
		log.Info("config reloaded; changed settings are not applied to the running node",
			zap.String("executor_kind", newCfg.Executor.Kind))
	})
	loader.WatchAndReload()

	go readLoop(log, countingSink, iv, exec)

	if err := arb.Start(); err != nil {
		log.Fatal("failed to start alias arbitration", zap.Error(err))
	}

	go func() {
		log.Info("monitor listening", zap.String("addr", cfg.Monitor.BindAddr))
		if err := mon.Start(); err != nil {
			log.Error("monitor server stopped", zap.Error(err))
		}
	}()

	waitForShutdown(log, mon, iv)
}

func openTransport(log *zap.Logger, cfg config.TransportConfig) (frameio.Sink, error) {
	switch cfg.Kind {
	case "spican":
		return spican.Open(log, spican.Config{
			SPIBus:  cfg.SPIBus,
			IntPin:  cfg.IntPin,
			Bitrate: cfg.Bitrate,
			Crystal: cfg.Crystal,
		})
	default:
		return gridconnect.Open(log, gridconnect.DefaultConfig(cfg.SerialPort, cfg.BaudRate))
	}
}

// readLoop pulls decoded frames off the transport on its own goroutine
// and schedules each one, in arrival order, onto the executor, so that
// HandleInboundFrame runs on the same single logical owning thread the
// executor also serializes outbound work onto.
func readLoop(log *zap.Logger, sink frameio.Sink, iv *iface.Interface, exec executor.Executor) {
	for {
		f, err := sink.Receive()
		if err != nil {
			if err == frameio.ErrClosed {
				return
			}
			log.Warn("transport receive error", zap.Error(err))
			continue
		}
		if err := exec.Schedule(func() {
			if err := iv.HandleInboundFrame(f); err != nil {
				log.Warn("failed to handle inbound frame", zap.Error(err))
			}
		}); err != nil {
			log.Warn("failed to schedule inbound frame", zap.Error(err))
		}
	}
}

func waitForShutdown(log *zap.Logger, mon *monitor.Server, iv *iface.Interface) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := mon.Shutdown(ctx); err != nil {
		log.Warn("monitor shutdown error", zap.Error(err))
	}
	if err := iv.Dispose(); err != nil {
		log.Warn("interface dispose error", zap.Error(err))
	}
}
