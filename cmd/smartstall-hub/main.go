// Command smartstall-hub polls SmartStall occupancy sensors over Bluetooth LE
// and forwards their snapshots to an MQTT or NATS broker.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/sweeney/smartstall-hub/internal/ble"
	"github.com/sweeney/smartstall-hub/internal/config"
	"github.com/sweeney/smartstall-hub/internal/gpio"
	"github.com/sweeney/smartstall-hub/internal/hub"
	"github.com/sweeney/smartstall-hub/internal/logger"
	"github.com/sweeney/smartstall-hub/internal/logic"
	"github.com/sweeney/smartstall-hub/internal/mqtt"
	"github.com/sweeney/smartstall-hub/internal/nats"
	"github.com/sweeney/smartstall-hub/internal/status"
	"github.com/sweeney/smartstall-hub/internal/web"
)

// options holds the flags that are not part of the configuration file.
type options struct {
	configPath  string
	printConfig bool
	wsBroker    string
}

func main() {
	cfg, opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		logger.Fatal().Err(err).Msg("invalid arguments")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	if opts.printConfig {
		out, err := cfg.YAML()
		if err != nil {
			logger.Fatal().Err(err).Msg("render configuration")
		}
		os.Stdout.Write(out)
		return
	}

	if err := logger.Init(cfg.Logging); err != nil {
		logger.Fatal().Err(err).Msg("init logging")
	}

	ws := ""
	if cfg.Sink.Kind == config.SinkMQTT {
		ws = resolveWSBroker(opts.wsBroker, cfg.Sink.URL)
	}
	if err := run(cfg, ws); err != nil {
		logger.Fatal().Err(err).Msg("fatal")
	}
}

// parseFlags loads the configuration named by --config and applies every
// flag that was set explicitly on top of it.
func parseFlags(args []string) (*config.Config, options, error) {
	def := config.Default()
	var opts options

	fs := flag.NewFlagSet("smartstall-hub", flag.ContinueOnError)
	fs.StringVar(&opts.configPath, "config", "", "YAML configuration file (optional)")
	fs.BoolVar(&opts.printConfig, "print-config", false, "Print the effective configuration and exit")
	fs.StringVar(&opts.wsBroker, "ws-broker", "=broker", `MQTT websocket URL for live UI ("=broker" derives from --broker, "off" disables)`)
	broker := fs.String("broker", def.Sink.URL, "Broker URL (env "+config.EnvBroker+")")
	sink := fs.String("sink", def.Sink.Kind, "Snapshot sink: mqtt or nats")
	httpAddr := fs.String("http", def.HTTP.Addr, "HTTP status address (empty to disable)")
	tick := fs.Duration("tick", def.Polling.Tick, "Control loop tick interval")
	heartbeat := fs.Duration("heartbeat", def.Sink.Heartbeat, "Heartbeat interval (0 to disable)")
	ledPin := fs.Int("led-pin", -1, "BCM pin number of the activity LED (-1 to disable)")
	logLevel := fs.String("log-level", def.Logging.Level, "Log level: debug, info, warn, error")

	if err := fs.Parse(args); err != nil {
		return nil, opts, err
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, opts, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "broker":
			cfg.Sink.URL = *broker
		case "sink":
			cfg.Sink.Kind = *sink
		case "http":
			cfg.HTTP.Addr = *httpAddr
		case "tick":
			cfg.Polling.Tick = *tick
		case "heartbeat":
			cfg.Sink.Heartbeat = *heartbeat
		case "led-pin":
			cfg.LED.Enabled = *ledPin >= 0
			if cfg.LED.Enabled {
				cfg.LED.Pin = *ledPin
			}
		case "log-level":
			cfg.Logging.Level = *logLevel
		}
	})
	return cfg, opts, nil
}

// snapshotSink is a publisher that can also report its connection state.
type snapshotSink interface {
	mqtt.Publisher
	mqtt.ConnectionStatus
}

func newSink(cfg config.SinkConfig, clientID string) (snapshotSink, error) {
	switch cfg.Kind {
	case config.SinkNATS:
		p, err := nats.NewPublisher(cfg.URL, clientID)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		p, err := mqtt.NewRealPublisher(cfg.URL, clientID)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}

func run(cfg *config.Config, wsBroker string) error {
	runID := uuid.New().String()

	transport, err := ble.NewRealTransport(cfg.Radio.ScanWindow)
	if err != nil {
		return fmt.Errorf("init bluetooth: %w", err)
	}
	defer transport.Close()

	var led gpio.Indicator = gpio.Nop{}
	if cfg.LED.Enabled {
		ind, err := gpio.NewRealIndicator(cfg.LED.Pin)
		if err != nil {
			return fmt.Errorf("init led: %w", err)
		}
		defer ind.Close()
		led = ind
	}

	publisher, err := newSink(cfg.Sink, "smartstall-hub-"+runID[:8])
	if err != nil {
		return fmt.Errorf("init %s sink: %w", cfg.Sink.Kind, err)
	}
	defer publisher.Close()

	h, err := hub.New(cfg.Hub(), transport, publisher, led, hub.RealClock())
	if err != nil {
		return fmt.Errorf("init hub: %w", err)
	}

	// Tracker exists before STARTUP so the event carries a full snapshot.
	tracker := status.NewTracker(time.Now(), statusConfig(cfg, runID, wsBroker))
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}
	tracker.Update(h)
	tracker.SetSinkConnected(publisher.IsConnected())

	snap := tracker.Snapshot()
	startup := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startup); err != nil {
		logger.Warn().Err(err).Msg("failed to publish startup event")
	} else {
		logger.Info().Msg("published startup event")
	}

	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error().Err(err).Msg("http server error")
			}
		}()
		defer srv.Shutdown(context.Background())
		logger.Info().Str("addr", cfg.HTTP.Addr).Msg("http status server listening")
	}

	logger.Info().
		Str("run_id", runID).
		Str("sink", cfg.Sink.Kind).
		Str("broker", cfg.Sink.URL).
		Dur("tick", cfg.Polling.Tick).
		Dur("heartbeat", cfg.Sink.Heartbeat).
		Int("capacity", cfg.Polling.Capacity).
		Msg("started")

	ticker := time.NewTicker(cfg.Polling.Tick)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(context.Background(), h, publisher, publisher, tracker, cfg.Sink.Heartbeat, time.Now, ticker.C, sigCh)
}

func statusConfig(cfg *config.Config, runID, wsBroker string) status.Config {
	return status.Config{
		RunID:          runID,
		TickMs:         cfg.Polling.Tick.Milliseconds(),
		HeartbeatMs:    cfg.Sink.Heartbeat.Milliseconds(),
		PollIntervalMs: cfg.Polling.PollInterval.Milliseconds(),
		StaleAfterMs:   cfg.Polling.StaleAfter.Milliseconds(),
		Capacity:       cfg.Polling.Capacity,
		Sink:           cfg.Sink.Kind,
		Broker:         cfg.Sink.URL,
		HTTPPort:       cfg.HTTP.Addr,
		WSBroker:       wsBroker,
	}
}

// runLoop drives the hub one step per tick until a signal arrives or ctx is
// cancelled. now supplies the time used for heartbeats.
func runLoop(ctx context.Context, h *hub.Hub, publisher mqtt.Publisher, sinkStatus mqtt.ConnectionStatus, tracker *status.Tracker, heartbeat time.Duration, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	hb := logic.NewHeartbeat(now())

	refresh := func() {
		tracker.Update(h)
		if sinkStatus != nil {
			tracker.SetSinkConnected(sinkStatus.IsConnected())
		}
	}

	for {
		select {
		case s := <-sig:
			logger.Info().Str("signal", s.String()).Msg("shutting down")
			h.Shutdown()
			refresh()

			reason := signalName(s)
			event := mqtt.SystemEvent{
				Timestamp:  now(),
				Event:      "SHUTDOWN",
				Reason:     reason,
				Retained:   true,
				RawPayload: status.FormatStatusEvent(tracker.Snapshot(), "SHUTDOWN", reason),
			}
			if err := publisher.PublishSystem(event); err != nil {
				logger.Warn().Err(err).Msg("failed to publish shutdown event")
			} else {
				logger.Info().Msg("published shutdown event")
			}
			return nil

		case <-ctx.Done():
			h.Shutdown()
			return ctx.Err()

		case <-tick:
			t := now()
			if err := h.Tick(ctx); err != nil {
				var cerr *hub.CycleError
				if !errors.As(err, &cerr) {
					return fmt.Errorf("hub tick: %w", err)
				}
				// Already recorded and logged by the hub.
				logger.Debug().Str("device", cerr.Device).Msg("cycle error")
			}
			refresh()

			hbData := hb.Check(t, heartbeat)
			if hbData == nil {
				continue
			}
			if net := readNetworkInfo(); net != nil {
				tracker.SetNetwork(net)
			}
			stats := h.Stats()
			logger.Info().
				Dur("uptime", hbData.Uptime).
				Int("devices", len(h.Devices())).
				Int("cycles", stats.Cycles).
				Int("successes", stats.Successes).
				Int("published", stats.Published).
				Msg("heartbeat")

			event := mqtt.SystemEvent{
				Timestamp:  hbData.Timestamp,
				Event:      "HEARTBEAT",
				RawPayload: status.FormatStatusEvent(tracker.Snapshot(), "HEARTBEAT", ""),
			}
			if err := publisher.PublishSystem(event); err != nil {
				logger.Warn().Err(err).Msg("heartbeat publish error")
			}
		}
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	default:
		return "UNKNOWN"
	}
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}

// resolveWSBroker converts the --ws-broker flag value into a concrete URL.
// "=broker" derives ws://host:9001 from the TCP broker address; "off" disables.
func resolveWSBroker(ws, broker string) string {
	if ws == "off" {
		return ""
	}
	if ws != "=broker" {
		return ws
	}
	u, err := url.Parse(broker)
	if err != nil || u.Hostname() == "" {
		logger.Warn().Str("broker", broker).Msg("ws-broker: cannot derive websocket url")
		return ""
	}
	u.Scheme = "ws"
	u.Host = u.Hostname() + ":9001"
	return u.String()
}
