package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"go.bug.st/serial"

	"i4.energy/across/idpgw/journal"
	"i4.energy/across/idpgw/modem"
	"i4.energy/across/idpgw/twin"
)

func main() {
	flag.String("serial-port", "/dev/ttyUSB0", "Serial port to connect to the modem")
	flag.Int("baud-rate", 9600, "Baud rate for serial communication")
	flag.String("bind-address", "0.0.0.0:8080", "Bind address for the HTTP server")
	flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Bool("crc", false, "Use CRC framing on the AT interface")
	flag.String("at-timeout", "5s", "Default AT command timeout")
	flag.String("status-interval", twin.DefaultStatusInterval.String(), "Satellite status poll interval")
	flag.String("tracking-interval", "0s", "GNSS tracking interval, 0 disables tracking")
	flag.String("notifications", "", "Comma separated event notifications to enable")
	flag.String("journal", "data/idpgw.db", "Message journal database, empty disables it")
	flag.String("mqtt-broker", "", "MQTT broker URL, empty disables MQTT")
	flag.String("mqtt-topic", "idp", "MQTT topic prefix")
	listPorts := flag.Bool("list-ports", false, "List serial ports and exit")
	flag.Parse()

	if *listPorts {
		ports, err := modem.ListPorts()
		if err != nil {
			slog.Error("Failed to list serial ports", "error", err)
			os.Exit(1)
		}
		for _, p := range ports {
			os.Stdout.WriteString(p + "\n")
		}
		return
	}

	config, err := LoadConfig(WithDefaults(), WithEnv(), WithFlags(flag.CommandLine))
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	switch config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	modemConfig, err := modem.NewConfigBuilder().
		WithATTimeout(config.ATTimeout).
		WithLogger(logger.With("component", "modem")).
		WithDialer(modem.SerialDialer{
			PortName: config.SerialPort,
			Mode: &serial.Mode{
				BaudRate: config.BaudRate,
				DataBits: 8,
				Parity:   serial.NoParity,
				StopBits: serial.OneStopBit,
			},
		}).
		Build()
	if err != nil {
		logger.Error("Failed to create modem config", "error", err)
		os.Exit(1)
	}

	m, err := modem.New(ctx, modemConfig)
	if err != nil {
		logger.Error("Failed to open modem", "error", err, "port", config.SerialPort)
		os.Exit(1)
	}

	notifications, _ := config.notificationFlags()
	twinConfig, err := twin.NewConfigBuilder().
		WithCommander(m).
		WithCRC(config.CRC).
		WithStatusInterval(config.StatusInterval).
		WithTracking(config.TrackingInterval).
		WithNotifications(notifications).
		WithLogger(logger).
		Build()
	if err != nil {
		logger.Error("Failed to create twin config", "error", err)
		os.Exit(1)
	}
	tw, err := twin.New(twinConfig)
	if err != nil {
		logger.Error("Failed to create twin", "error", err)
		os.Exit(1)
	}

	var j *journal.Journal
	if config.JournalPath != "" {
		j, err = journal.Open(config.JournalPath, logger.With("component", "journal"))
		if err != nil {
			logger.Error("Failed to open journal", "error", err)
			os.Exit(1)
		}
		defer j.Close()
	}

	gw := NewGateway(tw, j, logger.With("component", "gateway"))
	if bridge := StartMQTT(ctx, config, logger, gw.Send); bridge != nil {
		gw.AddSink(bridge)
	}

	logger.Info("Starting IDP Gateway", "port", config.SerialPort, "crc", config.CRC)

	// the serial port going away ends the process, the service manager
	// restarts it
	go func() {
		err := m.Loop(ctx)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, modem.ErrClosed) {
			logger.Error("Modem loop stopped", "error", err)
		}
		cancel()
	}()
	// twin workers and gateway retrievals use the modem and the journal,
	// both are closed only after these return
	waitWorkers := runWorkers(ctx,
		func(ctx context.Context) {
			if err := tw.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Twin stopped", "error", err)
			}
		},
		gw.Run,
	)

	httpServer := &http.Server{
		Addr: config.BindAddress,
		Handler: (&Server{
			Logger:  logger.With("component", "server"),
			Device:  tw,
			Gateway: gw,
			Journal: j,
		}).Routes(),
	}

	// Channel to listen for interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start HTTP server in a goroutine
	go func() {
		logger.Info("Starting HTTP server", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}()

	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		logger.Warn("Failed to notify service manager", "error", err)
	} else if ok {
		logger.Debug("Service manager notified")
	}

	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", "signal", sig)
	case <-ctx.Done():
		logger.Warn("Modem connection lost, shutting down")
	}
	daemon.SdNotify(false, daemon.SdNotifyStopping)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	logger.Info("Closing HTTP server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to gracefully shutdown server", "error", err)
	}

	cancel()
	waitWorkers()
	logger.Info("Closing modem connection")
	if err := m.Close(); err != nil && !errors.Is(err, modem.ErrAlreadyClosed) {
		logger.Error("Failed to close modem", "error", err)
	}
}

// runWorkers starts each worker in its own goroutine. The returned function
// blocks until all of them have returned.
func runWorkers(ctx context.Context, workers ...func(context.Context)) (wait func()) {
	var wg sync.WaitGroup
	for _, w := range workers {
		w := w
		wg.Add(1)
		go func() {
			defer wg.Done()
			w(ctx)
		}()
	}
	return wg.Wait
}
