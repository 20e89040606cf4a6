package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/Tyrowin/signalrelay/internal/logging"
	"github.com/Tyrowin/signalrelay/internal/server"
)

const shutdownTimeout = 10 * time.Second

var (
	configFile    = kingpin.Flag("config.file", "Path to YAML configuration file.").Default("").String()
	listenAddress = kingpin.Flag("web.listen-address", "Address to listen on for HTTP and WebSocket connections.").String()
	staticDir     = kingpin.Flag("static.dir", "Directory served as static assets.").String()
	logLevel      = kingpin.Flag("log.level", "Log level: debug, info, warn, error.").String()
)

func main() {
	kingpin.Parse()

	cfg, err := server.LoadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *listenAddress != "" {
		cfg.Port = *listenAddress
	}
	if *staticDir != "" {
		cfg.StaticDir = *staticDir
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	cfg.Sanitize()

	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	srv := server.New(cfg, log)
	httpServer := server.CreateServer(cfg.Port, srv.Routes())

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe(httpServer)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatal("Server error", zap.Error(err))
		}
		return
	case sig := <-sigChan:
		log.Info("Received shutdown signal", zap.String("signal", sig.String()))
	}

	if err := server.ShutdownServer(httpServer, shutdownTimeout); err != nil {
		log.Warn("HTTP server shutdown error", zap.Error(err))
	}
	if err := srv.Shutdown(shutdownTimeout); err != nil {
		log.Warn("Relay shutdown incomplete", zap.Error(err))
	}
}
