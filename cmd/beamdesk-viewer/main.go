// Command beamdesk-viewer connects to a beamdesk-host process,
// authenticates with an access code, and prints incoming frame
// metadata. It has no GUI chrome: rendering the received framebuffer
// is left to a platform frontend (out of scope for this core).
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/beamdesk/beamdesk/pkg/codec"
	"github.com/beamdesk/beamdesk/pkg/config"
	"github.com/beamdesk/beamdesk/pkg/logging"
	"github.com/beamdesk/beamdesk/pkg/netutil"
	"github.com/beamdesk/beamdesk/pkg/pipeline"
	"github.com/beamdesk/beamdesk/pkg/session"
	"github.com/beamdesk/beamdesk/pkg/wire"
)

const version = "v0.1.0-viewer"

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "beamdesk-viewer",
		Short: "beamdesk remote-desktop viewer process",
	}
	root.PersistentFlags().StringVar(&configPath, "config", os.Getenv("BEAMDESK_VIEWER_CONFIG"), "path to viewer config YAML")

	root.AddCommand(connectCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func connectCmd() *cobra.Command {
	var insecureSkipVerify bool
	cmd := &cobra.Command{
		Use:   "connect <addr>",
		Short: "connect to a host and start streaming",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConnect(args[0], insecureSkipVerify)
		},
	}
	cmd.Flags().BoolVar(&insecureSkipVerify, "insecure-skip-verify", true, "trust the host's self-signed certificate")
	return cmd
}

func loadConfig(hostAddr string, insecureSkipVerify bool) (*config.ViewerConfig, error) {
	if configPath == "" {
		return &config.ViewerConfig{
			Server:  config.ViewerServerConfig{HostAddr: hostAddr, InsecureSkipVerify: insecureSkipVerify},
			Logging: config.LoggingConfig{Level: "info"},
		}, nil
	}
	cfg, err := config.LoadViewerConfig(configPath)
	if err != nil {
		return nil, err
	}
	if hostAddr != "" {
		cfg.Server.HostAddr = hostAddr
	}
	return cfg, nil
}

func runConnect(hostAddr string, insecureSkipVerify bool) error {
	cfg, err := loadConfig(hostAddr, insecureSkipVerify)
	if err != nil {
		return fmt.Errorf("beamdesk-viewer: %w", err)
	}

	logger, err := logging.NewLoggerFromConfig(logging.ComponentViewer, parseLevel(cfg.Logging.Level), cfg.Logging.OutputFile, cfg.Logging.MaxSizeMB, cfg.Logging.MaxBackups)
	if err != nil {
		return fmt.Errorf("beamdesk-viewer: init logger: %w", err)
	}
	defer logger.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	fmt.Printf("beamdesk-viewer %s connecting to %s\n", version, cfg.Server.HostAddr)
	stream, err := netutil.DialQUIC(ctx, cfg.Server.HostAddr, cfg.Server.InsecureSkipVerify)
	if err != nil {
		return fmt.Errorf("beamdesk-viewer: dial %s: %w", cfg.Server.HostAddr, err)
	}
	defer stream.Close()

	dec, err := codec.NewRawZstdDecoder()
	if err != nil {
		return fmt.Errorf("beamdesk-viewer: build decoder: %w", err)
	}

	vs := session.NewViewerSession(session.ViewerSessionConfig{
		Transport: wire.NewStreamTransport(stream),
		Sink:      pipeline.NewSink(dec),
	})

	fmt.Print("Access code: ")
	code, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return fmt.Errorf("beamdesk-viewer: read access code: %w", err)
	}
	code = strings.TrimSpace(code)

	if _, err := vs.Connect(code); err != nil {
		return fmt.Errorf("beamdesk-viewer: authenticate: %w", err)
	}
	logger.Info("authenticated", nil)

	if err := vs.StartStream(); err != nil {
		return fmt.Errorf("beamdesk-viewer: start stream: %w", err)
	}

	runDone := make(chan error, 1)
	go func() { runDone <- vs.Run(ctx) }()

	for {
		select {
		case sink := <-vs.Frames:
			fb := sink.Framebuffer()
			if fb != nil {
				fmt.Printf("frame: %dx%d\n", fb.Width, fb.Height)
			}
		case err := <-runDone:
			if err != nil {
				logger.Warn("session ended with error", logging.Fields{"error": err.Error()})
				return err
			}
			return nil
		case <-ctx.Done():
			_ = vs.Disconnect()
			<-runDone
			return nil
		}
	}
}

func parseLevel(level string) logging.LogLevel {
	switch level {
	case "debug":
		return logging.DEBUG
	case "warn":
		return logging.WARN
	case "error":
		return logging.ERROR
	default:
		return logging.INFO
	}
}
