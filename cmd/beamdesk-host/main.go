// Command beamdesk-host runs the host process: it accepts QUIC
// connections from viewers, authenticates them with a one-shot access
// code, and streams the local screen.
package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quic-go/quic-go"
	"github.com/spf13/cobra"

	"github.com/beamdesk/beamdesk/pkg/auth"
	"github.com/beamdesk/beamdesk/pkg/capture"
	"github.com/beamdesk/beamdesk/pkg/codec"
	"github.com/beamdesk/beamdesk/pkg/config"
	"github.com/beamdesk/beamdesk/pkg/input"
	"github.com/beamdesk/beamdesk/pkg/logging"
	"github.com/beamdesk/beamdesk/pkg/netutil"
	"github.com/beamdesk/beamdesk/pkg/persistence"
	"github.com/beamdesk/beamdesk/pkg/pipeline"
	"github.com/beamdesk/beamdesk/pkg/quality"
	"github.com/beamdesk/beamdesk/pkg/registry"
	"github.com/beamdesk/beamdesk/pkg/session"
	"github.com/beamdesk/beamdesk/pkg/wire"
)

const version = "v0.1.0-host"

// captureWidth/captureHeight size the synthetic capture source used
// until a platform screen-grab driver is wired in (out of scope here;
// see pkg/capture).
const (
	captureWidth  = 1920
	captureHeight = 1080
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "beamdesk-host",
		Short: "beamdesk remote-desktop host process",
	}
	root.PersistentFlags().StringVar(&configPath, "config", os.Getenv("BEAMDESK_HOST_CONFIG"), "path to host config YAML (built-in defaults if omitted)")

	root.AddCommand(serveCmd())
	root.AddCommand(genAccessCodeCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.HostConfig, error) {
	if configPath == "" {
		return config.GenerateDefaultHostConfig(), nil
	}
	return config.LoadHostConfig(configPath)
}

func genAccessCodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gen-access-code",
		Short: "generate and print a one-shot access code without starting the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, plaintext, err := auth.GenerateAccessCode()
			if err != nil {
				return fmt.Errorf("beamdesk-host: generate access code: %w", err)
			}
			fmt.Printf("Access code: %s (valid for %s)\n", plaintext, auth.CodeValidity)
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "accept viewer connections and stream the local screen",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("beamdesk-host: %w", err)
	}

	logger, err := logging.NewLoggerFromConfig(logging.ComponentHost, parseLevel(cfg.Logging.Level), cfg.Logging.OutputFile, cfg.Logging.MaxSizeMB, cfg.Logging.MaxBackups)
	if err != nil {
		return fmt.Errorf("beamdesk-host: init logger: %w", err)
	}
	defer logger.Close()
	logger.SetMaxFileSize(int64(cfg.Logging.MaxSizeMB) * 1024 * 1024)
	logger.SetMaxBackups(cfg.Logging.MaxBackups)

	reg := registry.New()

	var auditLog *persistence.AuditLog
	if cfg.Database.Host != "" {
		auditLog, err = persistence.NewAuditLog(persistence.Config{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
		})
		if err != nil {
			logger.Warn("audit log unavailable, continuing without it", logging.Fields{"error": err.Error()})
			auditLog = nil
		} else {
			defer auditLog.Close()
		}
	}

	var sessionCache *persistence.RedisSessionCache
	if cfg.Redis.Host != "" {
		sessionCache, err = persistence.NewRedisSessionCache(persistence.RedisSessionCacheConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.TTL,
		})
		if err != nil {
			logger.Warn("session cache unavailable, continuing without it", logging.Fields{"error": err.Error()})
			sessionCache = nil
		} else {
			defer sessionCache.Close()
		}
	}

	var tlsConfig *tls.Config
	if cfg.Server.TLSCert != "" && cfg.Server.TLSKey != "" {
		cert, err := tls.LoadX509KeyPair(cfg.Server.TLSCert, cfg.Server.TLSKey)
		if err != nil {
			return fmt.Errorf("beamdesk-host: load TLS certificate: %w", err)
		}
		tlsConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS13,
			NextProtos:   []string{netutil.ALPNProtocol},
		}
	}

	ln, err := netutil.ListenQUIC(cfg.Server.ListenAddr, tlsConfig)
	if err != nil {
		return fmt.Errorf("beamdesk-host: listen: %w", err)
	}
	defer ln.Close()

	code, plaintext, err := auth.GenerateAccessCode()
	if err != nil {
		return fmt.Errorf("beamdesk-host: generate access code: %w", err)
	}

	fmt.Printf("beamdesk-host %s listening on %s\n", version, cfg.Server.ListenAddr)
	fmt.Printf("Access code: %s (valid for %s)\n", plaintext, auth.CodeValidity)
	logger.Info("host listening", logging.Fields{"version": version, "listen_addr": cfg.Server.ListenAddr})

	startedAt := time.Now()
	if cfg.Server.StatsAddr != "" {
		go serveStats(cfg.Server.StatsAddr, reg, startedAt, logger)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("shutdown signal received", nil)
		cancel()
		ln.Close()
	}()

	var sessionNum int
	for {
		stream, remoteAddr, err := ln.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Error("accept failed", logging.Fields{"error": err.Error()})
			continue
		}
		sessionNum++
		sessionID := fmt.Sprintf("sess-%d", sessionNum)
		go handleSession(ctx, stream, remoteAddr.String(), code, cfg, reg, auditLog, sessionCache, sessionID, logger)
	}
}

func handleSession(
	ctx context.Context,
	stream *quic.Stream,
	remoteAddr string,
	code *auth.AccessCode,
	cfg *config.HostConfig,
	reg *registry.Registry,
	auditLog *persistence.AuditLog,
	sessionCache *persistence.RedisSessionCache,
	sessionID string,
	logger *logging.Logger,
) {
	log := logger.WithSessionID(sessionID).WithField("remote_addr", remoteAddr)
	log.Info("viewer connected", nil)

	transport := wire.NewStreamTransport(stream)
	source := capture.NewSyntheticSource(captureWidth, captureHeight)
	factory := codec.NewFactory()
	initialMode := quality.FromString(cfg.Quality.InitialMode)
	encoder := factory.CreateEncoder(initialMode.CompressionLevel())
	hp := pipeline.NewHostPipeline(source, encoder, initialMode)

	hs := session.NewHostSession(session.HostSessionConfig{
		Transport:  transport,
		AccessCode: code,
		Registry:   reg,
		Pipeline:   hp,
		Injector:   &input.NullInjector{},
		SessionID:  sessionID,
		RemoteAddr: remoteAddr,
		OnAuthenticated: func(token, sessionID, remoteAddr string, expiresAt time.Time) {
			if auditLog != nil {
				if err := auditLog.SaveSession(token, sessionID, remoteAddr, expiresAt); err != nil {
					log.Warn("failed to persist session to audit log", logging.Fields{"error": err.Error()})
				}
				_ = auditLog.RecordAuthAttempt(sessionID, remoteAddr, true)
			}
			if sessionCache != nil {
				if err := sessionCache.CacheSession(token, sessionID, expiresAt); err != nil {
					log.Warn("failed to cache session token", logging.Fields{"error": err.Error()})
				}
			}
		},
		OnClosed: func(token string) {
			if auditLog != nil {
				_ = auditLog.CloseSession(token)
			}
			if sessionCache != nil {
				_ = sessionCache.InvalidateSession(token)
			}
		},
	})

	if err := hs.Run(ctx); err != nil {
		log.Warn("session ended with error", logging.Fields{"error": err.Error()})
		return
	}
	log.Info("session ended", nil)
}

func serveStats(addr string, reg *registry.Registry, startedAt time.Time, logger *logging.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":          "ok",
			"active_sessions": reg.Count(),
			"uptime_seconds":  time.Since(startedAt).Seconds(),
		})
	})
	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		sessions := reg.Snapshot()
		out := make([]map[string]interface{}, 0, len(sessions))
		for _, e := range sessions {
			out = append(out, map[string]interface{}{
				"session_id":   e.SessionID,
				"remote_addr":  e.RemoteAddr,
				"quality_mode": e.QualityMode,
			})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"active_sessions": len(sessions),
			"uptime_seconds":  time.Since(startedAt).Seconds(),
			"sessions":        out,
		})
	})
	logger.Info("stats endpoint listening", logging.Fields{"stats_addr": addr})
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("stats endpoint stopped", logging.Fields{"error": err.Error()})
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
