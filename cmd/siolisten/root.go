package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sonirico/libsio"
	"github.com/sonirico/libsio/internal/config"
	"github.com/sonirico/libsio/telemetry"
)

type flags struct {
	configPath  string
	url         string
	token       string
	namespace   string
	topics      []string
	logLevel    string
	metricsAddr string
}

func newRootCmd() *cobra.Command {
	f := &flags{}

	cmd := &cobra.Command{
		Use:           "siolisten",
		Short:         "Listen to registro realtime events and print them as JSON lines",
		Version:       versionString(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := buildConfig(f, cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&f.configPath, "config", "c", "", "Path to a YAML config file")
	cmd.Flags().StringVar(&f.url, "url", "", "Server URL, overrides server.url")
	cmd.Flags().StringVar(&f.token, "token", "", "Bearer token, overrides server.token")
	cmd.Flags().StringVar(&f.namespace, "namespace", "", "Socket.IO namespace, overrides server.namespace")
	cmd.Flags().StringSliceVarP(&f.topics, "topic", "t", nil, "Topic to subscribe to (repeatable). Defaults to every known topic")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "Log level, overrides log.level")
	cmd.Flags().StringVar(&f.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")

	return cmd
}

func versionString() string {
	if commit == "" {
		return version
	}
	return version + " (commit " + commit + ")"
}

// buildConfig loads the config file, if any, and lets explicit flags win.
func buildConfig(f *flags, cmd *cobra.Command) (*config.Config, error) {
	cfg := &config.Config{}
	if f.configPath != "" {
		loaded, err := config.Load(f.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	changed := cmd.Flags().Changed
	if changed("url") {
		cfg.Server.URL = f.url
	}
	if changed("token") {
		cfg.Server.Token = f.token
	}
	if changed("namespace") {
		cfg.Server.Namespace = f.namespace
	}
	if changed("topic") {
		cfg.Topics = f.topics
	}
	if changed("log-level") {
		cfg.Log.Level = f.logLevel
	}
	if changed("metrics-addr") {
		cfg.Metrics.Addr = f.metricsAddr
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "validate config")
	}
	return cfg, nil
}

func run(ctx context.Context, cfg *config.Config, out io.Writer) error {
	zl, err := newZapLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = zl.Sync() }()

	var metrics libsio.Metrics
	if cfg.Metrics.Addr != "" {
		registry := prometheus.NewRegistry()
		metrics = telemetry.NewMetrics(registry, cfg.Metrics.Labels)
		srv := serveMetrics(zl, cfg.Metrics, registry)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	header := make(http.Header)
	for k, v := range cfg.Server.Headers {
		header.Set(k, v)
	}

	client, err := libsio.NewSocketIOClient(
		libsio.SocketIOConfig{
			URL:    cfg.Server.URL,
			Path:   cfg.Server.Path,
			Token:  cfg.Server.Token,
			Header: header,
			SocketIOOptions: libsio.SocketIOOptions{
				Namespace:        cfg.Server.Namespace,
				HandshakeTimeout: cfg.Server.HandshakeTimeout,
			},
		},
		libsio.WithLogger(libsio.NewZapLogger(zl)),
		libsio.WithMetrics(metrics),
		libsio.WithBackoff(libsio.LinearBackoff(cfg.Reconnect.BaseDelay)),
		libsio.WithMaxReconnectAttempts(*cfg.Reconnect.MaxAttempts),
		libsio.WithCancelReconnectOnDisconnect(*cfg.Reconnect.CancelOnDisconnect),
	)
	if err != nil {
		return err
	}

	topics := selectTopics(cfg.Topics)

	history := libsio.NewEventHistory(cfg.History.Size)
	printer := newLinePrinter(out)
	for _, group := range [][]libsio.Topic{topics, lifecycleTopics} {
		for _, topic := range group {
			client.On(topic, printer.Listener())
			client.On(topic, history.Listener())
		}
	}

	gaveUp := make(chan error, 1)
	client.On(libsio.TopicReconnectFailed, libsio.NewEventListener(func(e libsio.Event) {
		select {
		case gaveUp <- e.Err:
		default:
		}
	}))

	for _, topic := range topics {
		if err := client.Subscribe(topic); err != nil {
			return err
		}
	}

	zl.Info("listening", zap.String("url", cfg.Server.URL), zap.Stringers("topics", topics))
	client.Connect(ctx)

	select {
	case <-ctx.Done():
		err = nil
	case err = <-gaveUp:
	}
	client.Disconnect()

	summarize(zl, history, topics)
	return err
}

// selectTopics returns the configured topics, or every known one.
func selectTopics(configured []string) []libsio.Topic {
	if len(configured) == 0 {
		return append([]libsio.Topic(nil), libsio.DomainTopics...)
	}
	topics := make([]libsio.Topic, 0, len(configured))
	for _, t := range configured {
		topics = append(topics, libsio.Topic(t))
	}
	return topics
}

var lifecycleTopics = []libsio.Topic{
	libsio.TopicConnect,
	libsio.TopicDisconnect,
	libsio.TopicConnectError,
	libsio.TopicReconnectFailed,
}

func serveMetrics(zl *zap.Logger, cfg config.MetricsConfig, registry *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, telemetry.Handler(registry))
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		zl.Info("serving metrics", zap.String("addr", cfg.Addr), zap.String("path", cfg.Path))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Error("metrics server stopped", zap.Error(err))
		}
	}()

	return srv
}

func summarize(zl *zap.Logger, history *libsio.EventHistory, topics []libsio.Topic) {
	fields := make([]zap.Field, 0, len(topics))
	for _, t := range topics {
		fields = append(fields, zap.Int(string(t), len(history.Recent(t, 0))))
	}
	zl.Info("events received (most recent window)", fields...)
}
