package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"heimdall/internal/config"
	"heimdall/internal/feed"
	"heimdall/internal/logging"
	"heimdall/internal/metrics"
	"heimdall/internal/net"
	"heimdall/internal/protocol"
	"heimdall/internal/tracker"
	"heimdall/internal/utils"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

func main() {
	configPath := flag.String("config", "", "YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	logging.Setup(cfg.Logging)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer stop()

	if err := run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("feed handler stopped")
	}
}

func run(ctx context.Context, cfg config.Config) error {
	reg, m := metrics.NewRegistry()
	if cfg.Metrics.Addr != "" {
		go serveMetrics(ctx, cfg.Metrics.Addr, reg)
	}

	session, err := protocol.New(cfg.Protocol,
		feed.WithMetrics(m),
		feed.WithPriceDecimals(cfg.PriceDecimals),
	)
	if err != nil {
		return err
	}

	var t tomb.Tomb
	defer func() {
		t.Kill(nil)
		_ = t.Wait()
	}()
	owner := utils.NewRunLoop(&t, "owner")

	// Sessions belong to the owner loop, subscriptions included.
	var subscribeErr error
	err = utils.Call(owner, func() {
		for _, s := range cfg.Symbols {
			if subscribeErr = session.Subscribe(s.Symbol, s.MaxOrders); subscribeErr != nil {
				return
			}
		}
	})
	if err = errors.Join(err, subscribeErr); err != nil {
		return err
	}

	// The RTH check only reads constants, so trackers may call it from
	// their own loops.
	dispatcher := feed.NewDispatcher(session, owner)
	trackers := make([]*tracker.Tracker, 0, len(cfg.Symbols))
	for _, s := range cfg.Symbols {
		consumer := utils.NewRunLoop(&t, "tracker-"+s.Symbol)
		trackers = append(trackers, tracker.New(dispatcher, consumer, s.Symbol, session.IsRTHTimestamp))
	}
	defer func() {
		for _, tr := range trackers {
			if err := tr.Close(); err != nil {
				log.Warn().Err(err).Msg("tracker close")
			}
		}
	}()

	log.Info().
		Str("protocol", cfg.Protocol).
		Str("input", cfg.Input).
		Str("listen", cfg.Listen).
		Int("symbols", len(cfg.Symbols)).
		Msg("feed handler starting")

	pump := feed.NewPump(session, owner)
	if cfg.Listen != "" {
		return net.NewServer(cfg.Listen, pump.Run).Run(ctx)
	}
	input, closeInput, err := openInput(cfg.Input)
	if err != nil {
		return err
	}
	defer closeInput()
	return pump.Run(ctx, input)
}

func openInput(path string) (io.Reader, func(), error) {
	if path == "" || path == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { _ = f.Close() }, nil
}

func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdown)
	}()

	log.Info().Str("addr", addr).Msg("serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("metrics server")
	}
}
