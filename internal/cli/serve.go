package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fairyhunter13/vending-kiosk-service/internal/checkout"
	"github.com/fairyhunter13/vending-kiosk-service/internal/config"
	"github.com/fairyhunter13/vending-kiosk-service/internal/dispense"
	httpapi "github.com/fairyhunter13/vending-kiosk-service/internal/http"
	"github.com/fairyhunter13/vending-kiosk-service/internal/mq"
	"github.com/fairyhunter13/vending-kiosk-service/internal/obs"
	"github.com/fairyhunter13/vending-kiosk-service/internal/payment"
	"github.com/fairyhunter13/vending-kiosk-service/internal/scan"
	"github.com/fairyhunter13/vending-kiosk-service/internal/store"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the kiosk service",
		Long: `Run the kiosk service: connect to the message broker, subscribe to the
card-scan topic, and serve the checkout and payment HTTP API. Configuration
comes from the environment (see internal/config).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	cfg := config.Load()
	obs.InitLogger(cfg.LogLevel)
	obs.Logger.Info("service_starting")

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	mqc, err := mq.Dial(cfg)
	if err != nil {
		return err
	}
	defer mqc.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	orch := dispense.New(cfg, st, mqc)
	listener := scan.NewListener(orch.HandleScan, cfg.ScanHighWatermark)
	listener.Start(ctx)

	deliveries, err := mqc.Consume(ctx)
	if err != nil {
		return err
	}
	go func() {
		for d := range deliveries {
			if !listener.Enqueue(d.Body) {
				obs.Logger.Warn("scan_dropped_during_shutdown")
			}
		}
	}()

	verifier := payment.NewVerifier(cfg.PaymentSecret, st)
	co := checkout.New(st, payment.NewHTTPProcessor(cfg))
	app := httpapi.NewApp(cfg, st, co, verifier, listener)
	mux := httpapi.NewRouter(app)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		obs.Logger.Info("http_listen", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			obs.Logger.Error("http_server_error", "error", err)
			os.Exit(1)
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	s := <-sigc
	obs.Logger.Info("shutdown_signal", "signal", s.String())

	app.StartShutdown()
	obs.Logger.Info("shutdown_drain_begin", "scan_backlog", listener.BacklogSize())

	ctxDrain, cancelDrain := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelDrain()
	if drained := listener.DrainUntil(ctxDrain); !drained {
		obs.Logger.Warn("shutdown_drain_timeout")
	} else {
		obs.Logger.Info("shutdown_drain_complete")
	}

	ctxSrv, cancelSrv := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelSrv()
	if err := srv.Shutdown(ctxSrv); err != nil {
		obs.Logger.Error("http_shutdown_error", "error", err)
	}
	obs.Logger.Info("service_stopped")
	return nil
}
