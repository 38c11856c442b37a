package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/remcokranenburg/tunneltanktournament/internal/net/rendezvous"
	"github.com/remcokranenburg/tunneltanktournament/internal/telemetry"
)

func main() {
	addr := flag.String("addr", ":3536", "listen address")
	relayRate := flag.Float64("relay-rate", rendezvous.DefaultRelayRate, "binary frames per second each peer may relay")
	relayBurst := flag.Int("relay-burst", rendezvous.DefaultRelayBurst, "relay burst size per peer")
	flag.Parse()

	logger := telemetry.WrapLogger(log.Default())
	srv := rendezvous.NewServer(rendezvous.ServerConfig{
		Logger:     logger,
		RelayRate:  rate.Limit(*relayRate),
		RelayBurst: *relayBurst,
	})
	httpSrv := &http.Server{Addr: *addr, Handler: srv.Routes()}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpSrv.Shutdown(shutdownCtx)
	}()

	logger.Printf("rendezvous listening on %s", httpSrv.Addr)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server failed: %v", err)
	}
}
