package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"google.golang.org/grpc"

	"camwatch/internal/health"
)

const shutdownTimeout = 30 * time.Second

// handleHTTPServer starts the operator API on addr. It shuts the server down
// when ctx is cancelled.
func handleHTTPServer(ctx context.Context, addr string, handler http.Handler, wg *sync.WaitGroup, errc chan error, logger *log.Logger) {
	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: time.Second * 60}

	wg.Add(1)
	go func() {
		defer wg.Done()

		// Start HTTP server in a separate goroutine.
		go func() {
			logger.Printf("HTTP server listening on %q", addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errc <- err
			}
		}()

		<-ctx.Done()
		logger.Printf("shutting down HTTP server at %q", addr)

		// Shutdown gracefully with a 30s timeout.
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Printf("failed to shutdown: %v", err)
		}
	}()
}

// handleGRPCServer serves the standard gRPC health service on addr.
func handleGRPCServer(ctx context.Context, addr string, hs *health.Service, wg *sync.WaitGroup, errc chan error, logger *log.Logger) {
	srv := grpc.NewServer()
	hs.RegisterGRPC(srv)

	wg.Add(1)
	go func() {
		defer wg.Done()

		lis, err := net.Listen("tcp", addr)
		if err != nil {
			errc <- err
			return
		}

		go func() {
			logger.Printf("gRPC server listening on %q", addr)
			if err := srv.Serve(lis); err != nil {
				errc <- err
			}
		}()

		<-ctx.Done()
		logger.Printf("shutting down gRPC server at %q", addr)

		// Health watchers keep streams open; give up waiting after the timeout.
		hs.Shutdown()
		stopped := make(chan struct{})
		go func() {
			srv.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(shutdownTimeout):
			srv.Stop()
		}
	}()
}
