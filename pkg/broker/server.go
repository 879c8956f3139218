package broker

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/jihwankim/fuzzbroker/pkg/logging"
	"github.com/jihwankim/fuzzbroker/pkg/store"
)

// Serve accepts connections on listenAddr, runs the event loop, the
// result-store writer pool, and (if configured) the metrics HTTP server,
// all under one errgroup so any one's failure tears the rest down via ctx
// cancellation.
func Serve(ctx context.Context, st *store.Store, log *logging.Logger, listenAddr, metricsAddr string, opts Options) error {
	b := New(st, log, opts)

	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return fmt.Errorf("broker: listen on %s: %w", listenAddr, err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-gctx.Done()
		return ln.Close()
	})

	g.Go(func() error {
		return acceptLoop(ln, b.events, log)
	})

	g.Go(func() error {
		for i := 0; i < storeWriterCount; i++ {
			go runStoreWriters(gctx, st, b.storeJobs, b.storeResults)
		}
		return forwardStoreResults(gctx, b.storeResults, b.events)
	})

	if metricsAddr != "" {
		srv := &http.Server{Addr: metricsAddr, Handler: b.metrics.Handler()}
		g.Go(func() error {
			<-gctx.Done()
			return srv.Close()
		})
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("broker: metrics server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		return b.Run(gctx)
	})

	return g.Wait()
}

// acceptLoop accepts connections until ln closes, spawning a reader
// goroutine per connection that feeds decoded messages into events.
func acceptLoop(ln net.Listener, events chan<- event, log *logging.Logger) error {
	var nextID int64
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		nextID++
		peer := &connPeer{id: nextID, conn: conn}
		go readLoop(peer, conn, events)
		log.Info("peer connected", "peer_id", nextID, "remote_addr", conn.RemoteAddr().String())
	}
}

// forwardStoreResults relays store-writer completions onto the loop's
// single events channel, so the loop never selects on more than one
// channel besides ctx.Done.
func forwardStoreResults(ctx context.Context, results <-chan storeCompletion, events chan<- event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r := <-results:
			events <- event{storeDone: &r}
		}
	}
}
