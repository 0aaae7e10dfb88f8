package transport

import (
	"context"
	"errors"
	"net"
	"sync"

	"github.com/alexbleotu/ferrumfix/internal/observability"
)

// Accept builds the Conn and handler for an inbound connection.
type Accept func(nc net.Conn) (*Conn, Handler)

// Serve accepts connections on ln until ctx is done, running each one in
// its own goroutine. It closes ln and every live connection on return and
// waits for their read loops to exit.
func Serve(ctx context.Context, ln net.Listener, accept Accept) error {
	logger := observability.Logger("transport")
	var (
		mu    sync.Mutex
		conns = make(map[*Conn]struct{})
		wg    sync.WaitGroup
	)
	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()
	defer func() {
		_ = ln.Close()
		mu.Lock()
		for c := range conns {
			_ = c.Close()
		}
		mu.Unlock()
		wg.Wait()
	}()

	logger.Info().Str("addr", ln.Addr().String()).Msg("listening")
	for {
		nc, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		c, handler := accept(nc)
		mu.Lock()
		conns[c] = struct{}{}
		mu.Unlock()
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				mu.Lock()
				delete(conns, c)
				mu.Unlock()
				_ = c.Close()
			}()
			c.log.Info().Msg("client connected")
			if err := c.Run(ctx, handler); err != nil && !errors.Is(err, context.Canceled) {
				c.log.Warn().Err(err).Msg("client disconnected")
				return
			}
			c.log.Info().Msg("client disconnected")
		}()
	}
}
