package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Serve runs app on ln until ctx is done, then shuts it down within timeout.
// ln must already be bound. A cancellation that lands before the server has
// started accepting still stops it, since closing ln ends the accept loop.
func Serve(ctx context.Context, app *fiber.App, ln net.Listener, timeout time.Duration) error {
	served := make(chan error, 1)
	go func() { served <- app.Listener(ln) }()

	select {
	case err := <-served:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownErr := app.ShutdownWithTimeout(timeout)
	if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		shutdownErr = errors.Join(shutdownErr, err)
	}

	if err := <-served; err != nil && !errors.Is(err, net.ErrClosed) {
		return errors.Join(shutdownErr, fmt.Errorf("http server: %w", err))
	}
	return shutdownErr
}
