package tcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/rocketscienceinc/tictactoe-arena/internal/protocol"
)

type sessionHandler interface {
	Handle(ctx context.Context, conn protocol.Conn)
}

// Server accepts raw TCP connections and runs one session goroutine per
// accepted connection.
type Server struct {
	logger   *slog.Logger
	handler  sessionHandler
	maxFrame int
}

func New(logger *slog.Logger, handler sessionHandler, maxFrame int) *Server {
	return &Server{
		logger:   logger.With("component", "tcp-server"),
		handler:  handler,
		maxFrame: maxFrame,
	}
}

// Start - listens and serves until the context is canceled.
func (that *Server) Start(ctx context.Context, port string) error {
	listener, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return fmt.Errorf("failed to listen on port %s: %w", port, err)
	}

	go func() {
		<-ctx.Done()
		if closeErr := listener.Close(); closeErr != nil {
			that.logger.Error("failed to close listener", "error", closeErr)
		}
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}

			return fmt.Errorf("failed to accept connection: %w", err)
		}

		that.logger.Info("connection accepted", "remote", conn.RemoteAddr().String())

		go that.handler.Handle(ctx, protocol.NewStreamConn(conn, that.maxFrame))
	}
}
