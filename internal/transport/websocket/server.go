package websocket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rocketscienceinc/tictactoe-arena/internal/protocol"
)

type sessionHandler interface {
	Handle(ctx context.Context, conn protocol.Conn)
}

// Server serves the same session protocol over WebSocket: one text message
// carries one frame payload, the transport's own framing replacing the
// length prefix.
type Server struct {
	logger   *slog.Logger
	handler  sessionHandler
	upgrader websocket.Upgrader
	maxFrame int
}

func New(logger *slog.Logger, handler sessionHandler, maxFrame int) *Server {
	return &Server{
		logger:  logger.With("component", "ws-server"),
		handler: handler,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(_ *http.Request) bool { return true },
		},
		maxFrame: maxFrame,
	}
}

// Start - serves /ws until the context is canceled.
func (that *Server) Start(ctx context.Context, port string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		that.serveConnection(ctx, w, r)
	})

	srv := &http.Server{
		Addr:        ":" + port,
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 30 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			that.logger.Error("failed to shut down server", "error", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

func (that *Server) serveConnection(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	ws, err := that.upgrader.Upgrade(w, r, nil)
	if err != nil {
		that.logger.Error("failed to upgrade connection", "error", err)
		return
	}

	ws.SetReadLimit(int64(that.maxFrame))

	that.logger.Info("connection established", "remote", ws.RemoteAddr().String())

	that.handler.Handle(ctx, newConn(ws))
}
