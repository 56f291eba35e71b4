package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/rocketscienceinc/tictactoe-arena/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-arena/internal/entity"
	"github.com/rocketscienceinc/tictactoe-arena/internal/protocol"
	"github.com/rocketscienceinc/tictactoe-arena/internal/service"
)

var errMissingPlayerID = errors.New("player_id is required")

type matchArchive interface {
	Save(ctx context.Context, state entity.GameState) error
}

// SessionManager runs one session per accepted connection. Sessions share
// nothing directly; they meet only in the registry, the matchmaker, and
// the rooms, each behind its own lock.
type SessionManager struct {
	logger     *slog.Logger
	registry   *service.Registry
	roster     *service.Roster
	matchmaker *service.Matchmaker
	archive    matchArchive // nil disables archiving
	strictMove bool
}

func NewSessionManager(logger *slog.Logger, registry *service.Registry, roster *service.Roster, matchmaker *service.Matchmaker, archive matchArchive, strictMove bool) *SessionManager {
	return &SessionManager{
		logger:     logger,
		registry:   registry,
		roster:     roster,
		matchmaker: matchmaker,
		archive:    archive,
		strictMove: strictMove,
	}
}

// Handle - owns the connection for its whole lifetime: login, matchmaking,
// the move loop, and cleanup. Blocks until the session ends.
func (that *SessionManager) Handle(ctx context.Context, conn protocol.Conn) {
	session := &session{
		SessionManager: that,
		log:            that.logger.With("component", "session"),
		conn:           conn,
	}

	session.run(ctx)
}

type session struct {
	*SessionManager

	log  *slog.Logger
	conn protocol.Conn

	playerID string
	room     *entity.Room
}

func (that *session) run(ctx context.Context) {
	defer that.teardown(ctx)

	if !that.login() {
		return
	}

	that.log = that.log.With("player_id", that.playerID)

	if !that.enterMatchmaking() {
		return
	}

	that.loop(ctx)
}

// login - reads the first message and reserves the display name. Any
// precondition failure is reported to the client and ends the session.
func (that *session) login() bool {
	msg, err := that.conn.Receive()
	if err != nil {
		that.log.Warn("failed to read login", "error", err)
		return false
	}

	name := strings.TrimSpace(msg.PlayerID)
	if name == "" {
		that.refuse(errMissingPlayerID)
		return false
	}

	if !that.registry.Reserve(name) {
		that.refuse(apperror.ErrNameInUse)
		return false
	}

	that.playerID = name

	return true
}

// enterMatchmaking - offers the player to the queue. The matchmaker itself
// delivers the waiting ack or the match_found notifications, so there is
// nothing left to send here on success.
func (that *session) enterMatchmaking() bool {
	outcome := that.matchmaker.Offer(that.playerID, that.conn)

	if outcome.Kind == service.OutcomeFailed {
		that.refuse(errors.New(outcome.Reason))
		return false
	}

	room, ok := that.roster.Lookup(outcome.RoomID)
	if !ok {
		that.log.Error("matched room vanished", "room_id", outcome.RoomID)
		return false
	}

	that.room = room

	return true
}

func (that *session) loop(ctx context.Context) {
	for {
		msg, err := that.conn.Receive()
		if err != nil {
			if errors.Is(err, io.EOF) {
				that.log.Info("client disconnected")
			} else {
				that.log.Warn("session read failed", "error", err)
			}

			return
		}

		switch msg.Action {
		case protocol.ActionMove:
			if !that.handleMove(ctx, msg) {
				return
			}
		case protocol.ActionChat:
			that.handleChat(msg)
		default:
			that.refuse(apperror.ErrUnknownAction)
		}
	}
}

// handleMove - applies one move and reports rejections back to the mover.
// Returns false when a rejection must end the session (strict mode).
func (that *session) handleMove(ctx context.Context, msg *protocol.Message) bool {
	room, ok := that.roster.Lookup(msg.RoomID)
	if !ok {
		that.refuse(apperror.ErrOpponentNotFound)
		return !that.strictMove
	}

	if msg.Pos == nil {
		that.refuse(apperror.ErrInvalidPosition)
		return !that.strictMove
	}

	state, failed, err := room.ApplyMove(that.playerID, *msg.Pos)
	if err != nil {
		that.refuse(err)
		return !that.strictMove
	}

	for _, id := range failed {
		that.log.Warn("game state delivery failed", "room_id", room.ID(), "recipient", id)
	}

	if state.Status == entity.StatusEnded {
		that.log.Info("game over", "room_id", room.ID(), "result", state.Result)
		that.archiveMatch(ctx, state)
	}

	return true
}

// handleChat - relays a chat line to the opponent. Never fatal.
func (that *session) handleChat(msg *protocol.Message) {
	room, ok := that.roster.Lookup(msg.RoomID)
	if !ok {
		that.refuse(apperror.ErrOpponentNotFound)
		return
	}

	failed, err := room.RelayChat(that.playerID, msg.Text)
	if err != nil {
		that.refuse(err)
		return
	}

	for _, id := range failed {
		that.log.Warn("chat delivery failed", "room_id", room.ID(), "recipient", id)
	}
}

// teardown - runs on every exit path: frees the name, clears the waiting
// slot if this session held it, detaches from the room, tells the opponent
// the game is over, and destroys the room once nobody is left in it.
func (that *session) teardown(ctx context.Context) {
	if that.room != nil {
		roomID := that.room.ID()

		withdrew := that.matchmaker.Withdraw(roomID)
		remaining := that.room.DetachConn(that.playerID)

		if that.room.IsRunning() {
			if symbol, seated := that.room.OpponentSymbol(that.playerID); seated {
				state, failed := that.room.MarkAbandoned(symbol)
				for _, id := range failed {
					that.log.Warn("abandonment delivery failed", "room_id", roomID, "recipient", id)
				}

				that.log.Info("game abandoned", "room_id", roomID, "result", state.Result)
				that.archiveMatch(ctx, state)
			}
		}

		if withdrew || remaining == 0 {
			that.roster.Unregister(roomID)
		}
	}

	if that.playerID != "" {
		that.registry.Release(that.playerID)
	}

	if err := that.conn.Close(); err != nil {
		that.log.Warn("failed to close connection", "error", err)
	}
}

// refuse - reports a precondition or rejection back to this client only.
func (that *session) refuse(reason error) {
	if err := that.conn.Send(protocol.NewAck(false, "", reason.Error())); err != nil {
		that.log.Warn("failed to send rejection", "error", err)
	}
}

func (that *session) archiveMatch(ctx context.Context, state entity.GameState) {
	if that.archive == nil {
		return
	}

	if err := that.archive.Save(ctx, state); err != nil {
		that.log.Error("failed to archive match", "room_id", state.RoomID, "error", err)
	}
}
