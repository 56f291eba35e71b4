package service

import (
	"log/slog"
	"sync"

	"github.com/rocketscienceinc/tictactoe-arena/internal/entity"
	"github.com/rocketscienceinc/tictactoe-arena/internal/pkg"
	"github.com/rocketscienceinc/tictactoe-arena/internal/protocol"
)

// OutcomeKind classifies the result of one matchmaking attempt.
type OutcomeKind int

const (
	OutcomeWaiting OutcomeKind = iota
	OutcomePaired
	OutcomeFailed
)

// MatchOutcome is what Offer decided for the calling player. For a paired
// outcome both sides have already been notified over their connections.
type MatchOutcome struct {
	Kind     OutcomeKind
	RoomID   string
	Symbol   string
	Opponent string
	Reason   string
}

// Matchmaker holds the single waiting slot. One mutex totally orders every
// pairing decision across the server; while it is held the matchmaker may
// touch the roster and write pairing notifications, and no other path
// acquires this lock while holding a room's.
type Matchmaker struct {
	logger *slog.Logger
	roster *Roster

	mu   sync.Mutex
	slot *entity.Room // invariant: occupied iff the room is waiting
}

func NewMatchmaker(logger *slog.Logger, roster *Roster) *Matchmaker {
	return &Matchmaker{
		logger: logger.With("component", "matchmaker"),
		roster: roster,
	}
}

// Offer - either parks the player in a fresh waiting room or pairs it with
// the player already waiting. Pairing notifications are delivered here,
// synchronously, by the joiner's goroutine: the host simply receives an
// unsolicited match_found on its connection.
func (that *Matchmaker) Offer(playerID string, conn protocol.Conn) MatchOutcome {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.offer(playerID, conn)
}

func (that *Matchmaker) offer(playerID string, conn protocol.Conn) MatchOutcome {
	if that.slot == nil {
		room := entity.NewRoom(pkg.GenerateRoomID(), playerID, conn)

		// The waiting ack goes out while the queue lock is held, so a
		// pairing racing in behind us cannot deliver match_found first.
		if err := conn.Send(protocol.NewAck(true, protocol.StatusWaiting, "")); err != nil {
			that.logger.Warn("waiting player unreachable", "player_id", playerID, "error", err)

			return MatchOutcome{Kind: OutcomeFailed, Reason: "failed to deliver waiting ack"}
		}

		that.roster.Register(room)
		that.slot = room

		that.logger.Info("player waiting for opponent", "player_id", playerID, "room_id", room.ID())

		return MatchOutcome{Kind: OutcomeWaiting, RoomID: room.ID()}
	}

	room := that.slot
	that.slot = nil // the room stops waiting regardless of how seating goes

	hostID := room.HostID()

	if err := room.SeatSecondPlayer(playerID, conn); err != nil {
		// Cannot happen while the slot invariant holds; recover by
		// treating the slot as empty.
		that.logger.Error("waiting room refused second player", "room_id", room.ID(), "error", err)
		that.roster.Unregister(room.ID())

		return that.offer(playerID, conn)
	}

	hostMsg, err := protocol.NewEvent(protocol.TypeMatchFound, protocol.MatchFoundPayload{
		GameID:   room.ID(),
		YouAre:   entity.PlayerX,
		Opponent: playerID,
	})
	if err != nil {
		return MatchOutcome{Kind: OutcomeFailed, Reason: err.Error()}
	}

	if err = room.NotifyPlayer(hostID, hostMsg); err != nil {
		// The host is gone: discard the half-built room and seat the
		// arrival alone in a fresh one. Abort strips the arrival's
		// connection out of the dead room so the host's teardown cannot
		// broadcast a stale abandonment into the arrival's new game.
		that.logger.Warn("host unreachable, discarding room", "room_id", room.ID(), "host", hostID, "error", err)
		room.ClosePlayerConn(hostID)
		room.Abort()
		that.roster.Unregister(room.ID())

		return that.offer(playerID, conn)
	}

	joinerMsg, err := protocol.NewEvent(protocol.TypeMatchFound, protocol.MatchFoundPayload{
		GameID:   room.ID(),
		YouAre:   entity.PlayerO,
		Opponent: hostID,
	})
	if err == nil {
		err = conn.Send(joinerMsg)
	}

	if err != nil {
		// The arrival is gone. Put the host back into the waiting slot
		// rather than leaving it paired against a dead peer.
		that.logger.Warn("joiner unreachable, requeueing host", "room_id", room.ID(), "host", hostID, "error", err)
		room.ResetToWaiting(hostID)
		that.slot = room

		return MatchOutcome{Kind: OutcomeFailed, Reason: "failed to deliver pairing notification"}
	}

	that.logger.Info("players paired", "room_id", room.ID(), "host", hostID, "joiner", playerID)

	return MatchOutcome{
		Kind:     OutcomePaired,
		RoomID:   room.ID(),
		Symbol:   entity.PlayerO,
		Opponent: hostID,
	}
}

// Withdraw - clears the slot if it still holds the given room. Returns
// whether the room was withdrawn, which tells the caller the room had no
// opponent and can be destroyed.
func (that *Matchmaker) Withdraw(roomID string) bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.slot != nil && that.slot.ID() == roomID {
		that.slot = nil
		return true
	}

	return false
}
