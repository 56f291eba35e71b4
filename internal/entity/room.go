package entity

import (
	"fmt"
	"sync"

	"github.com/rocketscienceinc/tictactoe-arena/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-arena/internal/protocol"
)

const (
	StatusWaiting = "waiting"
	StatusRunning = "running"
	StatusEnded   = "ended"

	PlayerX = "X"
	PlayerO = "O"

	ResultDraw = "draw"

	EmptyCell = ""
)

var WinCombos = [][3]int{
	{0, 1, 2},
	{3, 4, 5},
	{6, 7, 8},
	{0, 3, 6},
	{1, 4, 7},
	{2, 5, 8},
	{0, 4, 8},
	{2, 4, 6},
}

// GameState is an immutable snapshot of a room, safe to use after the
// room's lock has been released.
type GameState struct {
	RoomID string
	Status string
	Board  [9]string
	Turn   string
	Result string
}

// WireMessage - encodes the snapshot as a "game_state" event. Empty cells
// and an absent turn become nulls on the wire.
func (that GameState) WireMessage() *protocol.Message {
	payload := protocol.GameStatePayload{
		Status: that.Status,
		Result: that.Result,
	}

	for i := range that.Board {
		if that.Board[i] != EmptyCell {
			cell := that.Board[i]
			payload.Board[i] = &cell
		}
	}

	if that.Turn != EmptyCell {
		turn := that.Turn
		payload.Turn = &turn
	}

	msg, err := protocol.NewEvent(protocol.TypeGameState, payload)
	if err != nil {
		panic(fmt.Errorf("failed to encode game state: %w", err))
	}

	return msg
}

// Room owns one match: the board, the seat and connection maps, the turn,
// and the status. Every mutating method and every broadcast composed from
// one runs under the room's single mutex, so concurrent moves, disconnects
// and pairing never interleave inconsistently.
type Room struct {
	mu sync.Mutex

	id      string
	board   [9]string
	seats   []string                 // seating order; seats[0] becomes X
	symbols map[string]string        // player id -> mark, assigned on pairing
	conns   map[string]protocol.Conn // shrinks as players disconnect
	status  string
	turn    string
	result  string
}

// NewRoom - creates a waiting room with its first player seated. The
// symbol assignment happens later, when a second player is seated.
func NewRoom(id, playerID string, conn protocol.Conn) *Room {
	return &Room{
		id:      id,
		seats:   []string{playerID},
		symbols: make(map[string]string),
		conns:   map[string]protocol.Conn{playerID: conn},
		status:  StatusWaiting,
	}
}

func (that *Room) ID() string {
	return that.id
}

// SeatSecondPlayer - seats the second player, assigns X to the first-seated
// player and O to the newcomer, and starts the game with X to move.
func (that *Room) SeatSecondPlayer(playerID string, conn protocol.Conn) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if len(that.seats) >= 2 {
		return fmt.Errorf("%w: room %s", apperror.ErrRoomFull, that.id)
	}

	that.seats = append(that.seats, playerID)
	that.conns[playerID] = conn
	that.symbols[that.seats[0]] = PlayerX
	that.symbols[that.seats[1]] = PlayerO
	that.status = StatusRunning
	that.turn = PlayerX

	return nil
}

// ApplyMove - validates and applies one move, evaluates win/draw, and
// broadcasts the resulting state to every still-connected participant
// before releasing the room lock. Returns the snapshot and the ids of
// participants whose delivery failed. On rejection the board is untouched
// and nothing is sent.
func (that *Room) ApplyMove(playerID string, pos int) (GameState, []string, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if !that.isSeated(playerID) {
		return GameState{}, nil, fmt.Errorf("%w: %s", apperror.ErrUnknownPlayer, playerID)
	}

	if that.status != StatusRunning {
		return GameState{}, nil, apperror.ErrGameNotRunning
	}

	mark := that.symbols[playerID]

	if that.turn != mark {
		return GameState{}, nil, apperror.ErrNotYourTurn
	}

	if pos < 0 || pos >= len(that.board) {
		return GameState{}, nil, fmt.Errorf("%w: %d", apperror.ErrInvalidPosition, pos)
	}

	if that.board[pos] != EmptyCell {
		return GameState{}, nil, apperror.ErrCellOccupied
	}

	that.board[pos] = mark

	switch winner := evaluateBoard(that.board); winner {
	case PlayerX, PlayerO:
		that.status = StatusEnded
		that.turn = EmptyCell
		that.result = winner + "_wins"
	case ResultDraw:
		that.status = StatusEnded
		that.turn = EmptyCell
		that.result = ResultDraw
	default:
		that.turn = toggleMark(mark)
	}

	state := that.snapshot()

	return state, that.broadcast(state.WireMessage()), nil
}

// MarkAbandoned - ends a running game because one side disconnected and
// tells whoever is still connected. No-op when the game already ended.
func (that *Room) MarkAbandoned(remainingSymbol string) (GameState, []string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.status != StatusRunning {
		return that.snapshot(), nil
	}

	that.status = StatusEnded
	that.turn = EmptyCell
	that.result = remainingSymbol + "_disconnected"

	state := that.snapshot()

	return state, that.broadcast(state.WireMessage())
}

// RelayChat - forwards a chat line to every participant except the sender.
func (that *Room) RelayChat(fromID, text string) ([]string, error) {
	msg, err := protocol.NewEvent(protocol.TypeChat, protocol.ChatPayload{From: fromID, Text: text})
	if err != nil {
		return nil, fmt.Errorf("failed to encode chat: %w", err)
	}

	that.mu.Lock()
	defer that.mu.Unlock()

	if !that.isSeated(fromID) {
		return nil, fmt.Errorf("%w: %s", apperror.ErrUnknownPlayer, fromID)
	}

	var failed []string
	for id, conn := range that.conns {
		if id == fromID {
			continue
		}
		if sendErr := conn.Send(msg); sendErr != nil {
			failed = append(failed, id)
		}
	}

	return failed, nil
}

// NotifyPlayer - sends one message to a single seated participant.
func (that *Room) NotifyPlayer(playerID string, msg *protocol.Message) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	conn, connected := that.conns[playerID]
	if !connected {
		return fmt.Errorf("%w: %s", apperror.ErrUnknownPlayer, playerID)
	}

	if err := conn.Send(msg); err != nil {
		return fmt.Errorf("failed to notify %s: %w", playerID, err)
	}

	return nil
}

// ClosePlayerConn - closes and detaches one participant's connection,
// forcing its blocked session to unwind. Closing is idempotent at the
// connection level.
func (that *Room) ClosePlayerConn(playerID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if conn, connected := that.conns[playerID]; connected {
		_ = conn.Close()
		delete(that.conns, playerID)
	}
}

// Abort - retires the room after a failed pairing without telling anyone:
// drops every connection mapping and ends the game, so a participant's
// later teardown finds nothing left to abandon or broadcast to.
func (that *Room) Abort() {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.conns = make(map[string]protocol.Conn)
	that.status = StatusEnded
	that.turn = EmptyCell
}

// DetachConn - drops the player's connection mapping, keeping the seat and
// symbol for result reporting. Returns how many connections remain.
func (that *Room) DetachConn(playerID string) int {
	that.mu.Lock()
	defer that.mu.Unlock()

	delete(that.conns, playerID)

	return len(that.conns)
}

// ResetToWaiting - returns the room to a one-player waiting state after a
// failed pairing, keeping only the given player seated.
func (that *Room) ResetToWaiting(keepPlayerID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	keepConn := that.conns[keepPlayerID]

	that.seats = []string{keepPlayerID}
	that.symbols = make(map[string]string)
	that.conns = map[string]protocol.Conn{keepPlayerID: keepConn}
	that.board = [9]string{}
	that.status = StatusWaiting
	that.turn = EmptyCell
	that.result = EmptyCell
}

func (that *Room) IsWaiting() bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.status == StatusWaiting
}

func (that *Room) IsRunning() bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.status == StatusRunning
}

// HostID - the first-seated player.
func (that *Room) HostID() string {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.seats[0]
}

// OpponentSymbol - the symbol of the other seated player, if any.
func (that *Room) OpponentSymbol(playerID string) (string, bool) {
	that.mu.Lock()
	defer that.mu.Unlock()

	for id, mark := range that.symbols {
		if id != playerID {
			return mark, true
		}
	}

	return "", false
}

func (that *Room) Snapshot() GameState {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.snapshot()
}

func (that *Room) snapshot() GameState {
	return GameState{
		RoomID: that.id,
		Status: that.status,
		Board:  that.board,
		Turn:   that.turn,
		Result: that.result,
	}
}

// broadcast - sends to every still-connected participant, collecting the
// ids whose delivery failed instead of aborting. Callers hold the lock.
func (that *Room) broadcast(msg *protocol.Message) []string {
	var failed []string
	for id, conn := range that.conns {
		if err := conn.Send(msg); err != nil {
			failed = append(failed, id)
		}
	}

	return failed
}

func (that *Room) isSeated(playerID string) bool {
	for _, id := range that.seats {
		if id == playerID {
			return true
		}
	}

	return false
}

func toggleMark(currentMark string) string {
	if currentMark == PlayerX {
		return PlayerO
	}

	return PlayerX
}

// evaluateBoard - returns the winning mark, ResultDraw on a full board with
// no winner, or the empty string while the game is still open.
func evaluateBoard(board [9]string) string {
	for _, combo := range WinCombos {
		a, b, c := board[combo[0]], board[combo[1]], board[combo[2]]
		if a != EmptyCell && a == b && b == c {
			return a
		}
	}

	for _, cell := range board {
		if cell == EmptyCell {
			return ""
		}
	}

	return ResultDraw
}
