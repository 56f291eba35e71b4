package usecase

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/rocketscienceinc/tictactoe-arena/internal/entity"
	"github.com/rocketscienceinc/tictactoe-arena/internal/protocol"
	"github.com/rocketscienceinc/tictactoe-arena/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testMaxFrame = 65536
	waitFor      = 2 * time.Second
	quietFor     = 100 * time.Millisecond
)

func newSessionManager(strict bool) *SessionManager {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	roster := service.NewRoster()

	return NewSessionManager(
		logger,
		service.NewRegistry(),
		roster,
		service.NewMatchmaker(logger, roster),
		nil,
		strict,
	)
}

// testClient talks to an in-process session over a synchronous pipe. A pump
// goroutine drains incoming frames so server-side broadcasts never block.
type testClient struct {
	t        *testing.T
	conn     net.Conn
	codec    *protocol.Codec
	incoming chan *protocol.Message
}

func dial(t *testing.T, manager *SessionManager) *testClient {
	t.Helper()

	serverSide, clientSide := net.Pipe()

	go manager.Handle(context.Background(), protocol.NewStreamConn(serverSide, testMaxFrame))

	client := &testClient{
		t:        t,
		conn:     clientSide,
		codec:    protocol.NewCodec(clientSide, testMaxFrame),
		incoming: make(chan *protocol.Message, 16),
	}

	go func() {
		for {
			msg, err := client.codec.Receive()
			if err != nil {
				close(client.incoming)
				return
			}
			client.incoming <- msg
		}
	}()

	t.Cleanup(func() {
		_ = clientSide.Close()
	})

	return client
}

func (that *testClient) send(msg *protocol.Message) {
	that.t.Helper()
	require.NoError(that.t, that.codec.Send(msg))
}

func (that *testClient) next() *protocol.Message {
	that.t.Helper()

	select {
	case msg, ok := <-that.incoming:
		if !ok {
			that.t.Fatal("connection closed while a message was expected")
		}
		return msg
	case <-time.After(waitFor):
		that.t.Fatal("timed out waiting for a message")
		return nil
	}
}

func (that *testClient) nextOrNil() *protocol.Message {
	select {
	case msg := <-that.incoming:
		return msg
	case <-time.After(waitFor):
		return nil
	}
}

func (that *testClient) expectSilence() {
	that.t.Helper()

	select {
	case msg, ok := <-that.incoming:
		if ok {
			that.t.Fatalf("unexpected message: %+v", msg)
		}
	case <-time.After(quietFor):
	}
}

func (that *testClient) expectClosed() {
	that.t.Helper()

	select {
	case msg, ok := <-that.incoming:
		if ok {
			that.t.Fatalf("expected close, got message: %+v", msg)
		}
	case <-time.After(waitFor):
		that.t.Fatal("timed out waiting for the connection to close")
	}
}

func (that *testClient) move(roomID string, pos int) {
	that.t.Helper()
	that.send(&protocol.Message{Action: protocol.ActionMove, RoomID: roomID, Pos: &pos})
}

func gameState(t *testing.T, msg *protocol.Message) protocol.GameStatePayload {
	t.Helper()

	require.Equal(t, protocol.TypeGameState, msg.Type)

	var payload protocol.GameStatePayload
	require.NoError(t, json.Unmarshal(msg.Data, &payload))

	return payload
}

func matchFound(t *testing.T, msg *protocol.Message) protocol.MatchFoundPayload {
	t.Helper()

	require.Equal(t, protocol.TypeMatchFound, msg.Type)

	var payload protocol.MatchFoundPayload
	require.NoError(t, json.Unmarshal(msg.Data, &payload))

	return payload
}

// pairClients - logs in two players and returns them with their room id.
func pairClients(t *testing.T, manager *SessionManager, hostName, joinerName string) (*testClient, *testClient, string) {
	t.Helper()

	host := dial(t, manager)
	host.send(&protocol.Message{PlayerID: hostName})

	ack := host.next()
	require.NotNil(t, ack.OK)
	require.True(t, *ack.OK)
	require.Equal(t, protocol.StatusWaiting, ack.Status)

	joiner := dial(t, manager)
	joiner.send(&protocol.Message{PlayerID: joinerName})

	hostNotice := matchFound(t, host.next())
	joinerNotice := matchFound(t, joiner.next())

	require.Equal(t, entity.PlayerX, hostNotice.YouAre)
	require.Equal(t, joinerName, hostNotice.Opponent)
	require.Equal(t, entity.PlayerO, joinerNotice.YouAre)
	require.Equal(t, hostName, joinerNotice.Opponent)
	require.Equal(t, hostNotice.GameID, joinerNotice.GameID)

	return host, joiner, hostNotice.GameID
}

func TestSession_Login(t *testing.T) {
	t.Run("Rejects a missing player id", func(t *testing.T) {
		manager := newSessionManager(false)

		client := dial(t, manager)
		client.send(&protocol.Message{})

		reply := client.next()
		require.NotNil(t, reply.OK)
		assert.False(t, *reply.OK)
		assert.Equal(t, "player_id is required", reply.Reason)
		client.expectClosed()
	})

	t.Run("Rejects a name that is already connected", func(t *testing.T) {
		// Given: alice is connected and waiting
		manager := newSessionManager(false)

		alice := dial(t, manager)
		alice.send(&protocol.Message{PlayerID: "alice"})
		require.Equal(t, protocol.StatusWaiting, alice.next().Status)

		// When: a second client logs in as alice
		impostor := dial(t, manager)
		impostor.send(&protocol.Message{PlayerID: "alice"})

		// Then: the login is refused and that session ends
		reply := impostor.next()
		require.NotNil(t, reply.OK)
		assert.False(t, *reply.OK)
		assert.Equal(t, "name already in use", reply.Reason)
		impostor.expectClosed()
	})

	t.Run("A released name is reservable by a new login", func(t *testing.T) {
		// Given: alice connected and disconnected
		manager := newSessionManager(false)

		alice := dial(t, manager)
		alice.send(&protocol.Message{PlayerID: "alice"})
		require.Equal(t, protocol.StatusWaiting, alice.next().Status)
		require.NoError(t, alice.conn.Close())

		// When/Then: a new session eventually logs in with the same name
		require.Eventually(t, func() bool {
			retry := dial(t, manager)
			retry.send(&protocol.Message{PlayerID: "alice"})

			reply := retry.nextOrNil()
			_ = retry.conn.Close()

			return reply != nil && reply.OK != nil && *reply.OK
		}, waitFor, 50*time.Millisecond)
	})
}

func TestSession_PlayToWin(t *testing.T) {
	// Given: alice (X) and bob (O) paired
	manager := newSessionManager(false)
	alice, bob, roomID := pairClients(t, manager, "alice", "bob")

	// When: alice opens on cell 0
	alice.move(roomID, 0)

	// Then: both sides see the board with X on 0 and O to move
	for _, client := range []*testClient{alice, bob} {
		state := gameState(t, client.next())
		assert.Equal(t, entity.StatusRunning, state.Status)
		require.NotNil(t, state.Board[0])
		assert.Equal(t, entity.PlayerX, *state.Board[0])
		require.NotNil(t, state.Turn)
		assert.Equal(t, entity.PlayerO, *state.Turn)
	}

	// When: bob tries the same cell
	bob.move(roomID, 0)

	// Then: only bob is told the cell is occupied, the board is unchanged
	reply := bob.next()
	require.NotNil(t, reply.OK)
	assert.False(t, *reply.OK)
	assert.Equal(t, "cell is already occupied", reply.Reason)
	alice.expectSilence()

	// When: the game continues until alice completes the top row
	rest := []struct {
		client *testClient
		pos    int
	}{
		{bob, 3},
		{alice, 1},
		{bob, 4},
		{alice, 2},
	}

	var final protocol.GameStatePayload
	for _, move := range rest {
		move.client.move(roomID, move.pos)
		final = gameState(t, alice.next())
		bob.next()
	}

	// Then: the last broadcast reports the win and no further turn
	assert.Equal(t, entity.StatusEnded, final.Status)
	assert.Equal(t, "X_wins", final.Result)
	assert.Nil(t, final.Turn)
}

func TestSession_Draw(t *testing.T) {
	// Given: alice (X) and bob (O) paired
	manager := newSessionManager(false)
	alice, bob, roomID := pairClients(t, manager, "alice", "bob")

	// When: they fill the board with no three-in-a-row
	moves := []struct {
		client *testClient
		pos    int
	}{
		{alice, 0}, {bob, 1},
		{alice, 2}, {bob, 4},
		{alice, 3}, {bob, 5},
		{alice, 7}, {bob, 6},
		{alice, 8},
	}

	var final protocol.GameStatePayload
	for _, move := range moves {
		move.client.move(roomID, move.pos)
		final = gameState(t, alice.next())
		bob.next()
	}

	// Then: the game ends in a draw
	assert.Equal(t, entity.StatusEnded, final.Status)
	assert.Equal(t, "draw", final.Result)
	assert.Nil(t, final.Turn)
}

func TestSession_OpponentDisconnect(t *testing.T) {
	// Given: a running game
	manager := newSessionManager(false)
	alice, bob, roomID := pairClients(t, manager, "alice", "bob")

	alice.move(roomID, 0)
	gameState(t, alice.next())
	gameState(t, bob.next())

	// When: bob drops the connection
	require.NoError(t, bob.conn.Close())

	// Then: alice receives exactly one ended state crediting her side
	state := gameState(t, alice.next())
	assert.Equal(t, entity.StatusEnded, state.Status)
	assert.Equal(t, "X_disconnected", state.Result)
	assert.Nil(t, state.Turn)
	alice.expectSilence()
}

func TestSession_MoveOnUnknownRoom(t *testing.T) {
	// Given: alice waiting alone
	manager := newSessionManager(false)

	alice := dial(t, manager)
	alice.send(&protocol.Message{PlayerID: "alice"})
	require.Equal(t, protocol.StatusWaiting, alice.next().Status)

	// When: she moves on a room that does not exist
	alice.move("no-such-room", 0)

	// Then: the request is rejected, the session survives
	reply := alice.next()
	require.NotNil(t, reply.OK)
	assert.False(t, *reply.OK)
	assert.Equal(t, "opponent not found", reply.Reason)
}

func TestSession_Chat(t *testing.T) {
	// Given: alice and bob paired
	manager := newSessionManager(false)
	alice, bob, roomID := pairClients(t, manager, "alice", "bob")

	// When: alice sends a chat line
	alice.send(&protocol.Message{Action: protocol.ActionChat, RoomID: roomID, Text: "good luck"})

	// Then: bob receives it, alice does not echo
	msg := bob.next()
	require.Equal(t, protocol.TypeChat, msg.Type)

	var payload protocol.ChatPayload
	require.NoError(t, json.Unmarshal(msg.Data, &payload))
	assert.Equal(t, "alice", payload.From)
	assert.Equal(t, "good luck", payload.Text)
	alice.expectSilence()
}

func TestSession_StrictMoveErrors(t *testing.T) {
	// Given: a strict server and a running game
	manager := newSessionManager(true)
	alice, bob, roomID := pairClients(t, manager, "alice", "bob")

	// When: bob moves out of turn
	bob.move(roomID, 0)

	// Then: the rejection ends bob's session
	reply := bob.next()
	require.NotNil(t, reply.OK)
	assert.False(t, *reply.OK)
	assert.Equal(t, "it's not your turn", reply.Reason)
	bob.expectClosed()

	// Then: alice is told the game is over
	state := gameState(t, alice.next())
	assert.Equal(t, entity.StatusEnded, state.Status)
	assert.Equal(t, "X_disconnected", state.Result)
}
