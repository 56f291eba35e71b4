package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rocketscienceinc/tictactoe-arena/internal/entity"
)

var ErrMatchNotFound = errors.New("match not found")

// MatchRecord is the archived form of a finished game.
type MatchRecord struct {
	RoomID     string    `json:"room_id"`
	Board      [9]string `json:"board"`
	Result     string    `json:"result"`
	FinishedAt time.Time `json:"finished_at"`
}

// MatchRepository archives finished matches. Live games never touch it.
type MatchRepository interface {
	Save(ctx context.Context, state entity.GameState) error
	GetByRoomID(ctx context.Context, roomID string) (*MatchRecord, error)
}

type dbMatch struct {
	client *redis.Client
}

func NewMatchRepository(client *redis.Client) MatchRepository {
	return &dbMatch{
		client: client,
	}
}

func (that *dbMatch) Save(ctx context.Context, state entity.GameState) error {
	record := MatchRecord{
		RoomID:     state.RoomID,
		Board:      state.Board,
		Result:     state.Result,
		FinishedAt: time.Now().UTC(),
	}

	recordJSON, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal match: %w", err)
	}

	matchKey := "match:" + state.RoomID
	if err = that.client.Set(ctx, matchKey, recordJSON, 0).Err(); err != nil {
		return fmt.Errorf("failed to set match: %w", err)
	}

	return nil
}

func (that *dbMatch) GetByRoomID(ctx context.Context, roomID string) (*MatchRecord, error) {
	matchKey := "match:" + roomID

	response, err := that.client.Get(ctx, matchKey).Result()

	if errors.Is(err, redis.Nil) {
		return nil, ErrMatchNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get match by room id: %w", err)
	}

	var record MatchRecord
	if err = json.Unmarshal([]byte(response), &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal match: %w", err)
	}

	return &record, nil
}
