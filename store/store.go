// Package store defines the durable documents of the game server and the
// Store interface the coordinator and flusher depend on. The Mongo binding
// is the production store; the memory binding backs tests and local runs
// without a database.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/openludo/arena/game/board"
	"github.com/openludo/arena/game/engine"
)

var (
	ErrNotFound  = errors.New("store: not found")
	ErrDuplicate = errors.New("store: duplicate")
)

// RoomStatus is the monotonic room lifecycle.
type RoomStatus string

const (
	RoomWaiting    RoomStatus = "waiting"
	RoomInProgress RoomStatus = "in_progress"
	RoomCompleted  RoomStatus = "completed"
)

// RoomMode selects individual or team play.
type RoomMode string

const (
	ModeIndividual RoomMode = "individual"
	ModeTeam       RoomMode = "team"
)

// Visibility controls lobby listing.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// TauntMode selects how the taunt director delivers lines.
type TauntMode string

const (
	TauntSuggestion TauntMode = "suggestion"
	TauntHybrid     TauntMode = "hybrid"
	TauntAuto       TauntMode = "auto"
)

// SeatStatus tracks a player's state within a room.
type SeatStatus string

const (
	SeatWaiting  SeatStatus = "waiting"
	SeatPlaying  SeatStatus = "playing"
	SeatFinished SeatStatus = "finished"
)

// RoomSettings are fixed at creation except teamNames.
type RoomSettings struct {
	MaxPlayers int        `json:"maxPlayers" bson:"maxPlayers"`
	Mode       RoomMode   `json:"mode" bson:"mode"`
	Visibility Visibility `json:"visibility" bson:"visibility"`
	TeamNames  []string   `json:"teamNames,omitempty" bson:"teamNames,omitempty"`
	TauntMode  TauntMode  `json:"tauntMode" bson:"tauntMode"`
}

// Room is the durable room document. GameBoard is the flushed snapshot of
// the runtime state; the in-memory copy in the state cache is authoritative
// while the room is active.
type Room struct {
	ID                 string            `json:"id" bson:"_id"`
	Code               string            `json:"code" bson:"code"`
	HostSeatID         string            `json:"hostSeatId" bson:"hostSeatId"`
	Settings           RoomSettings      `json:"settings" bson:"settings"`
	Status             RoomStatus        `json:"status" bson:"status"`
	CurrentPlayerIndex int               `json:"currentPlayerIndex" bson:"currentPlayerIndex"`
	GameBoard          *engine.GameBoard `json:"gameBoard,omitempty" bson:"gameBoard,omitempty"`
	Seats              []string          `json:"seats" bson:"seats"`
	CreatedAt          time.Time         `json:"createdAt" bson:"createdAt"`
	UpdatedAt          time.Time         `json:"updatedAt" bson:"updatedAt"`
}

// Seat is a player's slot in a room. (RoomID, UserID) is unique.
type Seat struct {
	ID        string      `json:"id" bson:"_id"`
	RoomID    string      `json:"roomId" bson:"roomId"`
	UserID    string      `json:"userId" bson:"userId"`
	Color     board.Color `json:"color" bson:"color"`
	Position  int         `json:"position" bson:"position"`
	TeamIndex *int        `json:"teamIndex,omitempty" bson:"teamIndex,omitempty"`
	Status    SeatStatus  `json:"status" bson:"status"`
	Ready     bool        `json:"ready" bson:"ready"`
	JoinedAt  time.Time   `json:"joinedAt" bson:"joinedAt"`
}

// Team is a denormalized snapshot of a team-mode partition.
type Team struct {
	ID        string   `json:"id" bson:"_id"`
	RoomID    string   `json:"roomId" bson:"roomId"`
	TeamIndex int      `json:"teamIndex" bson:"teamIndex"`
	Name      string   `json:"name" bson:"name"`
	SeatIDs   []string `json:"seatIds" bson:"seatIds"`
}

// GameEvent is one record of the append-only log. Never mutated.
type GameEvent struct {
	ID          string         `json:"id" bson:"_id"`
	RoomID      string         `json:"roomId" bson:"roomId"`
	Type        string         `json:"type" bson:"type"`
	ActorUserID string         `json:"actorUserId,omitempty" bson:"actorUserId,omitempty"`
	ActorSeatID string         `json:"actorSeatId,omitempty" bson:"actorSeatId,omitempty"`
	Revision    int64          `json:"revision" bson:"revision"`
	Payload     map[string]any `json:"payload,omitempty" bson:"payload,omitempty"`
	CreatedAt   time.Time      `json:"createdAt" bson:"createdAt"`
}

// User is the minimal profile the core reads for display names.
type User struct {
	ID          string    `json:"id" bson:"_id"`
	DisplayName string    `json:"displayName" bson:"displayName"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
}

// Store is the durable-store surface the core consumes: an opaque
// key-to-document mapping with conditional updates and a few secondary
// indexes.
type Store interface {
	CreateRoom(ctx context.Context, room *Room) error
	GetRoom(ctx context.Context, id string) (*Room, error)
	GetRoomByCode(ctx context.Context, code string) (*Room, error)
	ListPublicWaiting(ctx context.Context) ([]*Room, error)
	UpdateRoom(ctx context.Context, room *Room) error
	// UpsertRoomState is the write-behind flush target: it replaces the
	// runtime fields under the room key in one conditional update.
	UpsertRoomState(ctx context.Context, roomID string, status RoomStatus, currentPlayerIndex int, gb *engine.GameBoard) error
	DeleteRoom(ctx context.Context, id string) error

	CreateSeat(ctx context.Context, seat *Seat) error
	GetSeat(ctx context.Context, roomID, userID string) (*Seat, error)
	GetSeatByID(ctx context.Context, id string) (*Seat, error)
	ListSeats(ctx context.Context, roomID string) ([]*Seat, error)
	UpdateSeat(ctx context.Context, seat *Seat) error
	DeleteSeat(ctx context.Context, id string) error
	DeleteSeatsByRoom(ctx context.Context, roomID string) error

	UpsertTeam(ctx context.Context, team *Team) error
	ListTeams(ctx context.Context, roomID string) ([]*Team, error)
	DeleteTeamsByRoom(ctx context.Context, roomID string) error

	AppendEvent(ctx context.Context, event *GameEvent) error
	ListEvents(ctx context.Context, roomID string, limit int) ([]*GameEvent, error)

	GetUser(ctx context.Context, id string) (*User, error)
	UpsertUser(ctx context.Context, user *User) error

	// Ping reports store reachability for /health.
	Ping(ctx context.Context) error
}
