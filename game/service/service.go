// Package service is the room coordinator: it validates every request,
// drives the rule engine and the engagement dice engine inside the room's
// critical section, records events and publishes patches. All game semantics
// above the pure engine live here.
package service

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/openludo/arena/game/board"
	"github.com/openludo/arena/game/dice"
	"github.com/openludo/arena/game/state"
	"github.com/openludo/arena/game/taunt"
	"github.com/openludo/arena/store"
)

// moveGrace is how long a player holds an outstanding dice before anyone may
// skip them.
const moveGrace = 20 * time.Second

// Broadcaster is the publish primitive the coordinator needs from the
// realtime layer. The websocket hub implements it; tests use a recorder.
type Broadcaster interface {
	ToRoom(roomID, event string, payload any)
	ToUser(userID, event string, payload any)
}

// NopBroadcaster discards everything; used when no realtime layer is wired.
type NopBroadcaster struct{}

func (NopBroadcaster) ToRoom(string, string, any) {}
func (NopBroadcaster) ToUser(string, string, any) {}

// Coordinator wires the store, the state manager, the dice engine and the
// taunt director behind the operation surface.
type Coordinator struct {
	store     store.Store
	states    *state.Manager
	dice      *dice.Engine
	taunts    *taunt.Director
	broadcast Broadcaster

	tauntsOn bool
	rnd      func(n int) int
	now      func() time.Time
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithBroadcaster wires the realtime layer.
func WithBroadcaster(b Broadcaster) Option {
	return func(c *Coordinator) { c.broadcast = b }
}

// WithTauntsEnabled toggles the taunt director.
func WithTauntsEnabled(on bool) Option {
	return func(c *Coordinator) { c.tauntsOn = on }
}

// WithIntn injects the first-player picker for deterministic tests.
func WithIntn(rnd func(n int) int) Option {
	return func(c *Coordinator) { c.rnd = rnd }
}

// WithClock injects the clock for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// New builds a coordinator.
func New(st store.Store, states *state.Manager, d *dice.Engine, td *taunt.Director, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:     st,
		states:    states,
		dice:      d,
		taunts:    td,
		broadcast: NopBroadcaster{},
		tauntsOn:  true,
		rnd:       defaultIntn,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func defaultIntn(n int) int {
	if n <= 1 {
		return 0
	}
	return int(dice.CryptoRNG() * float64(n))
}

// currentSeat resolves whose turn it is: prefer the board's currentPlayerId
// when it still names a live seat, else fall back to the clamped index.
func currentSeat(snap *state.Snapshot) *store.Seat {
	if len(snap.Seats) == 0 {
		return nil
	}
	if snap.Room.GameBoard != nil && snap.Room.GameBoard.CurrentPlayerID != "" {
		for _, seat := range snap.Seats {
			if seat.ID == snap.Room.GameBoard.CurrentPlayerID {
				return seat
			}
		}
	}
	idx := snap.Room.CurrentPlayerIndex
	if idx < 0 || idx >= len(snap.Seats) {
		idx = 0
	}
	return snap.Seats[idx]
}

// controlledColors lists the colors a seat plays: its own, plus the partner
// color in team mode.
func controlledColors(room *store.Room, seat *store.Seat) []board.Color {
	if room.Settings.Mode != store.ModeTeam {
		return []board.Color{seat.Color}
	}
	if partner, ok := board.PartnerColor(seat.Color, room.Settings.MaxPlayers); ok {
		return []board.Color{seat.Color, partner}
	}
	return []board.Color{seat.Color}
}

// sides partitions the active colors into competing sides for the ranking
// context: one color per seat, or one pair per team.
func sides(snap *state.Snapshot, self *store.Seat) (out [][]board.Color, selfIdx int) {
	if snap.Room.Settings.Mode != store.ModeTeam {
		for i, seat := range snap.Seats {
			out = append(out, []board.Color{seat.Color})
			if seat.ID == self.ID {
				selfIdx = i
			}
		}
		return out, selfIdx
	}
	half := snap.Room.Settings.MaxPlayers / 2
	grouped := make([][]board.Color, half)
	for _, seat := range snap.Seats {
		ti := seat.Position % half
		grouped[ti] = append(grouped[ti], seat.Color)
		if seat.ID == self.ID {
			selfIdx = ti
		}
	}
	return grouped, selfIdx
}

// seatByColor finds the seat owning a color.
func seatByColor(seats []*store.Seat, c board.Color) *store.Seat {
	for _, seat := range seats {
		if seat.Color == c {
			return seat
		}
	}
	return nil
}

// seatIDs lists seat IDs in slot order.
func seatIDs(seats []*store.Seat) []string {
	out := make([]string, len(seats))
	for i, seat := range seats {
		out[i] = seat.ID
	}
	return out
}

// recordEvent appends to the durable audit log. Failures are logged; the
// socket patch remains the source of truth.
func (c *Coordinator) recordEvent(ctx context.Context, roomID, eventType, userID, seatID string, revision int64, payload map[string]any) {
	ev := &store.GameEvent{
		ID:          uuid.NewString(),
		RoomID:      roomID,
		Type:        eventType,
		ActorUserID: userID,
		ActorSeatID: seatID,
		Revision:    revision,
		Payload:     payload,
		CreatedAt:   c.now(),
	}
	if err := c.store.AppendEvent(ctx, ev); err != nil {
		log.Printf("service: record %s for room %s: %v", eventType, roomID, err)
	}
}

// ListEvents returns the recent audit trail, newest first.
func (c *Coordinator) ListEvents(ctx context.Context, roomID string, limit int) ([]*store.GameEvent, error) {
	if _, err := c.store.GetRoom(ctx, roomID); err != nil {
		if err == store.ErrNotFound {
			return nil, errRoomNotFound
		}
		return nil, err
	}
	return c.store.ListEvents(ctx, roomID, limit)
}

// Health reports dependency reachability for the health endpoint.
func (c *Coordinator) Health(ctx context.Context) (dbOK bool, cacheOK bool) {
	dbOK = c.store.Ping(ctx) == nil
	cacheOK = c.states.CacheConnected(ctx)
	return dbOK, cacheOK
}

// RegisterGuest creates a throwaway user document for guest auth.
func (c *Coordinator) RegisterGuest(ctx context.Context, displayName string) (*store.User, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = "Guest"
	}
	if len(displayName) > 32 {
		return nil, E(KindValidation, "displayName too long")
	}
	user := &store.User{
		ID:          uuid.NewString(),
		DisplayName: displayName,
		CreatedAt:   c.now(),
	}
	if err := c.store.UpsertUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// displayName resolves a user's name, falling back to a guest label.
func (c *Coordinator) displayName(ctx context.Context, userID string) string {
	user, err := c.store.GetUser(ctx, userID)
	if err != nil || user.DisplayName == "" {
		return "Guest"
	}
	return user.DisplayName
}
