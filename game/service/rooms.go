package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/openludo/arena/game/board"
	"github.com/openludo/arena/store"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// CreateRoomRequest carries the room settings plus the host's preferences.
type CreateRoomRequest struct {
	MaxPlayers    int              `json:"maxPlayers"`
	Mode          store.RoomMode   `json:"mode"`
	Visibility    store.Visibility `json:"visibility"`
	SelectedColor board.Color      `json:"selectedColor,omitempty"`
	TauntMode     store.TauntMode  `json:"tauntMode,omitempty"`
}

// SeatView is a seat joined with its user's display name.
type SeatView struct {
	*store.Seat
	DisplayName string `json:"displayName"`
}

// RoomView is the API shape of a room: the document plus resolved seats and
// teams.
type RoomView struct {
	*store.Room
	Players []*SeatView   `json:"players"`
	Teams   []*store.Team `json:"teams,omitempty"`
}

// RoomSummary is the lobby listing shape.
type RoomSummary struct {
	ID          string           `json:"id"`
	Code        string           `json:"code"`
	MaxPlayers  int              `json:"maxPlayers"`
	Mode        store.RoomMode   `json:"mode"`
	PlayerCount int              `json:"playerCount"`
	Status      store.RoomStatus `json:"status"`
	CreatedAt   time.Time        `json:"createdAt"`
}

// CreateRoom creates a room with the caller as host in their preferred
// color's slot.
func (c *Coordinator) CreateRoom(ctx context.Context, userID string, req CreateRoomRequest) (*RoomView, error) {
	if req.MaxPlayers < 2 || req.MaxPlayers > 6 {
		return nil, E(KindValidation, "maxPlayers must be 2..6")
	}
	switch req.Mode {
	case store.ModeIndividual:
	case store.ModeTeam:
		if req.MaxPlayers != 4 && req.MaxPlayers != 6 {
			return nil, E(KindValidation, "team mode requires 4 or 6 players")
		}
	default:
		return nil, E(KindValidation, "invalid mode")
	}
	switch req.Visibility {
	case store.VisibilityPublic, store.VisibilityPrivate:
	default:
		return nil, E(KindValidation, "invalid visibility")
	}
	switch req.TauntMode {
	case "":
		req.TauntMode = store.TauntSuggestion
	case store.TauntSuggestion, store.TauntHybrid, store.TauntAuto:
	default:
		return nil, E(KindValidation, "invalid tauntMode")
	}
	order := board.ColorOrder(req.MaxPlayers)
	slot := 0
	if req.SelectedColor != "" {
		found := false
		for i, col := range order {
			if col == req.SelectedColor {
				slot, found = i, true
				break
			}
		}
		if !found {
			return nil, E(KindValidation, "selectedColor not available for this player count")
		}
	}

	room := &store.Room{
		ID: uuid.NewString(),
		Settings: store.RoomSettings{
			MaxPlayers: req.MaxPlayers,
			Mode:       req.Mode,
			Visibility: req.Visibility,
			TauntMode:  req.TauntMode,
		},
		Status:    store.RoomWaiting,
		CreatedAt: c.now(),
		UpdatedAt: c.now(),
	}
	if req.Mode == store.ModeTeam {
		half := req.MaxPlayers / 2
		room.Settings.TeamNames = make([]string, half)
		for i := range room.Settings.TeamNames {
			room.Settings.TeamNames[i] = fmt.Sprintf("Team %d", i+1)
		}
	}

	// Retry on code collision; the unique index is the arbiter.
	var err error
	for attempt := 0; attempt < 5; attempt++ {
		room.Code = newRoomCode()
		if err = c.store.CreateRoom(ctx, room); err != store.ErrDuplicate {
			break
		}
	}
	if err != nil {
		return nil, err
	}

	seat := c.newSeat(room, userID, slot)
	if err := c.store.CreateSeat(ctx, seat); err != nil {
		return nil, err
	}
	room.HostSeatID = seat.ID
	room.Seats = []string{seat.ID}
	if err := c.store.UpdateRoom(ctx, room); err != nil {
		return nil, err
	}

	c.recordEvent(ctx, room.ID, "room:created", userID, seat.ID, 0, map[string]any{"code": room.Code})
	return c.roomView(ctx, room)
}

// JoinRoomByCode resolves a code and joins.
func (c *Coordinator) JoinRoomByCode(ctx context.Context, userID, code string, selected board.Color) (*RoomView, error) {
	room, err := c.store.GetRoomByCode(ctx, code)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, errRoomNotFound
		}
		return nil, err
	}
	return c.JoinRoom(ctx, userID, room.ID, selected)
}

// JoinRoom adds the caller to a waiting room. Slot allocation honors the
// color preference when free and otherwise takes the first free slot; the
// unique (roomId, userId) index serializes racing joins, and a slot clash
// retries once against fresh seats.
func (c *Coordinator) JoinRoom(ctx context.Context, userID, roomID string, selected board.Color) (*RoomView, error) {
	for attempt := 0; attempt < 2; attempt++ {
		room, err := c.store.GetRoom(ctx, roomID)
		if err != nil {
			if err == store.ErrNotFound {
				return nil, errRoomNotFound
			}
			return nil, err
		}
		if room.Status != store.RoomWaiting {
			return nil, errRoomNotJoinable
		}
		seats, err := c.store.ListSeats(ctx, roomID)
		if err != nil {
			return nil, err
		}
		if len(seats) >= room.Settings.MaxPlayers {
			return nil, errRoomFull
		}
		for _, s := range seats {
			if s.UserID == userID {
				return nil, E(KindConflict, "already in room")
			}
		}

		slot, ok := pickSlot(room, seats, selected)
		if !ok {
			return nil, errRoomFull
		}
		seat := c.newSeat(room, userID, slot)
		if err := c.store.CreateSeat(ctx, seat); err != nil {
			if err == store.ErrDuplicate {
				continue
			}
			return nil, err
		}

		room.Seats = append(room.Seats, seat.ID)
		if err := c.store.UpdateRoom(ctx, room); err != nil {
			return nil, err
		}
		c.states.Invalidate(ctx, roomID)

		c.recordEvent(ctx, roomID, "room:player-joined", userID, seat.ID, 0, map[string]any{"color": seat.Color})
		view, err := c.roomView(ctx, room)
		if err != nil {
			return nil, err
		}
		c.broadcast.ToRoom(roomID, "room:player-joined", map[string]any{
			"roomId": roomID,
			"seatId": seat.ID,
			"color":  seat.Color,
		})
		return view, nil
	}
	return nil, E(KindConflict, "could not allocate a slot")
}

// LeaveRoom removes the caller's seat. The last leaver deletes the room;
// a leaving host hands off to the earliest remaining slot.
func (c *Coordinator) LeaveRoom(ctx context.Context, userID, roomID string) error {
	room, err := c.store.GetRoom(ctx, roomID)
	if err != nil {
		if err == store.ErrNotFound {
			return errRoomNotFound
		}
		return err
	}
	seat, err := c.store.GetSeat(ctx, roomID, userID)
	if err != nil {
		if err == store.ErrNotFound {
			return errNotInRoom
		}
		return err
	}
	if err := c.store.DeleteSeat(ctx, seat.ID); err != nil {
		return err
	}

	seats, err := c.store.ListSeats(ctx, roomID)
	if err != nil {
		return err
	}
	if len(seats) == 0 {
		if err := c.store.DeleteTeamsByRoom(ctx, roomID); err != nil {
			return err
		}
		if err := c.store.DeleteRoom(ctx, roomID); err != nil && err != store.ErrNotFound {
			return err
		}
		c.states.Forget(ctx, roomID)
		c.dice.Forget(ctx, roomID, []string{seat.ID})
		c.taunts.Forget(roomID)
		return nil
	}

	room.Seats = seatIDs(seats)
	if room.HostSeatID == seat.ID {
		room.HostSeatID = seats[0].ID
	}
	if err := c.store.UpdateRoom(ctx, room); err != nil {
		return err
	}
	// A live snapshot caches the seat list; drop it so the next operation
	// reloads without the departed player.
	c.states.Invalidate(ctx, roomID)

	c.recordEvent(ctx, roomID, "room:player-left", userID, seat.ID, 0, nil)
	c.broadcast.ToRoom(roomID, "room:player-left", map[string]any{
		"roomId":     roomID,
		"seatId":     seat.ID,
		"hostSeatId": room.HostSeatID,
	})
	return nil
}

// SetReady toggles the caller's ready flag while the room is waiting.
func (c *Coordinator) SetReady(ctx context.Context, userID, roomID string) (bool, error) {
	room, err := c.store.GetRoom(ctx, roomID)
	if err != nil {
		if err == store.ErrNotFound {
			return false, errRoomNotFound
		}
		return false, err
	}
	if room.Status != store.RoomWaiting {
		return false, errRoomNotJoinable
	}
	seat, err := c.store.GetSeat(ctx, roomID, userID)
	if err != nil {
		if err == store.ErrNotFound {
			return false, errNotInRoom
		}
		return false, err
	}
	seat.Ready = !seat.Ready
	if err := c.store.UpdateSeat(ctx, seat); err != nil {
		return false, err
	}
	c.states.Invalidate(ctx, roomID)
	c.recordEvent(ctx, roomID, "room:player-ready", userID, seat.ID, 0, map[string]any{"ready": seat.Ready})
	c.broadcast.ToRoom(roomID, "room:player-ready", map[string]any{
		"roomId": roomID,
		"seatId": seat.ID,
		"ready":  seat.Ready,
	})
	return seat.Ready, nil
}

// MoveSlot relocates the caller to a free slot (team mode, waiting rooms).
// The slot determines color and team.
func (c *Coordinator) MoveSlot(ctx context.Context, userID, roomID string, slotIndex int) error {
	room, err := c.store.GetRoom(ctx, roomID)
	if err != nil {
		if err == store.ErrNotFound {
			return errRoomNotFound
		}
		return err
	}
	if room.Status != store.RoomWaiting {
		return errRoomNotJoinable
	}
	if room.Settings.Mode != store.ModeTeam {
		return E(KindConflict, "slot moves are team mode only")
	}
	if slotIndex < 0 || slotIndex >= room.Settings.MaxPlayers {
		return E(KindValidation, "slotIndex out of range")
	}
	seat, err := c.store.GetSeat(ctx, roomID, userID)
	if err != nil {
		if err == store.ErrNotFound {
			return errNotInRoom
		}
		return err
	}
	seats, err := c.store.ListSeats(ctx, roomID)
	if err != nil {
		return err
	}
	for _, s := range seats {
		if s.Position == slotIndex && s.ID != seat.ID {
			return E(KindConflict, "slot taken")
		}
	}

	half := room.Settings.MaxPlayers / 2
	ti := slotIndex % half
	seat.Position = slotIndex
	seat.Color = board.ColorOrder(room.Settings.MaxPlayers)[slotIndex]
	seat.TeamIndex = &ti
	if err := c.store.UpdateSeat(ctx, seat); err != nil {
		return err
	}
	c.states.Invalidate(ctx, roomID)

	c.recordEvent(ctx, roomID, "room:slot-change", userID, seat.ID, 0, map[string]any{"slotIndex": slotIndex})
	c.broadcast.ToRoom(roomID, "room:slot-change", map[string]any{
		"roomId":    roomID,
		"seatId":    seat.ID,
		"slotIndex": slotIndex,
		"color":     seat.Color,
	})
	return nil
}

// SetTeamNames renames the teams (host, team mode, waiting).
func (c *Coordinator) SetTeamNames(ctx context.Context, userID, roomID string, names []string) error {
	room, err := c.store.GetRoom(ctx, roomID)
	if err != nil {
		if err == store.ErrNotFound {
			return errRoomNotFound
		}
		return err
	}
	if room.Status != store.RoomWaiting {
		return errRoomNotJoinable
	}
	if room.Settings.Mode != store.ModeTeam {
		return E(KindConflict, "team names are team mode only")
	}
	seat, err := c.store.GetSeat(ctx, roomID, userID)
	if err != nil {
		if err == store.ErrNotFound {
			return errNotInRoom
		}
		return err
	}
	if seat.ID != room.HostSeatID {
		return errNotHost
	}
	half := room.Settings.MaxPlayers / 2
	if len(names) != half {
		return E(KindValidation, fmt.Sprintf("need %d team names", half))
	}
	for _, name := range names {
		if name == "" || len(name) > 32 {
			return E(KindValidation, "team names must be 1..32 chars")
		}
	}

	room.Settings.TeamNames = append([]string{}, names...)
	if err := c.store.UpdateRoom(ctx, room); err != nil {
		return err
	}
	c.states.Invalidate(ctx, roomID)

	c.recordEvent(ctx, roomID, "room:team-names", userID, seat.ID, 0, map[string]any{"teamNames": names})
	c.broadcast.ToRoom(roomID, "room:team-names", map[string]any{
		"roomId":    roomID,
		"teamNames": names,
	})
	return nil
}

// GetRoom returns a room with its ordered seats and teams.
func (c *Coordinator) GetRoom(ctx context.Context, roomID string) (*RoomView, error) {
	room, err := c.store.GetRoom(ctx, roomID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, errRoomNotFound
		}
		return nil, err
	}
	return c.roomView(ctx, room)
}

// ListRooms returns the public waiting lobby.
func (c *Coordinator) ListRooms(ctx context.Context) ([]*RoomSummary, error) {
	rooms, err := c.store.ListPublicWaiting(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		seats, err := c.store.ListSeats(ctx, room.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, &RoomSummary{
			ID:          room.ID,
			Code:        room.Code,
			MaxPlayers:  room.Settings.MaxPlayers,
			Mode:        room.Settings.Mode,
			PlayerCount: len(seats),
			Status:      room.Status,
			CreatedAt:   room.CreatedAt,
		})
	}
	return out, nil
}

// DeleteRoom tears a room down (host only).
func (c *Coordinator) DeleteRoom(ctx context.Context, userID, roomID string) error {
	room, err := c.store.GetRoom(ctx, roomID)
	if err != nil {
		if err == store.ErrNotFound {
			return errRoomNotFound
		}
		return err
	}
	seat, err := c.store.GetSeat(ctx, roomID, userID)
	if err != nil {
		if err == store.ErrNotFound {
			return errNotInRoom
		}
		return err
	}
	if seat.ID != room.HostSeatID {
		return errNotHost
	}
	seats, err := c.store.ListSeats(ctx, roomID)
	if err != nil {
		return err
	}
	if err := c.store.DeleteSeatsByRoom(ctx, roomID); err != nil {
		return err
	}
	if err := c.store.DeleteTeamsByRoom(ctx, roomID); err != nil {
		return err
	}
	if err := c.store.DeleteRoom(ctx, roomID); err != nil {
		return err
	}
	c.states.Forget(ctx, roomID)
	c.dice.Forget(ctx, roomID, seatIDs(seats))
	c.taunts.Forget(roomID)
	c.broadcast.ToRoom(roomID, "room:deleted", map[string]any{"roomId": roomID})
	return nil
}

func (c *Coordinator) newSeat(room *store.Room, userID string, slot int) *store.Seat {
	seat := &store.Seat{
		ID:       uuid.NewString(),
		RoomID:   room.ID,
		UserID:   userID,
		Color:    board.ColorOrder(room.Settings.MaxPlayers)[slot],
		Position: slot,
		Status:   store.SeatWaiting,
		JoinedAt: c.now(),
	}
	if room.Settings.Mode == store.ModeTeam {
		ti := slot % (room.Settings.MaxPlayers / 2)
		seat.TeamIndex = &ti
	}
	return seat
}

// pickSlot honors the color preference when its slot is free, else takes the
// lowest free slot.
func pickSlot(room *store.Room, seats []*store.Seat, selected board.Color) (int, bool) {
	taken := make(map[int]bool, len(seats))
	for _, s := range seats {
		taken[s.Position] = true
	}
	order := board.ColorOrder(room.Settings.MaxPlayers)
	if selected != "" {
		for i, col := range order {
			if col == selected && !taken[i] {
				return i, true
			}
		}
	}
	for i := range order {
		if !taken[i] {
			return i, true
		}
	}
	return 0, false
}

func (c *Coordinator) roomView(ctx context.Context, room *store.Room) (*RoomView, error) {
	seats, err := c.store.ListSeats(ctx, room.ID)
	if err != nil {
		return nil, err
	}
	players := make([]*SeatView, 0, len(seats))
	for _, seat := range seats {
		players = append(players, &SeatView{Seat: seat, DisplayName: c.displayName(ctx, seat.UserID)})
	}
	view := &RoomView{Room: room, Players: players}
	if room.Settings.Mode == store.ModeTeam {
		teams, err := c.store.ListTeams(ctx, room.ID)
		if err != nil {
			return nil, err
		}
		view.Teams = teams
	}
	return view, nil
}

// newRoomCode draws 6 uppercase alphanumerics from crypto/rand.
func newRoomCode() string {
	var buf [6]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic(fmt.Sprintf("service: crypto/rand: %v", err))
	}
	code := make([]byte, 6)
	for i, b := range buf {
		code[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(code)
}
