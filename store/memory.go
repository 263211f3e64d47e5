package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/openludo/arena/game/engine"
)

// MemoryStore is an in-process Store used by tests and database-less runs.
// It honors the same uniqueness rules the Mongo indexes enforce.
type MemoryStore struct {
	mu     sync.RWMutex
	rooms  map[string]*Room
	seats  map[string]*Seat
	teams  map[string]*Team
	events []*GameEvent
	users  map[string]*User
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms: make(map[string]*Room),
		seats: make(map[string]*Seat),
		teams: make(map[string]*Team),
		users: make(map[string]*User),
	}
}

// Ping implements Store.
func (s *MemoryStore) Ping(context.Context) error { return nil }

// CreateRoom implements Store.
func (s *MemoryStore) CreateRoom(_ context.Context, room *Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[room.ID]; ok {
		return ErrDuplicate
	}
	for _, r := range s.rooms {
		if r.Code == room.Code {
			return ErrDuplicate
		}
	}
	cp := *room
	s.rooms[room.ID] = &cp
	return nil
}

// GetRoom implements Store.
func (s *MemoryStore) GetRoom(_ context.Context, id string) (*Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *room
	return &cp, nil
}

// GetRoomByCode implements Store.
func (s *MemoryStore) GetRoomByCode(_ context.Context, code string) (*Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, room := range s.rooms {
		if room.Code == code {
			cp := *room
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// ListPublicWaiting implements Store.
func (s *MemoryStore) ListPublicWaiting(_ context.Context) ([]*Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Room
	for _, room := range s.rooms {
		if room.Status == RoomWaiting && room.Settings.Visibility == VisibilityPublic {
			cp := *room
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// UpdateRoom implements Store.
func (s *MemoryStore) UpdateRoom(_ context.Context, room *Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[room.ID]; !ok {
		return ErrNotFound
	}
	cp := *room
	cp.UpdatedAt = time.Now()
	s.rooms[room.ID] = &cp
	return nil
}

// UpsertRoomState implements Store.
func (s *MemoryStore) UpsertRoomState(_ context.Context, roomID string, status RoomStatus, currentPlayerIndex int, gb *engine.GameBoard) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return ErrNotFound
	}
	room.Status = status
	room.CurrentPlayerIndex = currentPlayerIndex
	if gb != nil {
		room.GameBoard = gb.Clone()
	}
	room.UpdatedAt = time.Now()
	return nil
}

// DeleteRoom implements Store.
func (s *MemoryStore) DeleteRoom(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[id]; !ok {
		return ErrNotFound
	}
	delete(s.rooms, id)
	return nil
}

// CreateSeat implements Store, enforcing (roomId, userId) uniqueness.
func (s *MemoryStore) CreateSeat(_ context.Context, seat *Seat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.seats {
		if existing.RoomID == seat.RoomID && existing.UserID == seat.UserID {
			return ErrDuplicate
		}
	}
	cp := *seat
	s.seats[seat.ID] = &cp
	return nil
}

// GetSeat implements Store.
func (s *MemoryStore) GetSeat(_ context.Context, roomID, userID string) (*Seat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, seat := range s.seats {
		if seat.RoomID == roomID && seat.UserID == userID {
			cp := *seat
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// GetSeatByID implements Store.
func (s *MemoryStore) GetSeatByID(_ context.Context, id string) (*Seat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seat, ok := s.seats[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *seat
	return &cp, nil
}

// ListSeats implements Store, ordered by slot position.
func (s *MemoryStore) ListSeats(_ context.Context, roomID string) ([]*Seat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Seat
	for _, seat := range s.seats {
		if seat.RoomID == roomID {
			cp := *seat
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

// UpdateSeat implements Store.
func (s *MemoryStore) UpdateSeat(_ context.Context, seat *Seat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seats[seat.ID]; !ok {
		return ErrNotFound
	}
	cp := *seat
	s.seats[seat.ID] = &cp
	return nil
}

// DeleteSeat implements Store.
func (s *MemoryStore) DeleteSeat(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seats[id]; !ok {
		return ErrNotFound
	}
	delete(s.seats, id)
	return nil
}

// DeleteSeatsByRoom implements Store.
func (s *MemoryStore) DeleteSeatsByRoom(_ context.Context, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, seat := range s.seats {
		if seat.RoomID == roomID {
			delete(s.seats, id)
		}
	}
	return nil
}

// UpsertTeam implements Store.
func (s *MemoryStore) UpsertTeam(_ context.Context, team *Team) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, existing := range s.teams {
		if existing.RoomID == team.RoomID && existing.TeamIndex == team.TeamIndex {
			cp := *team
			cp.ID = existing.ID
			s.teams[id] = &cp
			return nil
		}
	}
	cp := *team
	s.teams[team.ID] = &cp
	return nil
}

// ListTeams implements Store.
func (s *MemoryStore) ListTeams(_ context.Context, roomID string) ([]*Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Team
	for _, team := range s.teams {
		if team.RoomID == roomID {
			cp := *team
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TeamIndex < out[j].TeamIndex })
	return out, nil
}

// DeleteTeamsByRoom implements Store.
func (s *MemoryStore) DeleteTeamsByRoom(_ context.Context, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, team := range s.teams {
		if team.RoomID == roomID {
			delete(s.teams, id)
		}
	}
	return nil
}

// AppendEvent implements Store.
func (s *MemoryStore) AppendEvent(_ context.Context, event *GameEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *event
	s.events = append(s.events, &cp)
	return nil
}

// ListEvents implements Store, newest first.
func (s *MemoryStore) ListEvents(_ context.Context, roomID string, limit int) ([]*GameEvent, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*GameEvent
	for i := len(s.events) - 1; i >= 0 && len(out) < limit; i-- {
		if s.events[i].RoomID == roomID {
			cp := *s.events[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

// GetUser implements Store.
func (s *MemoryStore) GetUser(_ context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *user
	return &cp, nil
}

// UpsertUser implements Store.
func (s *MemoryStore) UpsertUser(_ context.Context, user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *user
	s.users[user.ID] = &cp
	return nil
}
