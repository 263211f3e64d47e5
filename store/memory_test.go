package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/openludo/arena/game/board"
	"github.com/openludo/arena/game/engine"
)

func newTestRoom(code string) *Room {
	return &Room{
		ID:   uuid.NewString(),
		Code: code,
		Settings: RoomSettings{
			MaxPlayers: 4,
			Mode:       ModeIndividual,
			Visibility: VisibilityPublic,
			TauntMode:  TauntSuggestion,
		},
		Status:    RoomWaiting,
		CreatedAt: time.Now(),
	}
}

func TestMemoryStoreRoomLifecycle(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	room := newTestRoom("AB12CD")
	if err := s.CreateRoom(ctx, room); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.CreateRoom(ctx, newTestRoom("AB12CD")); err != ErrDuplicate {
		t.Errorf("duplicate code: err = %v, want ErrDuplicate", err)
	}

	got, err := s.GetRoomByCode(ctx, "AB12CD")
	if err != nil || got.ID != room.ID {
		t.Fatalf("get by code: %v, %v", got, err)
	}

	rooms, err := s.ListPublicWaiting(ctx)
	if err != nil || len(rooms) != 1 {
		t.Fatalf("list public waiting: %v, %v", rooms, err)
	}

	room.Status = RoomInProgress
	if err := s.UpdateRoom(ctx, room); err != nil {
		t.Fatalf("update: %v", err)
	}
	rooms, _ = s.ListPublicWaiting(ctx)
	if len(rooms) != 0 {
		t.Error("in-progress room still listed as waiting")
	}

	if err := s.DeleteRoom(ctx, room.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetRoom(ctx, room.ID); err != ErrNotFound {
		t.Errorf("get deleted: err = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreSeatUniqueness(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	seat := &Seat{ID: uuid.NewString(), RoomID: "r1", UserID: "u1", Color: board.Red}
	if err := s.CreateSeat(ctx, seat); err != nil {
		t.Fatalf("create seat: %v", err)
	}
	dup := &Seat{ID: uuid.NewString(), RoomID: "r1", UserID: "u1", Color: board.Green}
	if err := s.CreateSeat(ctx, dup); err != ErrDuplicate {
		t.Errorf("same user twice in one room: err = %v, want ErrDuplicate", err)
	}
	other := &Seat{ID: uuid.NewString(), RoomID: "r2", UserID: "u1", Color: board.Red}
	if err := s.CreateSeat(ctx, other); err != nil {
		t.Errorf("same user in another room should be fine: %v", err)
	}
}

func TestMemoryStoreSeatsOrderedBySlot(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for _, pos := range []int{2, 0, 1} {
		seat := &Seat{ID: uuid.NewString(), RoomID: "r1", UserID: uuid.NewString(), Position: pos}
		if err := s.CreateSeat(ctx, seat); err != nil {
			t.Fatal(err)
		}
	}
	seats, err := s.ListSeats(ctx, "r1")
	if err != nil {
		t.Fatal(err)
	}
	for i, seat := range seats {
		if seat.Position != i {
			t.Errorf("seats[%d].Position = %d, want %d", i, seat.Position, i)
		}
	}
}

func TestMemoryStoreEventsNewestFirst(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		ev := &GameEvent{
			ID:        uuid.NewString(),
			RoomID:    "r1",
			Type:      "dice:roll",
			Revision:  int64(i + 1),
			CreatedAt: time.Now(),
		}
		if err := s.AppendEvent(ctx, ev); err != nil {
			t.Fatal(err)
		}
	}

	events, err := s.ListEvents(ctx, "r1", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	if events[0].Revision != 5 {
		t.Errorf("newest event revision = %d, want 5", events[0].Revision)
	}
}

func TestMemoryStoreUpsertRoomState(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	room := newTestRoom("ZZZZZZ")
	if err := s.CreateRoom(ctx, room); err != nil {
		t.Fatal(err)
	}

	gb := engine.NewGameBoard([]board.Color{board.Red, board.Yellow})
	gb.Revision = 7
	if err := s.UpsertRoomState(ctx, room.ID, RoomInProgress, 1, gb); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetRoom(ctx, room.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != RoomInProgress || got.CurrentPlayerIndex != 1 {
		t.Errorf("room = %s idx %d, want in_progress idx 1", got.Status, got.CurrentPlayerIndex)
	}
	if got.GameBoard == nil || got.GameBoard.Revision != 7 {
		t.Error("flushed board revision not persisted")
	}
}
