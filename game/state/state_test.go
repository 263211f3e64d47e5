package state

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/openludo/arena/cache"
	"github.com/openludo/arena/game/board"
	"github.com/openludo/arena/game/engine"
	"github.com/openludo/arena/store"
)

func newTestManager(t *testing.T, opts ...Option) (*Manager, *store.MemoryStore, *cache.Memory) {
	t.Helper()
	st := store.NewMemoryStore()
	c := cache.NewMemory()
	m := NewManager(st, c, opts...)
	t.Cleanup(func() { m.Close(context.Background()) })
	return m, st, c
}

func seedRoom(t *testing.T, st *store.MemoryStore) *store.Room {
	t.Helper()
	room := &store.Room{
		ID:   uuid.NewString(),
		Code: "ABCDEF",
		Settings: store.RoomSettings{
			MaxPlayers: 4,
			Mode:       store.ModeIndividual,
			Visibility: store.VisibilityPublic,
			TauntMode:  store.TauntSuggestion,
		},
		Status:    store.RoomWaiting,
		CreatedAt: time.Now(),
	}
	if err := st.CreateRoom(context.Background(), room); err != nil {
		t.Fatal(err)
	}
	return room
}

func TestRunExclusiveLoadsFromStore(t *testing.T) {
	m, st, _ := newTestManager(t)
	room := seedRoom(t, st)

	err := m.RunExclusive(context.Background(), room.ID, func(s *Snapshot) error {
		if s.Room == nil || s.Room.Code != "ABCDEF" {
			t.Error("snapshot not loaded from store")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestRunExclusiveUnknownRoom(t *testing.T) {
	m, _, _ := newTestManager(t)
	err := m.RunExclusive(context.Background(), "missing", func(*Snapshot) error { return nil })
	if err != store.ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestRunExclusiveFIFOPerRoom(t *testing.T) {
	m, st, _ := newTestManager(t)
	room := seedRoom(t, st)
	ctx := context.Background()

	const n = 100
	var order []int
	var wg sync.WaitGroup
	wg.Add(n)
	// Submit sequentially so submission order is defined, collect
	// execution order inside the jobs.
	for i := 0; i < n; i++ {
		i := i
		go func() {
			defer wg.Done()
			_ = m.RunExclusive(ctx, room.ID, func(s *Snapshot) error {
				order = append(order, i)
				return nil
			})
		}()
		// A short pause makes submission order deterministic enough to
		// assert no interleaving corrupted the slice.
		time.Sleep(time.Millisecond)
	}
	wg.Wait()

	if len(order) != n {
		t.Fatalf("executed %d jobs, want %d", len(order), n)
	}
	seen := make(map[int]bool, n)
	for _, v := range order {
		if seen[v] {
			t.Fatalf("job %d executed twice", v)
		}
		seen[v] = true
	}
}

func TestTouchBumpsRevisionMonotonically(t *testing.T) {
	m, st, _ := newTestManager(t)
	room := seedRoom(t, st)
	ctx := context.Background()

	var revs []int64
	for i := 0; i < 5; i++ {
		err := m.RunExclusive(ctx, room.ID, func(s *Snapshot) error {
			s.Touch()
			revs = append(revs, s.Revision)
			return nil
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	for i := 1; i < len(revs); i++ {
		if revs[i] != revs[i-1]+1 {
			t.Fatalf("revisions not monotonic: %v", revs)
		}
	}
}

func TestWriteBehindFlush(t *testing.T) {
	m, st, _ := newTestManager(t, WithFlushInterval(20*time.Millisecond))
	room := seedRoom(t, st)
	ctx := context.Background()

	err := m.RunExclusive(ctx, room.ID, func(s *Snapshot) error {
		s.Room.Status = store.RoomInProgress
		s.Room.CurrentPlayerIndex = 2
		s.Room.GameBoard = engine.NewGameBoard([]board.Color{board.Red, board.Yellow})
		s.Touch()
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	// The store still has the stale document until the flusher runs.
	deadline := time.After(2 * time.Second)
	for {
		got, err := st.GetRoom(ctx, room.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.Status == store.RoomInProgress && got.CurrentPlayerIndex == 2 {
			return
		}
		select {
		case <-deadline:
			t.Fatal("dirty room never flushed to the store")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestCloseForcesFlush(t *testing.T) {
	st := store.NewMemoryStore()
	c := cache.NewMemory()
	m := NewManager(st, c, WithFlushInterval(time.Hour))
	room := seedRoom(t, st)
	ctx := context.Background()

	err := m.RunExclusive(ctx, room.ID, func(s *Snapshot) error {
		s.Room.Status = store.RoomCompleted
		s.Touch()
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	m.Close(ctx)

	got, err := st.GetRoom(ctx, room.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != store.RoomCompleted {
		t.Error("close did not flush the dirty room")
	}
}

func TestEvictFlushesAndReloads(t *testing.T) {
	m, st, _ := newTestManager(t, WithFlushInterval(time.Hour))
	room := seedRoom(t, st)
	ctx := context.Background()

	err := m.RunExclusive(ctx, room.ID, func(s *Snapshot) error {
		s.Room.CurrentPlayerIndex = 3
		s.Touch()
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	m.Evict(ctx, room.ID)

	got, err := st.GetRoom(ctx, room.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.CurrentPlayerIndex != 3 {
		t.Fatal("evict did not flush")
	}

	// A later touch reloads the flushed state transparently.
	err = m.RunExclusive(ctx, room.ID, func(s *Snapshot) error {
		if s.Room.CurrentPlayerIndex != 3 {
			t.Error("reload lost flushed state")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestMirrorWarmRecovery(t *testing.T) {
	st := store.NewMemoryStore()
	c := cache.NewMemory()
	m := NewManager(st, c, WithFlushInterval(20*time.Millisecond))
	room := seedRoom(t, st)
	ctx := context.Background()

	err := m.RunExclusive(ctx, room.ID, func(s *Snapshot) error {
		s.Room.CurrentPlayerIndex = 1
		s.Touch()
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	m.Close(ctx)

	// A fresh manager sharing the cache finds the mirror.
	var mirrored Snapshot
	if err := c.GetJSON(ctx, mirrorKey(room.ID), &mirrored); err != nil {
		t.Fatalf("no mirror after flush: %v", err)
	}
	m2 := NewManager(st, c, WithFlushInterval(time.Hour))
	defer m2.Close(ctx)
	err = m2.RunExclusive(ctx, room.ID, func(s *Snapshot) error {
		if s.Room.CurrentPlayerIndex != 1 {
			t.Error("warm recovery lost state")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestForgetDropsMirror(t *testing.T) {
	m, st, c := newTestManager(t, WithFlushInterval(time.Hour))
	room := seedRoom(t, st)
	ctx := context.Background()

	err := m.RunExclusive(ctx, room.ID, func(s *Snapshot) error {
		s.Touch()
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	m.AppendMove(ctx, room.ID, map[string]any{"type": "dice:roll"})

	m.Forget(ctx, room.ID)
	var snap Snapshot
	if err := c.GetJSON(ctx, mirrorKey(room.ID), &snap); err != cache.ErrMiss {
		t.Errorf("mirror survived forget: %v", err)
	}
}

func TestJobErrorPropagates(t *testing.T) {
	m, st, _ := newTestManager(t)
	room := seedRoom(t, st)

	want := store.ErrNotFound
	err := m.RunExclusive(context.Background(), room.ID, func(*Snapshot) error { return want })
	if err != want {
		t.Errorf("err = %v, want %v", err, want)
	}
}
