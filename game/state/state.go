// Package state is the authoritative in-memory cache of live rooms. Every
// mutation of a room runs as a job on that room's single executor goroutine,
// so per-room operations are strictly FIFO and never race. Writes land in
// memory first and a background flusher persists dirty rooms to the durable
// store on an interval, with a cache mirror for warm recovery.
package state

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/openludo/arena/cache"
	"github.com/openludo/arena/store"
)

// ErrClosed is returned once the manager is shutting down.
var ErrClosed = errors.New("state: manager closed")

const (
	defaultFlushEvery  = 2 * time.Second
	defaultIdleEvict   = 30 * time.Minute
	defaultMirrorTTL   = 24 * time.Hour
	defaultMovesLogMax = 100
)

// Snapshot is the runtime view of one room: the durable room document plus
// its seats and teams. Executor jobs receive it by pointer and mutate it in
// place; Touch marks the result for the next flush.
type Snapshot struct {
	Room     *store.Room   `json:"room"`
	Seats    []*store.Seat `json:"seats"`
	Teams    []*store.Team `json:"teams"`
	Revision int64         `json:"revision"`

	// dirty is memory-only; it never round-trips through the mirror.
	dirty bool
}

// Touch bumps the revision and marks the snapshot dirty. Every mutation
// must call it; the revision is strictly monotonic per room.
func (s *Snapshot) Touch() {
	s.Revision++
	if s.Room != nil && s.Room.GameBoard != nil {
		s.Room.GameBoard.Revision = s.Revision
	}
	s.dirty = true
}

// entry is one live room: its executor, snapshot and bookkeeping.
type entry struct {
	jobs       chan job
	snap       *Snapshot
	lastAccess time.Time

	mu     sync.Mutex
	closed bool
}

type job struct {
	fn   func(*Snapshot) error
	done chan error
}

// send enqueues a job unless the entry is closed. A blocking send waits for
// queue room; the executor drains independently so the wait is bounded.
func (e *entry) send(j job, block bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	if block {
		e.jobs <- j
		return true
	}
	select {
	case e.jobs <- j:
		return true
	default:
		return false
	}
}

// shut marks the entry closed and stops its executor.
func (e *entry) shut() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	close(e.jobs)
}

// Manager owns every live room. One flusher goroutine serves all of them.
type Manager struct {
	store store.Store
	cache cache.Cache

	mu     sync.Mutex
	rooms  map[string]*entry
	closed bool

	flushEvery  time.Duration
	idleEvict   time.Duration
	mirrorTTL   time.Duration
	movesTTL    time.Duration
	movesLogMax int
	stop        chan struct{}
	done        chan struct{}
}

// Option configures a Manager.
type Option func(*Manager)

// WithFlushInterval overrides the write-behind interval.
func WithFlushInterval(d time.Duration) Option {
	return func(m *Manager) { m.flushEvery = d }
}

// WithIdleEviction overrides how long an untouched room stays resident.
func WithIdleEviction(d time.Duration) Option {
	return func(m *Manager) { m.idleEvict = d }
}

// WithMirrorTTL overrides the state mirror's cache lifetime.
func WithMirrorTTL(d time.Duration) Option {
	return func(m *Manager) { m.mirrorTTL = d }
}

// WithMoveLog overrides the bounded move log's size and lifetime.
func WithMoveLog(max int, ttl time.Duration) Option {
	return func(m *Manager) {
		if max > 0 {
			m.movesLogMax = max
		}
		if ttl > 0 {
			m.movesTTL = ttl
		}
	}
}

// NewManager builds the manager and starts its flusher.
func NewManager(st store.Store, c cache.Cache, opts ...Option) *Manager {
	m := &Manager{
		store:       st,
		cache:       c,
		rooms:       make(map[string]*entry),
		flushEvery:  defaultFlushEvery,
		idleEvict:   defaultIdleEvict,
		mirrorTTL:   defaultMirrorTTL,
		movesTTL:    defaultMirrorTTL,
		movesLogMax: defaultMovesLogMax,
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	go m.flushLoop()
	return m
}

// RunExclusive runs fn on the room's executor goroutine. Jobs for one room
// execute in submission order; jobs for different rooms run concurrently.
// The room is loaded from the mirror or the store on first touch.
func (m *Manager) RunExclusive(ctx context.Context, roomID string, fn func(*Snapshot) error) error {
	j := job{fn: fn, done: make(chan error, 1)}
	// A concurrent eviction can close the entry between lookup and send;
	// one retry re-resolves it.
	for attempt := 0; attempt < 2; attempt++ {
		e, err := m.entryFor(ctx, roomID)
		if err != nil {
			return err
		}
		if !e.send(j, true) {
			continue
		}
		select {
		case err := <-j.done:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return ErrClosed
}

// CacheConnected reports shared-cache reachability for health checks.
func (m *Manager) CacheConnected(ctx context.Context) bool {
	return m.cache.Connected(ctx)
}

// AppendMove pushes a patch record onto the room's bounded move log mirror.
// Best effort: a cache error is logged, never surfaced.
func (m *Manager) AppendMove(ctx context.Context, roomID string, patch any) {
	if err := m.cache.PushLog(ctx, movesKey(roomID), patch, int64(m.movesLogMax), m.movesTTL); err != nil {
		log.Printf("state: append move %s: %v", roomID, err)
	}
}

// Evict flushes and drops one room, stopping its executor. Used when a room
// is deleted or completed.
func (m *Manager) Evict(ctx context.Context, roomID string) {
	m.mu.Lock()
	e, ok := m.rooms[roomID]
	if ok {
		delete(m.rooms, roomID)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	m.drainAndFlush(ctx, roomID, e)
	e.shut()
}

// Invalidate flushes and drops a room AND its mirror, forcing the next
// operation to reload from the store. Used when out-of-band writes (seat
// changes) bypass the snapshot.
func (m *Manager) Invalidate(ctx context.Context, roomID string) {
	m.Evict(ctx, roomID)
	if err := m.cache.Delete(ctx, mirrorKey(roomID)); err != nil {
		log.Printf("state: invalidate %s: %v", roomID, err)
	}
}

// Forget drops a room without flushing, for rooms whose documents were just
// deleted from the store.
func (m *Manager) Forget(ctx context.Context, roomID string) {
	m.mu.Lock()
	e, ok := m.rooms[roomID]
	if ok {
		delete(m.rooms, roomID)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	e.shut()
	if err := m.cache.Delete(ctx, mirrorKey(roomID), movesKey(roomID)); err != nil {
		log.Printf("state: forget %s: %v", roomID, err)
	}
}

// Close stops the flusher and force-flushes every dirty room.
func (m *Manager) Close(ctx context.Context) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	rooms := make(map[string]*entry, len(m.rooms))
	for id, e := range m.rooms {
		rooms[id] = e
	}
	m.rooms = make(map[string]*entry)
	m.mu.Unlock()

	close(m.stop)
	<-m.done

	for id, e := range rooms {
		m.drainAndFlush(ctx, id, e)
		e.shut()
	}
}

func (m *Manager) entryFor(ctx context.Context, roomID string) (*entry, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	if e, ok := m.rooms[roomID]; ok {
		e.lastAccess = time.Now()
		m.mu.Unlock()
		return e, nil
	}
	m.mu.Unlock()

	// Load outside the lock; a racing loader is resolved below.
	snap, err := m.load(ctx, roomID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	if e, ok := m.rooms[roomID]; ok {
		e.lastAccess = time.Now()
		return e, nil
	}
	e := &entry{jobs: make(chan job, 64), snap: snap, lastAccess: time.Now()}
	m.rooms[roomID] = e
	go m.run(e)
	return e, nil
}

// run is the per-room executor loop.
func (m *Manager) run(e *entry) {
	for j := range e.jobs {
		err := func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("state: job panic: %v", r)
					err = errors.New("state: internal error")
				}
			}()
			return j.fn(e.snap)
		}()
		if j.done != nil {
			j.done <- err
		}
	}
}

// load resolves a room snapshot: warm mirror first, then the store.
func (m *Manager) load(ctx context.Context, roomID string) (*Snapshot, error) {
	snap := &Snapshot{}
	if err := m.cache.GetJSON(ctx, mirrorKey(roomID), snap); err == nil && snap.Room != nil {
		return snap, nil
	}

	room, err := m.store.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	seats, err := m.store.ListSeats(ctx, roomID)
	if err != nil {
		return nil, err
	}
	teams, err := m.store.ListTeams(ctx, roomID)
	if err != nil {
		return nil, err
	}
	rev := int64(0)
	if room.GameBoard != nil {
		rev = room.GameBoard.Revision
	}
	return &Snapshot{Room: room, Seats: seats, Teams: teams, Revision: rev}, nil
}

// flushLoop periodically flushes dirty rooms and evicts idle ones.
func (m *Manager) flushLoop() {
	defer close(m.done)
	ticker := time.NewTicker(m.flushEvery)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *Manager) sweep() {
	m.mu.Lock()
	type pending struct {
		id string
		e  *entry
	}
	var flushes []pending
	var evicts []pending
	now := time.Now()
	for id, e := range m.rooms {
		if now.Sub(e.lastAccess) > m.idleEvict {
			evicts = append(evicts, pending{id, e})
			delete(m.rooms, id)
			continue
		}
		flushes = append(flushes, pending{id, e})
	}
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), m.flushEvery)
	defer cancel()
	for _, p := range flushes {
		m.enqueueFlush(ctx, p.id, p.e)
	}
	for _, p := range evicts {
		m.drainAndFlush(ctx, p.id, p.e)
		p.e.shut()
	}
}

// enqueueFlush serializes the flush with the room's mutations by running it
// as a job. Clean rooms are a no-op.
func (m *Manager) enqueueFlush(ctx context.Context, roomID string, e *entry) {
	j := job{fn: func(s *Snapshot) error {
		m.flush(ctx, roomID, s)
		return nil
	}, done: nil}
	// Non-blocking: a full backlog means the next sweep retries.
	e.send(j, false)
}

// drainAndFlush runs a final flush job and waits for it.
func (m *Manager) drainAndFlush(ctx context.Context, roomID string, e *entry) {
	j := job{fn: func(s *Snapshot) error {
		m.flush(ctx, roomID, s)
		return nil
	}, done: make(chan error, 1)}
	if e.send(j, true) {
		<-j.done
	}
}

// flush persists a dirty snapshot to the store and refreshes the mirror.
// Store errors keep the dirty flag so the next sweep retries.
func (m *Manager) flush(ctx context.Context, roomID string, s *Snapshot) {
	if !s.dirty || s.Room == nil {
		return
	}
	err := m.store.UpsertRoomState(ctx, roomID, s.Room.Status, s.Room.CurrentPlayerIndex, s.Room.GameBoard)
	if err != nil {
		log.Printf("state: flush %s: %v", roomID, err)
		return
	}
	s.dirty = false
	if err := m.cache.SetJSON(ctx, mirrorKey(roomID), s, m.mirrorTTL); err != nil {
		log.Printf("state: mirror %s: %v", roomID, err)
	}
}

func mirrorKey(roomID string) string { return "room:" + roomID + ":state" }
func movesKey(roomID string) string  { return "room:" + roomID + ":moves" }
