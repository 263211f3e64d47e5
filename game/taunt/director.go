package taunt

import (
	"sync"
	"time"

	"github.com/openludo/arena/store"
)

// Rate limits. A seat may taunt at most once per cooldown, a room carries a
// per-minute ceiling, and a short burst window stops back-to-back spam even
// under the minute budget.
const (
	seatCooldown  = 5 * time.Second
	roomPerMinute = 6
	burstWindow   = 3 * time.Second
	burstMax      = 2

	// revengeMemory is how long a capture stays "personal".
	revengeMemory = 4 * time.Minute

	// lineRepeatPenalty is how long a used line ranks below fresh ones.
	lineRepeatPenalty = 90 * time.Second

	suggestionsPerEvent = 3
)

// roomState is the director's per-room memory.
type roomState struct {
	lastBySeat map[string]time.Time
	sent       []time.Time
	lineUsed   map[string]time.Time
	// grudges[victim] = the seat that captured them and when.
	grudges map[string]grudge
}

type grudge struct {
	attackerSeatID string
	at             time.Time
}

// Director ranks and rate-limits taunt lines per room. Safe for concurrent
// use; all state is in-memory and disposable.
type Director struct {
	mu    sync.Mutex
	rooms map[string]*roomState
	rnd   func() float64
	now   func() time.Time

	cooldown  time.Duration
	perMinute int
	burstMax  int
}

// Option configures a Director.
type Option func(*Director)

// WithClock injects a clock for tests.
func WithClock(now func() time.Time) Option {
	return func(d *Director) { d.now = now }
}

// WithJitter injects the ranking jitter source.
func WithJitter(rnd func() float64) Option {
	return func(d *Director) { d.rnd = rnd }
}

// WithLimits overrides the seat cooldown, per-minute ceiling and burst cap.
// Non-positive values keep the defaults.
func WithLimits(cooldown time.Duration, perMinute, burstMax int) Option {
	return func(d *Director) {
		if cooldown > 0 {
			d.cooldown = cooldown
		}
		if perMinute > 0 {
			d.perMinute = perMinute
		}
		if burstMax > 0 {
			d.burstMax = burstMax
		}
	}
}

// NewDirector builds an empty director.
func NewDirector(opts ...Option) *Director {
	d := &Director{
		rooms:     make(map[string]*roomState),
		rnd:       func() float64 { return 0.5 },
		now:       time.Now,
		cooldown:  seatCooldown,
		perMinute: roomPerMinute,
		burstMax:  burstMax,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// React processes one event under the room's taunt mode and returns zero or
// more suggestions. Rate-limited events return nil; the event itself is
// still remembered for grudges.
func (d *Director) React(ev Event, mode store.TauntMode) []Suggestion {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	rs := d.room(ev.RoomID)
	rs.prune(now)

	emotion, ok := emotionFor[ev.Type]
	if !ok {
		return nil
	}

	// A capture writes the grudge ledger before any rate limiting, so
	// revenge detection works even when the line itself is suppressed.
	if ev.Type == EventCapture {
		for _, victim := range ev.TargetSeatIDs {
			rs.grudges[victim] = grudge{attackerSeatID: ev.ActorSeatID, at: now}
		}
		// Capturing your own killer inside the window flips the register.
		if g, held := rs.grudges[ev.ActorSeatID]; held && now.Sub(g.at) <= revengeMemory && contains(ev.TargetSeatIDs, g.attackerSeatID) {
			emotion = EmotionRevenge
			delete(rs.grudges, ev.ActorSeatID)
		}
	}

	if !d.allow(rs, ev.ActorSeatID, now) {
		return nil
	}

	target := pickTarget(ev)
	ranked := d.rank(rs, emotion, now)
	if len(ranked) == 0 {
		return nil
	}

	auto := mode == store.TauntAuto || (mode == store.TauntHybrid && highIntensity(ev.Type))
	if auto {
		line := ranked[0]
		rs.commit(ev.ActorSeatID, line.ID, now)
		return []Suggestion{{
			LineID:       line.ID,
			Text:         line.Text,
			Emotion:      line.Emotion,
			FromSeatID:   ev.ActorSeatID,
			TargetSeatID: target,
			Auto:         true,
		}}
	}

	n := suggestionsPerEvent
	if n > len(ranked) {
		n = len(ranked)
	}
	out := make([]Suggestion, 0, n)
	for _, line := range ranked[:n] {
		out = append(out, Suggestion{
			LineID:       line.ID,
			Text:         line.Text,
			Emotion:      line.Emotion,
			FromSeatID:   ev.ActorSeatID,
			TargetSeatID: target,
		})
	}
	return out
}

// Confirm records that the actor actually sent a suggested line, consuming
// the rate budget and arming the repeat penalty. Returns false when the
// send is no longer within limits.
func (d *Director) Confirm(roomID, seatID, lineID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	rs := d.room(roomID)
	rs.prune(now)
	if !d.allow(rs, seatID, now) {
		return false
	}
	rs.commit(seatID, lineID, now)
	return true
}

// Forget drops a room's state on teardown.
func (d *Director) Forget(roomID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.rooms, roomID)
}

// LineByID resolves a catalog line, for validating client-confirmed sends.
func LineByID(id string) (Line, bool) {
	for _, l := range catalog {
		if l.ID == id {
			return l, true
		}
	}
	return Line{}, false
}

func (d *Director) room(roomID string) *roomState {
	rs, ok := d.rooms[roomID]
	if !ok {
		rs = &roomState{
			lastBySeat: make(map[string]time.Time),
			lineUsed:   make(map[string]time.Time),
			grudges:    make(map[string]grudge),
		}
		d.rooms[roomID] = rs
	}
	return rs
}

// rank orders the emotion's lines, pushing recently used ones down and
// breaking ties with jitter so repeated events vary.
func (d *Director) rank(rs *roomState, emotion Emotion, now time.Time) []Line {
	lines := linesFor(emotion)
	type scored struct {
		line  Line
		score float64
	}
	ranked := make([]scored, 0, len(lines))
	for _, l := range lines {
		score := 1.0 + d.rnd()*0.2
		if used, ok := rs.lineUsed[l.ID]; ok && now.Sub(used) < lineRepeatPenalty {
			score -= 0.5
		}
		ranked = append(ranked, scored{line: l, score: score})
	}
	for i := 1; i < len(ranked); i++ {
		for j := i; j > 0 && ranked[j].score > ranked[j-1].score; j-- {
			ranked[j], ranked[j-1] = ranked[j-1], ranked[j]
		}
	}
	out := make([]Line, len(ranked))
	for i, s := range ranked {
		out[i] = s.line
	}
	return out
}

func (d *Director) allow(rs *roomState, seatID string, now time.Time) bool {
	if last, ok := rs.lastBySeat[seatID]; ok && now.Sub(last) < d.cooldown {
		return false
	}
	if len(rs.sent) >= d.perMinute {
		return false
	}
	burst := 0
	for _, t := range rs.sent {
		if now.Sub(t) < burstWindow {
			burst++
		}
	}
	return burst < d.burstMax
}

func (rs *roomState) commit(seatID, lineID string, now time.Time) {
	rs.lastBySeat[seatID] = now
	rs.sent = append(rs.sent, now)
	rs.lineUsed[lineID] = now
}

// prune drops timestamps older than the minute window and expired grudges.
func (rs *roomState) prune(now time.Time) {
	kept := rs.sent[:0]
	for _, t := range rs.sent {
		if now.Sub(t) < time.Minute {
			kept = append(kept, t)
		}
	}
	rs.sent = kept
	for victim, g := range rs.grudges {
		if now.Sub(g.at) > revengeMemory {
			delete(rs.grudges, victim)
		}
	}
}

// highIntensity marks the events hybrid mode speaks automatically.
func highIntensity(t EventType) bool {
	return t == EventCapture || t == EventWin || t == EventComeback
}

// pickTarget chooses who the line is aimed at: the first listed victim when
// the event is targeted. Untargeted events aim at the chasing player if the
// actor leads, else at the leader; a line never targets its own speaker.
func pickTarget(ev Event) string {
	if len(ev.TargetSeatIDs) > 0 {
		return ev.TargetSeatIDs[0]
	}
	target := ev.LeaderSeatID
	if ev.ActorIsLeader {
		target = ev.ChaserSeatID
	}
	if target == ev.ActorSeatID {
		return ""
	}
	return target
}

func contains(xs []string, x string) bool {
	for _, s := range xs {
		if s == x {
			return true
		}
	}
	return false
}
