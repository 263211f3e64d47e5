// Package dice implements the engagement dice engine: a weighted roll
// pipeline that biases outcomes toward dramatic, fair-feeling matches while
// staying statistically close enough to uniform that players cannot tell.
// Every bias is a knob on a Profile; the whole engine can be disabled, in
// which case rolls are uniform from crypto/rand.
package dice

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"log"
	"time"

	"github.com/openludo/arena/cache"
	"github.com/openludo/arena/game/board"
	"github.com/openludo/arena/game/engine"
)

// RNG yields floats in [0,1). Injectable for deterministic tests.
type RNG func() float64

// stateTTL bounds how long per-room engagement state outlives activity.
const stateTTL = 6 * time.Hour

// forceState is the per-room hard-force ledger: pity and assist forces share
// one budget so the engine cannot hand out sixes on demand.
type forceState struct {
	Rolls      int `json:"rolls"`
	UsedForces int `json:"usedForces"`
	LastForced int `json:"lastForced"`
}

// Engine is the engagement roll engine. One instance serves every room;
// per-room and per-seat state lives in the cache.
type Engine struct {
	profile *Profile
	cache   cache.Cache
	rng     RNG
	enabled bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithRNG replaces the entropy source. Tests inject sequences here.
func WithRNG(rng RNG) Option {
	return func(e *Engine) { e.rng = rng }
}

// WithEnabled toggles the whole engagement pipeline. Disabled engines roll
// uniform.
func WithEnabled(enabled bool) Option {
	return func(e *Engine) { e.enabled = enabled }
}

// New builds an engine on the given cache and profile. A nil profile means
// the canonical defaults.
func New(c cache.Cache, p *Profile, opts ...Option) *Engine {
	if p == nil {
		p = DefaultProfile()
	}
	e := &Engine{profile: p, cache: c, rng: CryptoRNG, enabled: true}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CryptoRNG is the default entropy source, backed by crypto/rand.
func CryptoRNG() float64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand failing is unrecoverable for fairness; better a
		// visible crash than silently predictable dice.
		panic(fmt.Sprintf("dice: crypto/rand: %v", err))
	}
	return float64(binary.BigEndian.Uint64(buf[:])>>11) / (1 << 53)
}

// RollRequest carries the full board context for one roll.
type RollRequest struct {
	RoomID     string
	SeatID     string
	Color      board.Color
	Controlled []board.Color
	Tokens     engine.TokenSet
	// Sides lists each competing side's colors in seat order; SelfSide is
	// the roller's index into it.
	Sides    [][]board.Color
	SelfSide int
	// StartedAt is when the match began, for urgency pacing.
	StartedAt time.Time
}

// RollResult is the produced face and whether the limiter granted a force.
type RollResult struct {
	Value  int
	Forced bool
}

// Roll produces the next dice value. It never fails: any internal error or
// panic degrades to a uniform roll so a match can always continue.
func (e *Engine) Roll(ctx context.Context, req RollRequest) (result RollResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("dice: roll pipeline panic, falling back to uniform: %v", r)
			result = RollResult{Value: e.uniform()}
		}
	}()

	if !e.enabled || len(req.Controlled) == 0 || req.Tokens == nil {
		return RollResult{Value: e.uniform()}
	}

	m := e.loadMomentum(ctx, req.RoomID, req.SeatID)
	director := e.loadDirector(ctx, req.RoomID)
	fs := e.loadForceState(ctx, req.RoomID)

	rank := AnalyzeRank(req.Tokens, req.Sides, req.SelfSide, e.profile)
	fc := AnalyzeFaces(req.Tokens, req.Color, req.Controlled, rank.LeaderColors, m.RevengeTargetColors)
	story := director.Observe(rank, rank.LeaderSide)

	elapsed := 0.0
	if !req.StartedAt.IsZero() && e.profile.MatchTimeMinutes > 0 {
		elapsed = time.Since(req.StartedAt).Minutes() / float64(e.profile.MatchTimeMinutes)
		if elapsed > 1 {
			elapsed = 1
		}
	}

	w, wantSix := BuildWeights(e.profile, RollInputs{
		Momentum:    m,
		Faces:       fc,
		Rank:        rank,
		Story:       story,
		ElapsedFrac: elapsed,
	}, e.rng)

	dist := toDistribution(e.profile, w)
	dist = maskPerception(e.profile, dist, m.RepeatedFace(), e.rng)
	dist = guardMinSix(e.profile, dist, fc, rank, m)

	fs.Rolls++
	if wantSix && e.allowForce(fs) {
		fs.UsedForces++
		fs.LastForced = fs.Rolls
		result = RollResult{Value: 6, Forced: true}
	} else {
		face := sampleFace(dist, e.rng)
		face = suppressTripleSix(e.profile, face, m.ConsecutiveSixes, dist, e.rng)
		result = RollResult{Value: face}
	}

	e.save(ctx, directorKey(req.RoomID), director)
	e.save(ctx, forceKey(req.RoomID), fs)
	return result
}

// Rank exposes the competitive picture around one side, for callers that
// need leader and last-place information outside the roll path.
func (e *Engine) Rank(tokens engine.TokenSet, sides [][]board.Color, selfIdx int) RankContext {
	return AnalyzeRank(tokens, sides, selfIdx, e.profile)
}

// allowForce checks the per-match budget and the minimum gap between forces.
func (e *Engine) allowForce(fs *forceState) bool {
	if fs.UsedForces >= e.profile.ForceBudgetPerMatch {
		return false
	}
	if fs.LastForced > 0 && fs.Rolls-fs.LastForced < e.profile.ForceMinGap {
		return false
	}
	return true
}

// ReportOutcome folds a resolved roll back into the roller's momentum. The
// coordinator calls it once per roll, after valid moves are known.
func (e *Engine) ReportOutcome(ctx context.Context, roomID, seatID string, rolled int, hadValidMove, allInBase bool) {
	if !e.enabled {
		return
	}
	m := e.loadMomentum(ctx, roomID, seatID)
	m.ReportOutcome(e.profile, rolled, hadValidMove, allInBase)
	e.save(ctx, momentumKey(roomID, seatID), m)
}

// ReportCapture updates both sides of a capture: the attacker's tilt clears
// and a power-roll charge is banked; each victim's revenge window arms
// against the attacker.
func (e *Engine) ReportCapture(ctx context.Context, roomID, attackerSeatID string, attackerColor board.Color, victimSeatIDs []string) {
	if !e.enabled {
		return
	}
	director := e.loadDirector(ctx, roomID)
	director.ObserveCapture()
	e.save(ctx, directorKey(roomID), director)

	attacker := e.loadMomentum(ctx, roomID, attackerSeatID)
	attacker.ReportAttacker(e.profile)
	e.save(ctx, momentumKey(roomID, attackerSeatID), attacker)

	for _, seatID := range victimSeatIDs {
		victim := e.loadMomentum(ctx, roomID, seatID)
		victim.ReportVictim(e.profile, attackerColor)
		e.save(ctx, momentumKey(roomID, seatID), victim)
	}
}

// Forget drops all engagement state for a room. Called on room teardown.
func (e *Engine) Forget(ctx context.Context, roomID string, seatIDs []string) {
	keys := []string{directorKey(roomID), forceKey(roomID)}
	for _, seatID := range seatIDs {
		keys = append(keys, momentumKey(roomID, seatID))
	}
	if err := e.cache.Delete(ctx, keys...); err != nil {
		log.Printf("dice: forget room %s: %v", roomID, err)
	}
}

func (e *Engine) uniform() int {
	return 1 + int(e.rng()*6)
}

func (e *Engine) loadMomentum(ctx context.Context, roomID, seatID string) *Momentum {
	m := NewMomentum()
	if err := e.cache.GetJSON(ctx, momentumKey(roomID, seatID), m); err != nil && err != cache.ErrMiss {
		log.Printf("dice: load momentum %s/%s: %v", roomID, seatID, err)
	}
	return m
}

func (e *Engine) loadDirector(ctx context.Context, roomID string) *Director {
	d := NewDirector()
	if err := e.cache.GetJSON(ctx, directorKey(roomID), d); err != nil && err != cache.ErrMiss {
		log.Printf("dice: load director %s: %v", roomID, err)
	}
	return d
}

func (e *Engine) loadForceState(ctx context.Context, roomID string) *forceState {
	fs := &forceState{}
	if err := e.cache.GetJSON(ctx, forceKey(roomID), fs); err != nil && err != cache.ErrMiss {
		log.Printf("dice: load force state %s: %v", roomID, err)
	}
	return fs
}

func (e *Engine) save(ctx context.Context, key string, v any) {
	if err := e.cache.SetJSON(ctx, key, v, stateTTL); err != nil {
		log.Printf("dice: save %s: %v", key, err)
	}
}

func momentumKey(roomID, seatID string) string {
	return "engagement:" + roomID + ":seat:" + seatID
}

func directorKey(roomID string) string { return "engagement:" + roomID + ":director" }
func forceKey(roomID string) string    { return "engagement:" + roomID + ":force" }
