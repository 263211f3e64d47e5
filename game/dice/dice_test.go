package dice

import (
	"context"
	"math"
	"math/rand"
	"os"
	"testing"
	"time"

	"github.com/openludo/arena/cache"
	"github.com/openludo/arena/game/board"
	"github.com/openludo/arena/game/engine"
)

func seededRNG(seed int64) RNG {
	r := rand.New(rand.NewSource(seed))
	return r.Float64
}

// fixedRNG always returns the same value.
func fixedRNG(v float64) RNG {
	return func() float64 { return v }
}

func twoPlayerSides() [][]board.Color {
	return [][]board.Color{{board.Red}, {board.Yellow}}
}

func newRollRequest(tokens engine.TokenSet) RollRequest {
	return RollRequest{
		RoomID:     "room1",
		SeatID:     "seat1",
		Color:      board.Red,
		Controlled: []board.Color{board.Red},
		Tokens:     tokens,
		Sides:      twoPlayerSides(),
		SelfSide:   0,
		StartedAt:  time.Now(),
	}
}

func TestRollAlwaysInRange(t *testing.T) {
	e := New(cache.NewMemory(), nil, WithRNG(seededRNG(1)))
	tokens := engine.NewTokenSet([]board.Color{board.Red, board.Yellow})
	ctx := context.Background()

	for i := 0; i < 500; i++ {
		res := e.Roll(ctx, newRollRequest(tokens))
		if res.Value < 1 || res.Value > 6 {
			t.Fatalf("roll %d out of range: %d", i, res.Value)
		}
	}
}

func TestRollDisabledIsUniform(t *testing.T) {
	e := New(cache.NewMemory(), nil, WithEnabled(false), WithRNG(seededRNG(7)))
	tokens := engine.NewTokenSet([]board.Color{board.Red, board.Yellow})
	ctx := context.Background()

	counts := make(map[int]int)
	const n = 6000
	for i := 0; i < n; i++ {
		counts[e.Roll(ctx, newRollRequest(tokens)).Value]++
	}
	for face := 1; face <= 6; face++ {
		share := float64(counts[face]) / n
		if share < 0.12 || share > 0.22 {
			t.Errorf("face %d share %.3f outside uniform band", face, share)
		}
	}
}

func TestRollNilTokensFallsBack(t *testing.T) {
	e := New(cache.NewMemory(), nil, WithRNG(seededRNG(3)))
	res := e.Roll(context.Background(), RollRequest{RoomID: "r", SeatID: "s"})
	if res.Value < 1 || res.Value > 6 {
		t.Fatalf("fallback roll out of range: %d", res.Value)
	}
	if res.Forced {
		t.Error("fallback roll should never be forced")
	}
}

func TestPityForcesSixAfterDrought(t *testing.T) {
	c := cache.NewMemory()
	e := New(c, nil, WithRNG(seededRNG(2)))
	ctx := context.Background()

	m := NewMomentum()
	m.TurnsSinceSix = e.profile.ForceSixAt
	if err := c.SetJSON(ctx, momentumKey("room1", "seat1"), m, time.Hour); err != nil {
		t.Fatal(err)
	}

	tokens := engine.NewTokenSet([]board.Color{board.Red, board.Yellow})
	res := e.Roll(ctx, newRollRequest(tokens))
	if !res.Forced || res.Value != 6 {
		t.Fatalf("drought of %d turns: got value %d forced %v, want forced 6",
			e.profile.ForceSixAt, res.Value, res.Forced)
	}
}

func TestForceBudgetExhausts(t *testing.T) {
	c := cache.NewMemory()
	e := New(c, nil, WithRNG(fixedRNG(0.5)))
	ctx := context.Background()

	m := NewMomentum()
	m.TurnsSinceSix = e.profile.ForceSixAt
	if err := c.SetJSON(ctx, momentumKey("room1", "seat1"), m, time.Hour); err != nil {
		t.Fatal(err)
	}
	fs := &forceState{UsedForces: e.profile.ForceBudgetPerMatch}
	if err := c.SetJSON(ctx, forceKey("room1"), fs, time.Hour); err != nil {
		t.Fatal(err)
	}

	tokens := engine.NewTokenSet([]board.Color{board.Red, board.Yellow})
	res := e.Roll(ctx, newRollRequest(tokens))
	if res.Forced {
		t.Error("force granted past the per-match budget")
	}
}

func TestForceMinGap(t *testing.T) {
	e := New(cache.NewMemory(), nil)
	fs := &forceState{Rolls: 10, UsedForces: 1, LastForced: 8}
	if e.allowForce(fs) {
		t.Error("force allowed inside the minimum gap")
	}
	fs.LastForced = 10 - e.profile.ForceMinGap
	if !e.allowForce(fs) {
		t.Error("force denied although the gap has passed")
	}
}

func TestAssistAllInBaseRaisesSixProbability(t *testing.T) {
	p := DefaultProfile()
	tokens := engine.NewTokenSet([]board.Color{board.Red, board.Yellow})
	fc := AnalyzeFaces(tokens, board.Red, []board.Color{board.Red}, nil, nil)
	if !fc.AllInBase {
		t.Fatal("expected all tokens in base")
	}

	m := NewMomentum()
	m.TurnsAllInBase = p.AssistAt
	rank := AnalyzeRank(tokens, twoPlayerSides(), 0, p)

	w, _ := BuildWeights(p, RollInputs{Momentum: m, Faces: fc, Rank: rank, Story: StoryStart}, fixedRNG(0.5))
	dist := toDistribution(p, w)
	dist = maskPerception(p, dist, 0, fixedRNG(0.5))
	dist = guardMinSix(p, dist, fc, rank, m)

	if dist[6] < p.MinSixAllInBase {
		t.Errorf("P(6) = %.3f with all tokens based, want >= %.2f", dist[6], p.MinSixAllInBase)
	}
}

func TestEntropyFloorHolds(t *testing.T) {
	p := DefaultProfile()
	w := [7]float64{0, 0.0001, 100, 100, 100, 100, 100}
	dist := toDistribution(p, w)
	for f := 1; f <= 6; f++ {
		if dist[f] < p.EntropyFloor-1e-9 {
			t.Errorf("face %d prob %.4f below entropy floor", f, dist[f])
		}
	}
	assertSumsToOne(t, dist)
}

func TestMaskCapsFaceProbability(t *testing.T) {
	p := DefaultProfile()
	w := [7]float64{0, 1, 1, 1, 1, 1, 1000}
	dist := toDistribution(p, w)
	dist = maskPerception(p, dist, 0, fixedRNG(0.5))
	for f := 1; f <= 6; f++ {
		if dist[f] > p.MaxFaceProb+1e-9 {
			t.Errorf("face %d prob %.4f above cap %.2f", f, dist[f], p.MaxFaceProb)
		}
	}
	assertSumsToOne(t, dist)
}

func TestMaskShavesDominantRepeat(t *testing.T) {
	p := DefaultProfile()
	w := [7]float64{0, 1, 1, 1, 1, 1, 3}

	plain := maskPerception(p, toDistribution(p, w), 0, fixedRNG(0.5))
	shaved := maskPerception(p, toDistribution(p, w), 6, fixedRNG(0.5))
	if shaved[6] >= plain[6] {
		t.Errorf("dominant repeated face not shaved: %.3f vs %.3f", shaved[6], plain[6])
	}
	// A repeated face that does not dominate is left alone.
	same := maskPerception(p, toDistribution(p, w), 2, fixedRNG(0.5))
	if math.Abs(same[6]-plain[6]) > 1e-9 {
		t.Errorf("non-dominant repeat changed the distribution: %.4f vs %.4f", same[6], plain[6])
	}
	assertSumsToOne(t, shaved)
}

func TestGuardMinSixLeaderNearWinGetsLess(t *testing.T) {
	p := DefaultProfile()
	m := NewMomentum()
	uniform := [7]float64{0, 1.0 / 6, 1.0 / 6, 1.0 / 6, 1.0 / 6, 1.0 / 6, 1.0 / 6}

	trailing := guardMinSix(p, uniform, FaceContext{AllInBase: true}, RankContext{}, m)
	leader := guardMinSix(p, uniform, FaceContext{}, RankContext{IsLeader: true, SelfNearWin: true}, m)
	if trailing[6] <= leader[6] {
		t.Errorf("based player P(6)=%.3f should exceed near-win leader P(6)=%.3f", trailing[6], leader[6])
	}
}

func TestTripleSixSuppression(t *testing.T) {
	p := DefaultProfile()
	uniform := [7]float64{0, 1.0 / 6, 1.0 / 6, 1.0 / 6, 1.0 / 6, 1.0 / 6, 1.0 / 6}

	// Third consecutive six is always resampled away.
	for i := 0; i < 50; i++ {
		got := suppressTripleSix(p, 6, 3, uniform, seededRNG(int64(i)))
		if got == 6 {
			t.Fatal("third consecutive six not suppressed")
		}
	}
	// Under two sixes nothing happens.
	if got := suppressTripleSix(p, 6, 1, uniform, fixedRNG(0.0)); got != 6 {
		t.Errorf("six after a single six changed to %d", got)
	}
	// Non-six faces pass through.
	if got := suppressTripleSix(p, 4, 3, uniform, fixedRNG(0.0)); got != 4 {
		t.Errorf("non-six face changed to %d", got)
	}
}

func TestAntiFrustrationShiftsWeights(t *testing.T) {
	p := DefaultProfile()
	m := NewMomentum()
	for i := 0; i < 6; i++ {
		m.ReportOutcome(p, 1, true, false)
	}
	if m.LowRollShare() < p.LowRollPatternThreshold {
		t.Fatalf("low roll share %.2f below threshold", m.LowRollShare())
	}

	tokens := engine.NewTokenSet([]board.Color{board.Red, board.Yellow})
	// One token out so low faces are playable and the comparison is fair.
	tokens[board.Red][0] = engine.Token{ID: 0, Color: board.Red, Position: 5, Status: engine.StatusActive, Steps: 5}
	fc := AnalyzeFaces(tokens, board.Red, []board.Color{board.Red}, nil, nil)
	rank := AnalyzeRank(tokens, twoPlayerSides(), 0, p)

	cold, _ := BuildWeights(p, RollInputs{Momentum: NewMomentum(), Faces: fc, Rank: rank, Story: StoryStart}, fixedRNG(0.5))
	hot, _ := BuildWeights(p, RollInputs{Momentum: m, Faces: fc, Rank: rank, Story: StoryStart}, fixedRNG(0.5))

	coldRatio := cold[1] / cold[5]
	hotRatio := hot[1] / hot[5]
	if hotRatio >= coldRatio {
		t.Errorf("low streak did not tilt away from low faces: cold %.3f hot %.3f", coldRatio, hotRatio)
	}
}

func TestMomentumLuckDelta(t *testing.T) {
	p := DefaultProfile()
	m := NewMomentum()

	m.ReportOutcome(p, 6, true, false)
	if m.LuckDelta <= 0 {
		t.Errorf("luckDelta after a six = %.2f, want positive", m.LuckDelta)
	}
	if m.TurnsSinceSix != 0 || m.ConsecutiveSixes != 1 {
		t.Errorf("six bookkeeping: turnsSinceSix=%d consecutive=%d", m.TurnsSinceSix, m.ConsecutiveSixes)
	}

	for i := 0; i < 5; i++ {
		m.ReportOutcome(p, 1, false, false)
	}
	if m.LuckDelta >= 0 {
		t.Errorf("luckDelta after five ones = %.2f, want negative", m.LuckDelta)
	}
	if m.NoMoveStreak != 5 || m.TurnsSinceSix != 5 {
		t.Errorf("streaks: noMove=%d sinceSix=%d, want 5/5", m.NoMoveStreak, m.TurnsSinceSix)
	}
	if len(m.RecentRolls) != 6 {
		t.Errorf("recentRolls len = %d", len(m.RecentRolls))
	}
}

func TestMomentumRevengeWindow(t *testing.T) {
	p := DefaultProfile()
	m := NewMomentum()

	m.ReportVictim(p, board.Yellow)
	if m.RevengeArmedTurns != p.RevengeWindowTurns || !containsColor(m.RevengeTargetColors, board.Yellow) {
		t.Fatal("revenge window not armed after a capture")
	}
	if m.PowerRollCharges != 0 {
		t.Errorf("victim power roll charges = %d, want 0 (charges go to the attacker)", m.PowerRollCharges)
	}

	for i := 0; i < p.RevengeWindowTurns; i++ {
		m.ReportOutcome(p, 3, true, false)
	}
	if m.RevengeArmedTurns != 0 || m.RevengeTargetColors != nil {
		t.Error("revenge window did not expire")
	}
}

func TestMomentumPowerRollCharges(t *testing.T) {
	p := DefaultProfile()
	m := NewMomentum()

	m.ReportAttacker(p)
	if m.PowerRollCharges != 1 {
		t.Fatalf("attacker power roll charges = %d, want 1", m.PowerRollCharges)
	}

	// Charges cap out.
	for i := 0; i < p.MaxPowerRollCharges+2; i++ {
		m.ReportAttacker(p)
	}
	if m.PowerRollCharges != p.MaxPowerRollCharges {
		t.Errorf("charges = %d, want cap %d", m.PowerRollCharges, p.MaxPowerRollCharges)
	}

	// Each reported roll drains one charge; they never go negative.
	for i := 0; i < p.MaxPowerRollCharges; i++ {
		m.ReportOutcome(p, 3, true, false)
	}
	if m.PowerRollCharges != 0 {
		t.Errorf("charges after draining = %d, want 0", m.PowerRollCharges)
	}
	m.ReportOutcome(p, 3, true, false)
	if m.PowerRollCharges != 0 {
		t.Errorf("charges went negative: %d", m.PowerRollCharges)
	}
}

func TestReportCaptureThroughEngine(t *testing.T) {
	c := cache.NewMemory()
	e := New(c, nil, WithRNG(seededRNG(5)))
	ctx := context.Background()

	e.ReportCapture(ctx, "room1", "attacker", board.Red, []string{"victim"})

	victim := e.loadMomentum(ctx, "room1", "victim")
	if victim.RevengeArmedTurns == 0 || !containsColor(victim.RevengeTargetColors, board.Red) {
		t.Error("victim revenge state not persisted")
	}
	attacker := e.loadMomentum(ctx, "room1", "attacker")
	if attacker.PowerRollCharges != 1 {
		t.Errorf("attacker power roll charges = %d, want 1", attacker.PowerRollCharges)
	}
	d := e.loadDirector(ctx, "room1")
	if d.Captures != 1 {
		t.Errorf("director captures = %d, want 1", d.Captures)
	}
}

func TestFaceContextKillAndEscape(t *testing.T) {
	tokens := engine.NewTokenSet([]board.Color{board.Red, board.Yellow})
	// Red at 10 can capture yellow at 14 with a 4; red is also threatened
	// by the same yellow token (4 cells ahead means yellow is not a threat,
	// so put another yellow behind red).
	tokens[board.Red][0] = engine.Token{ID: 0, Color: board.Red, Position: 10, Status: engine.StatusActive, Steps: 10}
	tokens[board.Yellow][0] = engine.Token{ID: 0, Color: board.Yellow, Position: 14, Status: engine.StatusActive, Steps: 40}
	tokens[board.Yellow][1] = engine.Token{ID: 1, Color: board.Yellow, Position: 7, Status: engine.StatusActive, Steps: 33}

	fc := AnalyzeFaces(tokens, board.Red, []board.Color{board.Red}, []board.Color{board.Yellow}, nil)
	if !fc.Kill[4] {
		t.Error("face 4 should be a kill face")
	}
	if !fc.LeaderKill[4] {
		t.Error("face 4 kills a leader token")
	}
	if !fc.AnyThreat {
		t.Error("red at 10 with yellow at 7 is threatened")
	}
	// Landing on safe cell 13 with a 3 escapes the threat.
	if !fc.Escape[3] {
		t.Error("face 3 lands on a safe cell and should escape")
	}
}

func TestAnalyzeRankLeaderAndPhase(t *testing.T) {
	p := DefaultProfile()
	tokens := engine.NewTokenSet([]board.Color{board.Red, board.Yellow})
	for i := 0; i < 3; i++ {
		tokens[board.Red][i] = engine.Token{ID: i, Color: board.Red, Position: engine.PosHome, Status: engine.StatusHome, Steps: 56}
	}
	tokens[board.Red][3] = engine.Token{ID: 3, Color: board.Red, Position: 52, Status: engine.StatusSafe, Steps: 51}

	rank := AnalyzeRank(tokens, twoPlayerSides(), 0, p)
	if !rank.IsLeader {
		t.Error("red with three home tokens should lead")
	}
	if !rank.SelfNearWin {
		t.Error("red needs 5 cells and should be near win")
	}
	if rank.Phase != PhaseMid {
		t.Errorf("3 of 8 tokens home: phase = %s, want mid", rank.Phase)
	}

	rankYellow := AnalyzeRank(tokens, twoPlayerSides(), 1, p)
	if !rankYellow.IsLast || rankYellow.LeadGap == 0 {
		t.Error("yellow should be last with a positive gap")
	}
}

func TestDirectorPhases(t *testing.T) {
	d := NewDirector()
	if got := d.Observe(RankContext{Phase: PhaseEarly}, 0); got != StoryStart {
		t.Errorf("opening phase = %s, want %s", got, StoryStart)
	}
	d.TotalRolls = 20
	if got := d.Observe(RankContext{Phase: PhaseEarly}, 0); got != StorySpread {
		t.Errorf("early spread phase = %s, want %s", got, StorySpread)
	}
	d.ObserveCapture()
	d.ObserveCapture()
	if got := d.Observe(RankContext{Phase: PhaseMid}, 0); got != StoryFights {
		t.Errorf("capture-heavy phase = %s, want %s", got, StoryFights)
	}
	if got := d.Observe(RankContext{Phase: PhaseLate}, 0); got != StoryFinish {
		t.Errorf("late phase = %s, want %s", got, StoryFinish)
	}
}

func TestLoadProfileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/profile.yaml"
	if err := writeFile(path, "forceSixAt: 12\nentropyFloor: 0.08\n"); err != nil {
		t.Fatal(err)
	}
	p, err := LoadProfile(path)
	if err != nil {
		t.Fatal(err)
	}
	if p.ForceSixAt != 12 || p.EntropyFloor != 0.08 {
		t.Errorf("overrides not applied: forceSixAt=%d entropyFloor=%.2f", p.ForceSixAt, p.EntropyFloor)
	}
	if p.KillBoost != DefaultProfile().KillBoost {
		t.Error("untouched knob drifted from default")
	}
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}

func assertSumsToOne(t *testing.T, dist [7]float64) {
	t.Helper()
	sum := 0.0
	for f := 1; f <= 6; f++ {
		sum += dist[f]
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("distribution sums to %.6f", sum)
	}
}
