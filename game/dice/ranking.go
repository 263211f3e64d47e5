package dice

import (
	"math"

	"github.com/openludo/arena/game/board"
	"github.com/openludo/arena/game/engine"
)

// MatchPhase buckets the match by the fraction of tokens already home.
type MatchPhase string

const (
	PhaseEarly MatchPhase = "early"
	PhaseMid   MatchPhase = "mid"
	PhaseLate  MatchPhase = "late"
)

// Progress score weights. A home token dominates, a released token beats a
// based one, home-run presence beats raw steps.
const (
	scoreHome    = 95
	scoreOnBoard = 30
	scoreHomeRun = 14
)

// RankContext is the competitive picture around the roller's side, computed
// fresh before every roll.
type RankContext struct {
	IsLeader     bool
	IsLast       bool
	LeadGap      int
	BehindGap    int
	Phase        MatchPhase
	SpreadHigh   bool
	CloseChase   bool
	SelfNearWin  bool
	AnyNearWin   bool
	LeaderSide   int
	// ChaserSide is the best-scoring side behind the leader, or -1 when
	// there is no second side.
	ChaserSide   int
	LeaderColors []board.Color
}

// sideScore computes the progress score of one side's colors.
func sideScore(tokens engine.TokenSet, colors []board.Color) int {
	score := 0
	for _, c := range colors {
		for _, tok := range tokens[c] {
			switch {
			case tok.Status == engine.StatusHome || tok.Status == engine.StatusFinished:
				score += scoreHome
			case tok.InHomeRun():
				score += scoreOnBoard + scoreHomeRun + tok.Steps
			case tok.OnTrack():
				score += scoreOnBoard + tok.Steps
			}
		}
	}
	return score
}

// sideRemaining is the total cells the side still has to cover. Small values
// mean the side is closing on a win.
func sideRemaining(tokens engine.TokenSet, colors []board.Color) int {
	remaining := 0
	for _, c := range colors {
		for _, tok := range tokens[c] {
			switch {
			case tok.Status == engine.StatusHome || tok.Status == engine.StatusFinished:
				// done
			case tok.InHomeRun():
				remaining += board.HomeRunMax - (tok.Position - board.TrackCells)
			case tok.OnTrack():
				remaining += board.RotationThreshold - tok.Steps + board.HomeRunMax + 1
			default:
				remaining += board.RotationThreshold + board.HomeRunMax + 1
			}
		}
	}
	return remaining
}

// AnalyzeRank scores every side and situates the roller's side among them.
// sides lists each competing side's colors (one color per seat in individual
// mode, two in team mode); selfIdx is the roller's side.
func AnalyzeRank(tokens engine.TokenSet, sides [][]board.Color, selfIdx int, p *Profile) RankContext {
	rc := RankContext{ChaserSide: -1}
	if selfIdx < 0 || selfIdx >= len(sides) {
		return rc
	}

	scores := make([]int, len(sides))
	best, worst := math.MinInt, math.MaxInt
	bestIdx := 0
	for i, side := range sides {
		scores[i] = sideScore(tokens, side)
		if scores[i] > best {
			best, bestIdx = scores[i], i
		}
		if scores[i] < worst {
			worst = scores[i]
		}
	}

	self := scores[selfIdx]
	rc.IsLeader = self == best
	rc.IsLast = self == worst && self != best
	rc.LeadGap = best - self
	rc.BehindGap = self - worst
	rc.CloseChase = !rc.IsLeader && rc.LeadGap <= p.CloseChaseGap
	rc.LeaderSide = bestIdx
	rc.LeaderColors = append([]board.Color{}, sides[bestIdx]...)
	chaser := math.MinInt
	for i, score := range scores {
		if i != bestIdx && score > chaser {
			chaser, rc.ChaserSide = score, i
		}
	}

	for i, side := range sides {
		if sideRemaining(tokens, side) <= p.NearWinCells {
			rc.AnyNearWin = true
			if i == selfIdx {
				rc.SelfNearWin = true
			}
		}
	}

	total, finished := 0, 0
	var steps []float64
	for _, colorTokens := range tokens {
		for _, tok := range colorTokens {
			total++
			if tok.Status == engine.StatusHome || tok.Status == engine.StatusFinished {
				finished++
			}
			if tok.OnTrack() {
				steps = append(steps, float64(tok.Steps))
			}
		}
	}
	frac := 0.0
	if total > 0 {
		frac = float64(finished) / float64(total)
	}
	switch {
	case frac < p.PhaseEarlyBelow:
		rc.Phase = PhaseEarly
	case frac < p.PhaseMidBelow:
		rc.Phase = PhaseMid
	default:
		rc.Phase = PhaseLate
	}

	rc.SpreadHigh = stdev(steps) > p.SpreadStdevThreshold
	return rc
}

func stdev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	mean := 0.0
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	varsum := 0.0
	for _, x := range xs {
		varsum += (x - mean) * (x - mean)
	}
	return math.Sqrt(varsum / float64(len(xs)))
}
