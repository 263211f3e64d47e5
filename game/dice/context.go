package dice

import (
	"github.com/openludo/arena/game/board"
	"github.com/openludo/arena/game/engine"
)

// FaceContext records, per die face 1..6, which tactical outcomes the face
// would unlock for the roller. It is computed by simulating every legal move
// for every face on a cloned token set.
type FaceContext struct {
	Playable       [7]bool
	Kill           [7]bool
	LeaderKill     [7]bool
	RevengeKill    [7]bool
	LeaderPressure [7]bool
	Escape         [7]bool
	Finish         [7]bool

	BaseTokens  int
	TotalTokens int
	AllInBase   bool
	MostInBase  bool
	AnyThreat   bool
	AnyPlayable bool
}

// AnalyzeFaces simulates each face for the roller's controlled colors.
// leaders are the colors of the currently leading side, revengeTargets the
// colors that recently captured the roller.
func AnalyzeFaces(tokens engine.TokenSet, current board.Color, controlled, leaders, revengeTargets []board.Color) FaceContext {
	var fc FaceContext

	for _, c := range controlled {
		for _, tok := range tokens[c] {
			if tok.Status == engine.StatusHome || tok.Status == engine.StatusFinished {
				continue
			}
			fc.TotalTokens++
			if tok.Status == engine.StatusBase {
				fc.BaseTokens++
			} else if tok.OnTrack() && !board.IsSafe(tok.Position) && threatened(tokens, controlled, tok) {
				fc.AnyThreat = true
			}
		}
	}
	fc.AllInBase = fc.TotalTokens > 0 && fc.BaseTokens == fc.TotalTokens
	fc.MostInBase = fc.TotalTokens > 0 && fc.BaseTokens*2 > fc.TotalTokens

	for face := 1; face <= 6; face++ {
		moves := engine.FindValidMoves(tokens, current, face, controlled)
		if len(moves) == 0 {
			continue
		}
		fc.Playable[face] = true
		fc.AnyPlayable = true

		for _, m := range moves {
			sim := tokens.Clone()
			tok, ok := engine.TokenByID(sim, m.Color, m.TokenID)
			if !ok {
				continue
			}
			wasExposed := tok.OnTrack() && !board.IsSafe(tok.Position) && threatened(tokens, controlled, tok)

			members := engine.StackMembers(sim, controlled, tok)
			var outcome engine.MoveOutcome
			var captured []engine.CapturedToken
			if len(members) >= 2 {
				outs, caps := engine.ApplyForcedStack(sim, members, face, controlled)
				captured = caps
				for _, o := range outs {
					if o.Token.ID == tok.ID && o.Token.Color == tok.Color {
						outcome = o
					}
					if o.EnteredHome {
						fc.Finish[face] = true
					}
				}
			} else {
				outcome = engine.ApplyMove(sim, tok, face, true, controlled)
				engine.SetToken(sim, outcome.Token)
				captured = outcome.Captured
				if outcome.EnteredHome {
					fc.Finish[face] = true
				}
			}

			if len(captured) > 0 {
				fc.Kill[face] = true
				for _, v := range captured {
					if containsColor(leaders, v.Color) {
						fc.LeaderKill[face] = true
					}
					if containsColor(revengeTargets, v.Color) {
						fc.RevengeKill[face] = true
					}
				}
			}

			after := outcome.Token
			if wasExposed && landsSafe(sim, controlled, after) {
				fc.Escape[face] = true
			}
			if after.OnTrack() && pressuresLeader(sim, controlled, leaders, after) {
				fc.LeaderPressure[face] = true
			}
		}
	}
	return fc
}

// threatened reports whether an enemy token sits 1..6 cells behind on the
// track with no safe cell protecting the target.
func threatened(tokens engine.TokenSet, allied []board.Color, tok engine.Token) bool {
	for c, colorTokens := range tokens {
		if containsColor(allied, c) {
			continue
		}
		for _, enemy := range colorTokens {
			if !enemy.OnTrack() {
				continue
			}
			d := (tok.Position - enemy.Position + board.TrackCells) % board.TrackCells
			if d >= 1 && d <= 6 {
				return true
			}
		}
	}
	return false
}

// landsSafe reports whether a moved token ended somewhere a capture cannot
// reach it: finished, in the home run, on a safe cell, or out of every
// enemy's dice range.
func landsSafe(tokens engine.TokenSet, allied []board.Color, tok engine.Token) bool {
	if tok.Status == engine.StatusHome || tok.InHomeRun() {
		return true
	}
	if tok.OnTrack() && board.IsSafe(tok.Position) {
		return true
	}
	return !threatened(tokens, allied, tok)
}

// pressuresLeader reports whether the token ended 1..6 cells behind a leader
// token on a capturable cell.
func pressuresLeader(tokens engine.TokenSet, allied, leaders []board.Color, tok engine.Token) bool {
	for _, c := range leaders {
		if containsColor(allied, c) {
			continue
		}
		for _, target := range tokens[c] {
			if !target.OnTrack() || board.IsSafe(target.Position) {
				continue
			}
			d := (target.Position - tok.Position + board.TrackCells) % board.TrackCells
			if d >= 1 && d <= 6 {
				return true
			}
		}
	}
	return false
}
