// Package engine implements the Ludo rules as pure functions over plain
// values: legal-move enumeration, move application with captures, win
// detection and turn rotation. Nothing here performs I/O or panics on bad
// input; illegal inputs yield empty move sets or unchanged tokens and the
// caller decides the error.
package engine

import (
	"github.com/openludo/arena/game/board"
)

// FindValidMoves enumerates every (tokenId, color) pair the current seat may
// play for the given dice value. In individual mode controlled holds just
// the seat's color; in team mode it also holds the partner color, which
// activates the forced-stack and blockade-break rules. current must be one
// of the controlled colors, or no moves exist.
func FindValidMoves(tokens TokenSet, current board.Color, dice int, controlled []board.Color) []Move {
	moves := []Move{}
	if dice < 1 || dice > 6 {
		return moves
	}
	currentControlled := false
	for _, c := range controlled {
		if c == current {
			currentControlled = true
			break
		}
	}
	if !currentControlled {
		return moves
	}
	for _, c := range controlled {
		for _, tok := range tokens[c] {
			if tokenCanMove(tokens, tok, dice, controlled) {
				moves = append(moves, Move{TokenID: tok.ID, Color: tok.Color})
			}
		}
	}
	return moves
}

func tokenCanMove(tokens TokenSet, tok Token, dice int, controlled []board.Color) bool {
	switch tok.Status {
	case StatusHome, StatusFinished:
		return false
	case StatusBase:
		return dice == 6
	}

	stack := stackSizeAt(tokens, controlled, tok)
	eff := dice
	if stack >= 2 {
		// A forced stack moves together, each member by half the dice.
		if dice%2 != 0 {
			return false
		}
		eff = dice / 2
		if eff < 1 {
			return false
		}
	}

	if tok.InHomeRun() {
		return (tok.Position-homeRunBase)+eff <= board.HomeRunMax
	}

	entry := board.EntryIndexAdjusted(tok.Color)
	distance := (entry - tok.Position + board.TrackCells) % board.TrackCells
	completesLap := tok.Steps+distance >= board.RotationThreshold

	if completesLap && eff > distance {
		overshoot := eff - distance
		if overshoot >= 1 && overshoot <= board.HomeRunMax+1 {
			// A home-entry exists; continuing past the arrow is ruled
			// out, so legality is the entry path alone.
			return pathClear(tokens, tok.Position, distance, controlled, stack)
		}
	}

	return pathClear(tokens, tok.Position, eff, controlled, stack)
}

// pathClear walks cells (from+1..from+span) mod 52 and reports whether a
// mover of the given stack size may traverse them. Safe cells are always
// passable; enemy blockades stop single movers but not stacks.
func pathClear(tokens TokenSet, from, span int, allied []board.Color, stack int) bool {
	if stack >= 2 {
		return true
	}
	for s := 1; s <= span; s++ {
		cell := (from + s) % board.TrackCells
		if board.IsSafe(cell) {
			continue
		}
		if enemyBlockadeAt(tokens, allied, cell) {
			return false
		}
	}
	return true
}

// stackSizeAt counts allied tokens sharing the token's non-safe track cell,
// the token itself included. Anything below 2 means no forced stack.
func stackSizeAt(tokens TokenSet, allied []board.Color, tok Token) int {
	if !tok.OnTrack() || board.IsSafe(tok.Position) {
		return 0
	}
	n := 0
	for _, c := range allied {
		for _, other := range tokens[c] {
			if other.OnTrack() && other.Position == tok.Position {
				n++
			}
		}
	}
	return n
}

// StackMembers returns every allied token that must move together with tok
// under the forced-stack rule, tok included. A single-token result means
// the token moves alone.
func StackMembers(tokens TokenSet, allied []board.Color, tok Token) []Move {
	if stackSizeAt(tokens, allied, tok) < 2 {
		return []Move{{TokenID: tok.ID, Color: tok.Color}}
	}
	members := []Move{}
	for _, c := range allied {
		for _, other := range tokens[c] {
			if other.OnTrack() && other.Position == tok.Position {
				members = append(members, Move{TokenID: other.ID, Color: other.Color})
			}
		}
	}
	return members
}

// enemyBlockadeAt reports whether any single enemy color has two or more
// tokens on the cell.
func enemyBlockadeAt(tokens TokenSet, allied []board.Color, cell int) bool {
	for c, colorTokens := range tokens {
		if containsColor(allied, c) {
			continue
		}
		n := 0
		for _, tok := range colorTokens {
			if tok.OnTrack() && tok.Position == cell {
				n++
			}
		}
		if n >= 2 {
			return true
		}
	}
	return false
}

// MoveOutcome is the result of applying one token's move.
type MoveOutcome struct {
	Token    Token
	Captured []CapturedToken
	// EnteredHome is true when this move finished the token.
	EnteredHome bool
}

// ApplyMove advances one token by the dice value and reports any captures.
// The caller is expected to have validated the move via FindValidMoves; an
// illegal input returns the token unchanged with no captures. Captured
// victims are identified but not mutated; the caller teleports them back to
// base (see ResetCaptured). enterHome is the client's preference and only
// matters when rules leave a choice; a legal home-entry always wins over
// continuing past the arrow.
func ApplyMove(tokens TokenSet, tok Token, dice int, enterHome bool, allied []board.Color) MoveOutcome {
	out := MoveOutcome{Token: tok}

	switch tok.Status {
	case StatusHome, StatusFinished:
		return out
	case StatusBase:
		if dice != 6 {
			return out
		}
		spawn := board.HomeStart(tok.Color)
		tok.Position = spawn
		tok.Steps = 0
		if board.IsSafe(spawn) {
			tok.Status = StatusSafe
		} else {
			tok.Status = StatusActive
		}
		// Spawning on an enemy never captures.
		out.Token = tok
		return out
	}

	stack := stackSizeAt(tokens, allied, tok)
	eff := dice
	if stack >= 2 {
		if dice%2 != 0 {
			return out
		}
		eff = dice / 2
	}
	return applyAdvance(tokens, tok, eff, stack, allied)
}

// ApplyForcedStack moves every member of a forced stack by dice/2 and
// returns the per-token outcomes plus a deduplicated capture list. The
// stack size is fixed up front so members applied later still move as part
// of the stack even after earlier members have left the cell. Tokens are
// written back into the set; victims are left for the caller to reset.
func ApplyForcedStack(tokens TokenSet, members []Move, dice int, allied []board.Color) ([]MoveOutcome, []CapturedToken) {
	if dice%2 != 0 || len(members) == 0 {
		return nil, nil
	}
	eff := dice / 2
	stack := len(members)

	outcomes := make([]MoveOutcome, 0, len(members))
	seen := make(map[CapturedToken]bool)
	var captured []CapturedToken

	for _, m := range members {
		tok, ok := TokenByID(tokens, m.Color, m.TokenID)
		if !ok {
			continue
		}
		out := applyAdvance(tokens, tok, eff, stack, allied)
		SetToken(tokens, out.Token)
		for _, v := range out.Captured {
			if !seen[v] {
				seen[v] = true
				captured = append(captured, v)
			}
		}
		out.Captured = nil
		outcomes = append(outcomes, out)
	}
	return outcomes, captured
}

// applyAdvance moves a non-base token by the effective dice with a known
// stack size. It is the shared core of ApplyMove and ApplyForcedStack.
func applyAdvance(tokens TokenSet, tok Token, eff, stack int, allied []board.Color) MoveOutcome {
	out := MoveOutcome{Token: tok}

	if tok.InHomeRun() {
		next := (tok.Position - homeRunBase) + eff
		if next > board.HomeRunMax {
			return out
		}
		if next == board.HomeRunMax {
			tok.Position = PosHome
			tok.Status = StatusHome
			out.EnteredHome = true
		} else {
			tok.Position = homeRunBase + next
			tok.Status = StatusSafe
		}
		out.Token = tok
		return out
	}

	entry := board.EntryIndexAdjusted(tok.Color)
	distance := (entry - tok.Position + board.TrackCells) % board.TrackCells
	completesLap := tok.Steps+distance >= board.RotationThreshold
	overshoot := eff - distance

	if completesLap && overshoot >= 1 && overshoot <= board.HomeRunMax+1 {
		tok.Steps += eff
		if overshoot == board.HomeRunMax+1 {
			tok.Position = PosHome
			tok.Status = StatusHome
			out.EnteredHome = true
		} else {
			tok.Position = homeRunBase + overshoot - 1
			tok.Status = StatusSafe
		}
		out.Token = tok
		return out
	}

	newPos := (tok.Position + eff) % board.TrackCells
	tok.Position = newPos
	tok.Steps += eff
	if board.IsSafe(newPos) {
		tok.Status = StatusSafe
	} else {
		tok.Status = StatusActive
		out.Captured = capturesAt(tokens, allied, newPos, stack)
	}
	out.Token = tok
	return out
}

// capturesAt resolves captures for a landing on a non-safe track cell.
// One lone enemy token is captured. Two or more enemy tokens form a
// blockade: uncapturable by a single mover, captured wholesale by a stack.
func capturesAt(tokens TokenSet, allied []board.Color, cell, stack int) []CapturedToken {
	var victims []CapturedToken
	for c, colorTokens := range tokens {
		if containsColor(allied, c) {
			continue
		}
		for _, tok := range colorTokens {
			if tok.OnTrack() && tok.Position == cell {
				victims = append(victims, CapturedToken{TokenID: tok.ID, Color: tok.Color})
			}
		}
	}
	switch {
	case len(victims) == 0:
		return nil
	case len(victims) == 1:
		return victims
	case stack >= 2:
		// Blockade break: the whole stack of defenders goes back.
		return victims
	default:
		return nil
	}
}

// ResetCaptured sends a captured token back to base in place. The steps
// sentinel marks the capture until the next release.
func ResetCaptured(tokens TokenSet, victim CapturedToken) {
	colorTokens := tokens[victim.Color]
	for i := range colorTokens {
		if colorTokens[i].ID == victim.TokenID {
			colorTokens[i].Position = PosBase
			colorTokens[i].Status = StatusBase
			colorTokens[i].Steps = StepsCaptured
			return
		}
	}
}

// CheckWin reports whether every token of the color is home.
func CheckWin(tokens TokenSet, c board.Color) bool {
	colorTokens := tokens[c]
	if len(colorTokens) != board.TokensPerColor {
		return false
	}
	for _, tok := range colorTokens {
		if tok.Status != StatusHome && tok.Status != StatusFinished {
			return false
		}
	}
	return true
}

// AdvanceTurn returns the next seat index in canonical order. With
// skipWinners set, seats already ranked are passed over; team mode disables
// the skip so a finished color's seat still plays for its partner.
func AdvanceTurn(currentIndex int, seatIDs []string, winners []Winner, skipWinners bool) int {
	n := len(seatIDs)
	if n == 0 {
		return 0
	}
	if currentIndex < 0 || currentIndex >= n {
		currentIndex = 0
	}
	for step := 1; step <= n; step++ {
		next := (currentIndex + step) % n
		if skipWinners && winnerContains(winners, seatIDs[next]) {
			continue
		}
		return next
	}
	return currentIndex
}

// GrantsExtraTurn implements the extra-turn policy: a six, any capture, or
// a home transition keeps the turn.
func GrantsExtraTurn(dice int, anyCaptured, anyHomed bool) bool {
	return dice == 6 || anyCaptured || anyHomed
}

func winnerContains(winners []Winner, seatID string) bool {
	for _, w := range winners {
		if w.SeatID == seatID {
			return true
		}
	}
	return false
}

func containsColor(colors []board.Color, c board.Color) bool {
	for _, x := range colors {
		if x == c {
			return true
		}
	}
	return false
}

// TokenByID returns a copy of the identified token. ok is false when the
// color or id is unknown.
func TokenByID(tokens TokenSet, c board.Color, id int) (Token, bool) {
	for _, tok := range tokens[c] {
		if tok.ID == id {
			return tok, true
		}
	}
	return Token{}, false
}

// SetToken writes a token back into the set by id.
func SetToken(tokens TokenSet, tok Token) {
	colorTokens := tokens[tok.Color]
	for i := range colorTokens {
		if colorTokens[i].ID == tok.ID {
			colorTokens[i] = tok
			return
		}
	}
}
