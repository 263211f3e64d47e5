package engine

import (
	"time"

	"github.com/openludo/arena/game/board"
)

// TokenStatus tracks where a token is in its lifecycle.
type TokenStatus string

const (
	StatusBase     TokenStatus = "base"
	StatusActive   TokenStatus = "active"
	StatusSafe     TokenStatus = "safe"
	StatusHome     TokenStatus = "home"
	StatusFinished TokenStatus = "finished"
)

// Position sentinels. Main-track cells are 0..51, home-run lane cells are
// 52..56, and PosHome marks a finished token.
const (
	PosBase     = -1
	PosHome     = 58
	homeRunBase = 52
)

// StepsCaptured is the steps sentinel for a token that was just sent back
// to base by a capture. A fresh base release resets it to zero.
const StepsCaptured = -1

// Token is a single piece on the board.
type Token struct {
	ID       int         `json:"id" bson:"id"`
	Color    board.Color `json:"color" bson:"color"`
	Position int         `json:"position" bson:"position"`
	Status   TokenStatus `json:"status" bson:"status"`
	Steps    int         `json:"steps" bson:"steps"`
}

// OnTrack reports whether the token sits on the shared main track.
func (t Token) OnTrack() bool {
	return t.Position >= 0 && t.Position < board.TrackCells &&
		(t.Status == StatusActive || t.Status == StatusSafe)
}

// InHomeRun reports whether the token is inside its private lane.
func (t Token) InHomeRun() bool {
	return t.Position >= homeRunBase && t.Position < PosHome
}

// TokenSet groups tokens by color. Only active colors are populated.
type TokenSet map[board.Color][]Token

// NewTokenSet creates four base tokens for each of the given colors.
func NewTokenSet(colors []board.Color) TokenSet {
	ts := make(TokenSet, len(colors))
	for _, c := range colors {
		tokens := make([]Token, board.TokensPerColor)
		for i := range tokens {
			tokens[i] = Token{ID: i, Color: c, Position: PosBase, Status: StatusBase, Steps: 0}
		}
		ts[c] = tokens
	}
	return ts
}

// Clone deep-copies the set so mutations never alias a published board.
func (ts TokenSet) Clone() TokenSet {
	out := make(TokenSet, len(ts))
	for c, tokens := range ts {
		cp := make([]Token, len(tokens))
		copy(cp, tokens)
		out[c] = cp
	}
	return out
}

// Move identifies a playable token for the outstanding dice value.
type Move struct {
	TokenID int         `json:"tokenId" bson:"tokenId"`
	Color   board.Color `json:"color" bson:"color"`
}

// CapturedToken identifies a victim of a move.
type CapturedToken struct {
	TokenID int         `json:"tokenId"`
	Color   board.Color `json:"color"`
}

// Winner records a seat finishing with its rank.
type Winner struct {
	SeatID string `json:"seatId" bson:"seatId"`
	Rank   int    `json:"rank" bson:"rank"`
}

// maxGameLog bounds the human-readable event ring on the board.
const maxGameLog = 50

// GameBoard is the per-room runtime state.
type GameBoard struct {
	Tokens          TokenSet   `json:"tokens" bson:"tokens"`
	CurrentPlayerID string     `json:"currentPlayerId,omitempty" bson:"currentPlayerId,omitempty"`
	DiceValue       int        `json:"diceValue,omitempty" bson:"diceValue,omitempty"`
	ValidMoves      []Move     `json:"validMoves" bson:"validMoves"`
	GameLog         []string   `json:"gameLog" bson:"gameLog"`
	Winners         []Winner   `json:"winners" bson:"winners"`
	LastRollAt      *time.Time `json:"lastRollAt,omitempty" bson:"lastRollAt,omitempty"`
	Revision        int64      `json:"revision" bson:"revision"`
}

// NewGameBoard builds the initial board for the given active colors.
func NewGameBoard(colors []board.Color) *GameBoard {
	return &GameBoard{
		Tokens:     NewTokenSet(colors),
		ValidMoves: []Move{},
		GameLog:    []string{},
		Winners:    []Winner{},
	}
}

// AppendLog appends a line to the bounded game log ring.
func (g *GameBoard) AppendLog(line string) {
	g.GameLog = append(g.GameLog, line)
	if len(g.GameLog) > maxGameLog {
		g.GameLog = g.GameLog[len(g.GameLog)-maxGameLog:]
	}
}

// ClearRoll drops the outstanding dice state after a move or a skip.
func (g *GameBoard) ClearRoll() {
	g.DiceValue = 0
	g.ValidMoves = []Move{}
	g.LastRollAt = nil
}

// HasWinner reports whether a seat already appears in the winners list.
func (g *GameBoard) HasWinner(seatID string) bool {
	for _, w := range g.Winners {
		if w.SeatID == seatID {
			return true
		}
	}
	return false
}

// Clone deep-copies the board.
func (g *GameBoard) Clone() *GameBoard {
	cp := *g
	cp.Tokens = g.Tokens.Clone()
	cp.ValidMoves = append([]Move{}, g.ValidMoves...)
	cp.GameLog = append([]string{}, g.GameLog...)
	cp.Winners = append([]Winner{}, g.Winners...)
	if g.LastRollAt != nil {
		t := *g.LastRollAt
		cp.LastRollAt = &t
	}
	return &cp
}
