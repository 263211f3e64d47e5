// Package taunt turns game events into short trash-talk lines. A director
// maps each event to an emotion, picks a target, ranks the line catalog and
// rate-limits delivery so banter stays punchy instead of spammy. Depending
// on the room's taunt mode lines are suggested to the actor or spoken
// automatically on their behalf.
package taunt

import (
	"github.com/openludo/arena/game/board"
)

// EventType classifies the game moments the director reacts to.
type EventType string

const (
	EventCapture    EventType = "capture"
	EventCaptured   EventType = "got_captured"
	EventRelease    EventType = "released_token"
	EventBlockade   EventType = "blockade"
	EventEscape     EventType = "entered_safe"
	EventTokenHome  EventType = "token_home"
	EventTripleMiss EventType = "no_move_streak"
	EventSix        EventType = "rolled_six"
	EventClutch     EventType = "clutch_roll"
	EventLastPlace  EventType = "last_place"
	EventLeadChange EventType = "lead_change"
	EventNearWin    EventType = "near_win"
	EventWin        EventType = "win"
	EventComeback   EventType = "comeback"
)

// Emotion is the register a line is written in.
type Emotion string

const (
	EmotionGloat   Emotion = "gloat"
	EmotionRage    Emotion = "rage"
	EmotionMock    Emotion = "mock"
	EmotionMenace  Emotion = "menace"
	EmotionCheer   Emotion = "cheer"
	EmotionDespair Emotion = "despair"
	EmotionRevenge Emotion = "revenge"
)

// emotionFor maps an event to the actor's emotional register. A capture by
// someone who was recently the actor's killer upgrades gloat to revenge; the
// director handles that separately because it needs memory.
var emotionFor = map[EventType]Emotion{
	EventCapture:    EmotionGloat,
	EventCaptured:   EmotionRage,
	EventRelease:    EmotionCheer,
	EventBlockade:   EmotionMenace,
	EventEscape:     EmotionMock,
	EventTokenHome:  EmotionCheer,
	EventTripleMiss: EmotionDespair,
	EventSix:        EmotionCheer,
	EventClutch:     EmotionMenace,
	EventLastPlace:  EmotionDespair,
	EventLeadChange: EmotionGloat,
	EventNearWin:    EmotionMenace,
	EventWin:        EmotionGloat,
	EventComeback:   EmotionCheer,
}

// Event is one game moment offered to the director.
type Event struct {
	Type        EventType
	RoomID      string
	ActorSeatID string
	ActorColor  board.Color
	// TargetSeatIDs are the seats on the receiving end, victims first.
	TargetSeatIDs []string
	// Standings metadata, used to aim untargeted events: a leading actor
	// taunts the player chasing them, everyone else taunts the leader.
	ActorIsLeader bool
	LeaderSeatID  string
	ChaserSeatID  string
}

// Suggestion is a ranked line the director produced. Auto lines are spoken
// immediately; the rest are offered to the actor's client.
type Suggestion struct {
	LineID       string  `json:"lineId"`
	Text         string  `json:"text"`
	Emotion      Emotion `json:"emotion"`
	FromSeatID   string  `json:"fromSeatId"`
	TargetSeatID string  `json:"targetSeatId,omitempty"`
	Auto         bool    `json:"auto"`
}
