package service

import (
	"context"
	"fmt"

	"github.com/openludo/arena/game/board"
	"github.com/openludo/arena/game/dice"
	"github.com/openludo/arena/game/engine"
	"github.com/openludo/arena/game/state"
	"github.com/openludo/arena/game/taunt"
	"github.com/openludo/arena/store"
)

// StartGame transitions a waiting room to in_progress: host only, at least
// two seats, everyone ready. The first player is drawn at random.
func (c *Coordinator) StartGame(ctx context.Context, userID, roomID string) (*engine.GameBoard, error) {
	var boardOut *engine.GameBoard
	err := c.states.RunExclusive(ctx, roomID, func(snap *state.Snapshot) error {
		if snap.Room.Status != store.RoomWaiting {
			return E(KindConflict, "game already started")
		}
		host := seatByID(snap.Seats, snap.Room.HostSeatID)
		if host == nil || host.UserID != userID {
			return errNotHost
		}
		if len(snap.Seats) < 2 {
			return E(KindConflict, "need at least 2 players")
		}
		if snap.Room.Settings.Mode == store.ModeTeam && len(snap.Seats) != snap.Room.Settings.MaxPlayers {
			return E(KindConflict, "team mode needs a full room")
		}
		for _, seat := range snap.Seats {
			if !seat.Ready {
				return E(KindConflict, "all players must be ready")
			}
		}

		colors := make([]board.Color, len(snap.Seats))
		for i, seat := range snap.Seats {
			colors[i] = seat.Color
			seat.Status = store.SeatPlaying
			if err := c.store.UpdateSeat(ctx, seat); err != nil {
				return err
			}
		}

		gb := engine.NewGameBoard(colors)
		first := c.rnd(len(snap.Seats))
		gb.CurrentPlayerID = snap.Seats[first].ID
		gb.AppendLog("Game started")
		snap.Room.GameBoard = gb
		snap.Room.CurrentPlayerIndex = first
		snap.Room.Status = store.RoomInProgress
		snap.Touch()

		if snap.Room.Settings.Mode == store.ModeTeam {
			if err := c.persistTeams(ctx, snap); err != nil {
				return err
			}
		}
		// The status transition is written through immediately so lobby
		// reads and join checks never see a stale waiting room.
		if err := c.store.UpsertRoomState(ctx, roomID, snap.Room.Status, snap.Room.CurrentPlayerIndex, gb); err != nil {
			return err
		}

		boardOut = gb.Clone()
		c.recordEvent(ctx, roomID, "game:start", userID, host.ID, snap.Revision, map[string]any{
			"currentPlayerId": gb.CurrentPlayerID,
		})
		c.broadcast.ToRoom(roomID, "game:start", map[string]any{
			"roomId": roomID,
			"patch": map[string]any{
				"revision":           snap.Revision,
				"status":             snap.Room.Status,
				"currentPlayerIndex": first,
				"gameBoard":          boardOut,
			},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return boardOut, nil
}

// RollResult is what the roll endpoint returns.
type RollResult struct {
	Dice   int            `json:"dice"`
	Valid  []engine.Move  `json:"valid"`
	Patch  map[string]any `json:"patch"`
	Forced bool           `json:"-"`
}

// RollDice produces the current player's dice value, computes valid moves
// and, when none exist, advances the turn in the same patch.
func (c *Coordinator) RollDice(ctx context.Context, userID, roomID string) (*RollResult, error) {
	var out *RollResult
	err := c.states.RunExclusive(ctx, roomID, func(snap *state.Snapshot) error {
		gb, seat, err := c.turnOf(snap, userID)
		if err != nil {
			return err
		}
		if gb.DiceValue != 0 {
			return errAlreadyRolled
		}
		if snap.Room.Settings.Mode == store.ModeIndividual && gb.HasWinner(seat.ID) {
			return errWinnerCannotRoll
		}

		controlled := controlledColors(snap.Room, seat)
		allSides, selfSide := sides(snap, seat)
		allInBase := allTokensInBase(gb.Tokens, controlled)

		roll := c.dice.Roll(ctx, dice.RollRequest{
			RoomID:     roomID,
			SeatID:     seat.ID,
			Color:      seat.Color,
			Controlled: controlled,
			Tokens:     gb.Tokens,
			Sides:      allSides,
			SelfSide:   selfSide,
			StartedAt:  snap.Room.UpdatedAt,
		})

		now := c.now()
		gb.DiceValue = roll.Value
		gb.LastRollAt = &now
		gb.ValidMoves = engine.FindValidMoves(gb.Tokens, seat.Color, roll.Value, controlled)
		gb.AppendLog(fmt.Sprintf("%s rolled %d", seat.Color, roll.Value))
		hadMoves := len(gb.ValidMoves) > 0

		c.dice.ReportOutcome(ctx, roomID, seat.ID, roll.Value, hadMoves, allInBase)

		if len(gb.ValidMoves) == 0 {
			snap.Room.CurrentPlayerIndex = engine.AdvanceTurn(
				snap.Room.CurrentPlayerIndex, seatIDs(snap.Seats), gb.Winners,
				snap.Room.Settings.Mode == store.ModeIndividual)
			gb.CurrentPlayerID = snap.Seats[snap.Room.CurrentPlayerIndex].ID
			gb.ClearRoll()
			gb.AppendLog(fmt.Sprintf("%s has no valid moves", seat.Color))
		}
		snap.Touch()

		patch := map[string]any{
			"revision":           snap.Revision,
			"currentPlayerIndex": snap.Room.CurrentPlayerIndex,
			"gameBoard": map[string]any{
				"diceValue":       gb.DiceValue,
				"validMoves":      gb.ValidMoves,
				"currentPlayerId": gb.CurrentPlayerID,
				"lastRollAt":      gb.LastRollAt,
			},
		}
		out = &RollResult{Dice: roll.Value, Valid: gb.ValidMoves, Patch: patch, Forced: roll.Forced}

		c.emitRollTaunts(snap, seat, roll.Value, hadMoves, c.dice.Rank(gb.Tokens, allSides, selfSide))
		c.recordEvent(ctx, roomID, "dice:roll", userID, seat.ID, snap.Revision, map[string]any{"dice": roll.Value})
		c.states.AppendMove(ctx, roomID, map[string]any{"type": "dice:roll", "dice": roll.Value, "revision": snap.Revision})
		c.broadcast.ToRoom(roomID, "dice:roll", map[string]any{
			"roomId": roomID,
			"dice":   roll.Value,
			"patch":  patch,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// MoveRequest identifies the token move the client chose.
type MoveRequest struct {
	TokenID   int         `json:"tokenId"`
	Color     board.Color `json:"color"`
	DiceValue int         `json:"diceValue"`
	EnterHome bool        `json:"enterHome"`
}

// MakeMove applies a chosen move, resolving forced stacks, captures, wins,
// the extra-turn policy and game completion.
func (c *Coordinator) MakeMove(ctx context.Context, userID, roomID string, req MoveRequest) (*engine.GameBoard, error) {
	var boardOut *engine.GameBoard
	err := c.states.RunExclusive(ctx, roomID, func(snap *state.Snapshot) error {
		gb, seat, err := c.turnOf(snap, userID)
		if err != nil {
			return err
		}
		if snap.Room.Settings.Mode == store.ModeIndividual && gb.HasWinner(seat.ID) {
			return errWinnerCannotMove
		}
		if gb.DiceValue == 0 || req.DiceValue != gb.DiceValue {
			return errDiceMismatch
		}
		if !moveListed(gb.ValidMoves, req.TokenID, req.Color) {
			return errInvalidMove
		}
		controlled := controlledColors(snap.Room, seat)
		if !colorIn(controlled, req.Color) {
			return E(KindForbidden, "color not controlled by this seat")
		}

		tok, ok := engine.TokenByID(gb.Tokens, req.Color, req.TokenID)
		if !ok {
			return errInvalidMove
		}
		dv := gb.DiceValue

		allSides, selfSide := sides(snap, seat)
		rankBefore := c.dice.Rank(gb.Tokens, allSides, selfSide)
		released := tok.Status == engine.StatusBase

		members := engine.StackMembers(gb.Tokens, controlled, tok)
		var captured []engine.CapturedToken
		anyHomed, enteredSafe := false, false
		if len(members) >= 2 {
			outcomes, caps := engine.ApplyForcedStack(gb.Tokens, members, dv, controlled)
			captured = caps
			for _, o := range outcomes {
				if o.EnteredHome {
					anyHomed = true
				}
				if o.Token.Status == engine.StatusSafe && o.Token.OnTrack() {
					enteredSafe = true
				}
			}
			gb.AppendLog(fmt.Sprintf("%s moved a stack of %d", seat.Color, len(members)))
		} else {
			outcome := engine.ApplyMove(gb.Tokens, tok, dv, req.EnterHome, controlled)
			engine.SetToken(gb.Tokens, outcome.Token)
			captured = outcome.Captured
			anyHomed = outcome.EnteredHome
			enteredSafe = !released && outcome.Token.Status == engine.StatusSafe && outcome.Token.OnTrack()
			gb.AppendLog(fmt.Sprintf("%s moved token %d", req.Color, req.TokenID))
		}

		var victimSeats []string
		for _, victim := range captured {
			engine.ResetCaptured(gb.Tokens, victim)
			if vs := seatByColor(snap.Seats, victim.Color); vs != nil {
				victimSeats = append(victimSeats, vs.ID)
			}
			gb.AppendLog(fmt.Sprintf("%s captured %s token %d", seat.Color, victim.Color, victim.TokenID))
		}
		if len(captured) > 0 {
			c.dice.ReportCapture(ctx, roomID, seat.ID, seat.Color, victimSeats)
		}
		blockade := false
		if moved, ok := engine.TokenByID(gb.Tokens, req.Color, req.TokenID); ok && moved.OnTrack() {
			blockade = len(engine.StackMembers(gb.Tokens, controlled, moved)) >= 2
		}

		// Win detection covers every controlled color so a team seat
		// finishing its partner's last token still ranks the partner.
		for _, col := range controlled {
			if !engine.CheckWin(gb.Tokens, col) {
				continue
			}
			ws := seatByColor(snap.Seats, col)
			if ws == nil || gb.HasWinner(ws.ID) {
				continue
			}
			gb.Winners = append(gb.Winners, engine.Winner{SeatID: ws.ID, Rank: len(gb.Winners) + 1})
			ws.Status = store.SeatFinished
			if err := c.store.UpdateSeat(ctx, ws); err != nil {
				return err
			}
			gb.AppendLog(fmt.Sprintf("%s finished rank %d", col, len(gb.Winners)))
		}

		gb.ClearRoll()

		completed := len(gb.Winners) == len(snap.Seats)
		if completed {
			snap.Room.Status = store.RoomCompleted
		} else if !engine.GrantsExtraTurn(dv, len(captured) > 0, anyHomed) {
			snap.Room.CurrentPlayerIndex = engine.AdvanceTurn(
				snap.Room.CurrentPlayerIndex, seatIDs(snap.Seats), gb.Winners,
				snap.Room.Settings.Mode == store.ModeIndividual)
			gb.CurrentPlayerID = snap.Seats[snap.Room.CurrentPlayerIndex].ID
		}
		snap.Touch()

		if completed {
			// Completion is written through so the room document never
			// lingers as in_progress after the final move.
			if err := c.store.UpsertRoomState(ctx, roomID, snap.Room.Status, snap.Room.CurrentPlayerIndex, gb); err != nil {
				return err
			}
		}

		boardOut = gb.Clone()
		patch := map[string]any{
			"revision":           snap.Revision,
			"currentPlayerIndex": snap.Room.CurrentPlayerIndex,
			"gameBoard":          boardOut,
			"gameCompleted":      completed,
		}
		c.emitMoveTaunts(snap, seat, moveFacts{
			victimSeats: victimSeats,
			released:    released,
			enteredSafe: enteredSafe,
			blockade:    blockade,
			homed:       anyHomed,
			completed:   completed,
			before:      rankBefore,
			after:       c.dice.Rank(gb.Tokens, allSides, selfSide),
		})
		c.recordEvent(ctx, roomID, "move", userID, seat.ID, snap.Revision, map[string]any{
			"tokenId":  req.TokenID,
			"color":    req.Color,
			"dice":     dv,
			"captured": len(captured),
		})
		c.states.AppendMove(ctx, roomID, map[string]any{
			"type": "move", "tokenId": req.TokenID, "color": req.Color, "revision": snap.Revision,
		})
		c.broadcast.ToRoom(roomID, "move", map[string]any{
			"roomId":    roomID,
			"tokenId":   req.TokenID,
			"color":     req.Color,
			"diceValue": dv,
			"patch":     patch,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return boardOut, nil
}

// AdvanceTurn lets the current player skip their own outstanding dice after
// the grace period.
func (c *Coordinator) AdvanceTurn(ctx context.Context, userID, roomID string) (map[string]any, error) {
	var patch map[string]any
	err := c.states.RunExclusive(ctx, roomID, func(snap *state.Snapshot) error {
		gb, seat, err := c.turnOf(snap, userID)
		if err != nil {
			return err
		}
		if gb.DiceValue != 0 && gb.LastRollAt != nil && c.now().Sub(*gb.LastRollAt) < moveGrace {
			return errMoveTimeNotExpired
		}

		snap.Room.CurrentPlayerIndex = engine.AdvanceTurn(
			snap.Room.CurrentPlayerIndex, seatIDs(snap.Seats), gb.Winners,
			snap.Room.Settings.Mode == store.ModeIndividual)
		gb.CurrentPlayerID = snap.Seats[snap.Room.CurrentPlayerIndex].ID
		gb.ClearRoll()
		gb.AppendLog(fmt.Sprintf("%s skipped", seat.Color))
		snap.Touch()

		patch = map[string]any{
			"revision":           snap.Revision,
			"currentPlayerIndex": snap.Room.CurrentPlayerIndex,
			"gameBoard": map[string]any{
				"currentPlayerId": gb.CurrentPlayerID,
				"diceValue":       gb.DiceValue,
				"validMoves":      gb.ValidMoves,
				"lastRollAt":      gb.LastRollAt,
			},
		}
		c.recordEvent(ctx, roomID, "turn:advance", userID, seat.ID, snap.Revision, nil)
		c.broadcast.ToRoom(roomID, "turn:advance", map[string]any{
			"roomId": roomID,
			"patch":  patch,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return patch, nil
}

// SendTaunt lets a player speak a previously suggested line, subject to the
// director's limits.
func (c *Coordinator) SendTaunt(ctx context.Context, userID, roomID, lineID string) error {
	if !c.tauntsOn {
		return E(KindConflict, "taunts disabled")
	}
	seat, err := c.store.GetSeat(ctx, roomID, userID)
	if err != nil {
		if err == store.ErrNotFound {
			return errNotInRoom
		}
		return err
	}
	line, ok := taunt.LineByID(lineID)
	if !ok {
		return E(KindValidation, "unknown line")
	}
	if !c.taunts.Confirm(roomID, seat.ID, lineID) {
		return E(KindConflict, "taunt rate limited")
	}
	c.broadcast.ToRoom(roomID, "room:quick-message", map[string]any{
		"roomId":     roomID,
		"fromSeatId": seat.ID,
		"lineId":     line.ID,
		"text":       line.Text,
		"emotion":    line.Emotion,
	})
	return nil
}

// turnOf validates that the room is live and that userID owns the current
// turn, returning the board and the current seat.
func (c *Coordinator) turnOf(snap *state.Snapshot, userID string) (*engine.GameBoard, *store.Seat, error) {
	if snap.Room.Status != store.RoomInProgress || snap.Room.GameBoard == nil {
		return nil, nil, E(KindConflict, "game not in progress")
	}
	seat := currentSeat(snap)
	if seat == nil {
		return nil, nil, E(KindInternal, "room has no seats")
	}
	if seat.UserID != userID {
		return nil, nil, errNotYourTurn
	}
	return snap.Room.GameBoard, seat, nil
}

func (c *Coordinator) persistTeams(ctx context.Context, snap *state.Snapshot) error {
	half := snap.Room.Settings.MaxPlayers / 2
	for i := 0; i < half; i++ {
		team := &store.Team{
			ID:        fmt.Sprintf("%s:%d", snap.Room.ID, i),
			RoomID:    snap.Room.ID,
			TeamIndex: i,
			Name:      snap.Room.Settings.TeamNames[i],
		}
		for _, seat := range snap.Seats {
			if seat.TeamIndex != nil && *seat.TeamIndex == i {
				team.SeatIDs = append(team.SeatIDs, seat.ID)
			}
		}
		if err := c.store.UpsertTeam(ctx, team); err != nil {
			return err
		}
	}
	return nil
}

// emitRollTaunts raises roll-phase taunt events: a six, a clutch roll near
// the end of the match, a last-place player who can finally move, and the
// no-move despair line.
func (c *Coordinator) emitRollTaunts(snap *state.Snapshot, seat *store.Seat, rolled int, hadMove bool, rank dice.RankContext) {
	if !c.tauntsOn {
		return
	}
	var events []taunt.Event
	if rolled == 6 {
		events = append(events, c.tauntEvent(snap, seat, rank, taunt.EventSix, nil))
	}
	if gb := snap.Room.GameBoard; rolled >= 5 && gb != nil && len(snap.Seats) > 1 && len(snap.Seats)-len(gb.Winners) <= 2 {
		events = append(events, c.tauntEvent(snap, seat, rank, taunt.EventClutch, nil))
	}
	if rank.IsLast && hadMove {
		events = append(events, c.tauntEvent(snap, seat, rank, taunt.EventLastPlace, nil))
	}
	if !hadMove {
		events = append(events, c.tauntEvent(snap, seat, rank, taunt.EventTripleMiss, nil))
	}
	c.dispatchTaunts(snap, events)
}

// moveFacts summarizes one applied move for taunt emission.
type moveFacts struct {
	victimSeats []string
	released    bool
	enteredSafe bool
	blockade    bool
	homed       bool
	completed   bool
	before      dice.RankContext
	after       dice.RankContext
}

// emitMoveTaunts raises move-phase taunt events. The mover's events come
// first; each capture victim then gets a reaction event of their own aimed
// back at the attacker.
func (c *Coordinator) emitMoveTaunts(snap *state.Snapshot, seat *store.Seat, f moveFacts) {
	if !c.tauntsOn {
		return
	}
	var events []taunt.Event
	if len(f.victimSeats) > 0 {
		events = append(events, c.tauntEvent(snap, seat, f.after, taunt.EventCapture, f.victimSeats))
	}
	if f.released {
		events = append(events, c.tauntEvent(snap, seat, f.after, taunt.EventRelease, nil))
	}
	if f.enteredSafe {
		events = append(events, c.tauntEvent(snap, seat, f.after, taunt.EventEscape, nil))
	}
	if f.blockade {
		events = append(events, c.tauntEvent(snap, seat, f.after, taunt.EventBlockade, nil))
	}
	if f.homed {
		events = append(events, c.tauntEvent(snap, seat, f.after, taunt.EventTokenHome, nil))
	}
	if f.after.SelfNearWin && !f.before.SelfNearWin {
		events = append(events, c.tauntEvent(snap, seat, f.after, taunt.EventNearWin, nil))
	}
	if f.after.IsLeader && f.after.LeaderSide != f.before.LeaderSide {
		events = append(events, c.tauntEvent(snap, seat, f.after, taunt.EventLeadChange, nil))
	}
	if f.before.IsLast && (len(f.victimSeats) > 0 || f.homed) {
		events = append(events, c.tauntEvent(snap, seat, f.after, taunt.EventComeback, nil))
	}
	if f.completed {
		events = append(events, c.tauntEvent(snap, seat, f.after, taunt.EventWin, nil))
	}
	for _, victimSeatID := range f.victimSeats {
		victim := seatByID(snap.Seats, victimSeatID)
		if victim == nil {
			continue
		}
		events = append(events, taunt.Event{
			Type:          taunt.EventCaptured,
			RoomID:        snap.Room.ID,
			ActorSeatID:   victim.ID,
			ActorColor:    victim.Color,
			TargetSeatIDs: []string{seat.ID},
		})
	}
	c.dispatchTaunts(snap, events)
}

// tauntEvent stamps a mover event with the standings metadata the director's
// target selection needs.
func (c *Coordinator) tauntEvent(snap *state.Snapshot, seat *store.Seat, rank dice.RankContext, t taunt.EventType, targets []string) taunt.Event {
	ev := taunt.Event{
		Type:          t,
		RoomID:        snap.Room.ID,
		ActorSeatID:   seat.ID,
		ActorColor:    seat.Color,
		TargetSeatIDs: targets,
		ActorIsLeader: rank.IsLeader,
	}
	if s := seatForSide(snap, rank.LeaderSide); s != nil {
		ev.LeaderSeatID = s.ID
	}
	if s := seatForSide(snap, rank.ChaserSide); s != nil {
		ev.ChaserSeatID = s.ID
	}
	return ev
}

// seatForSide maps a ranking side index back to a representative seat: the
// seat itself in individual mode, the team's first seat in team mode.
func seatForSide(snap *state.Snapshot, side int) *store.Seat {
	if side < 0 {
		return nil
	}
	if snap.Room.Settings.Mode != store.ModeTeam {
		if side < len(snap.Seats) {
			return snap.Seats[side]
		}
		return nil
	}
	half := snap.Room.Settings.MaxPlayers / 2
	for _, seat := range snap.Seats {
		if seat.Position%half == side {
			return seat
		}
	}
	return nil
}

// dispatchTaunts runs events through the director and routes the output:
// auto lines to the room, suggestions to the event actor's private topic.
func (c *Coordinator) dispatchTaunts(snap *state.Snapshot, events []taunt.Event) {
	mode := snap.Room.Settings.TauntMode
	for _, ev := range events {
		sugs := c.taunts.React(ev, mode)
		if len(sugs) == 0 {
			continue
		}
		if sugs[0].Auto {
			c.broadcast.ToRoom(snap.Room.ID, "room:quick-message", map[string]any{
				"roomId":     snap.Room.ID,
				"fromSeatId": sugs[0].FromSeatID,
				"lineId":     sugs[0].LineID,
				"text":       sugs[0].Text,
				"emotion":    sugs[0].Emotion,
				"auto":       true,
			})
			continue
		}
		actor := seatByID(snap.Seats, ev.ActorSeatID)
		if actor == nil {
			continue
		}
		c.broadcast.ToUser(actor.UserID, "room:taunt-suggestions", map[string]any{
			"roomId":      snap.Room.ID,
			"suggestions": sugs,
		})
	}
}

func allTokensInBase(tokens engine.TokenSet, controlled []board.Color) bool {
	for _, col := range controlled {
		for _, tok := range tokens[col] {
			if tok.Status != engine.StatusBase {
				return false
			}
		}
	}
	return true
}

func moveListed(moves []engine.Move, tokenID int, c board.Color) bool {
	for _, m := range moves {
		if m.TokenID == tokenID && m.Color == c {
			return true
		}
	}
	return false
}

func colorIn(colors []board.Color, c board.Color) bool {
	for _, x := range colors {
		if x == c {
			return true
		}
	}
	return false
}

func seatByID(seats []*store.Seat, id string) *store.Seat {
	for _, seat := range seats {
		if seat.ID == id {
			return seat
		}
	}
	return nil
}
