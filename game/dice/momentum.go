package dice

import (
	"github.com/openludo/arena/game/board"
)

// momentumWindow is how many recent rolls the pattern detectors look at.
const momentumWindow = 10

// Momentum is the per-player emotional state the engine carries between
// rolls. It is serialized to the cache so it survives process restarts for
// the lifetime of a match.
type Momentum struct {
	RecentRolls          []int         `json:"recentRolls"`
	NoMoveStreak         int           `json:"noMoveStreak"`
	TurnsSinceSix        int           `json:"turnsSinceSix"`
	TurnsAllInBase       int           `json:"turnsAllInBase"`
	LuckDelta            float64       `json:"luckDelta"`
	ConsecutiveSixes     int           `json:"consecutiveSixes"`
	RevengeArmedTurns    int           `json:"revengeArmedTurns"`
	RevengeTargetColors  []board.Color `json:"revengeTargetColors,omitempty"`
	RecentlyKilledTurns  int           `json:"recentlyKilledTurns"`
	PowerRollCharges     int           `json:"powerRollCharges"`
	SessionAssistScore   float64       `json:"sessionAssistScore"`
	TurnsSinceForcedRoll int           `json:"turnsSinceForcedRoll"`
}

// NewMomentum returns the neutral starting state.
func NewMomentum() *Momentum {
	return &Momentum{RecentRolls: []int{}}
}

// ReportOutcome folds one completed roll into the momentum state. hadValidMove
// is whether the roll produced at least one legal move; allInBase is the token
// situation before the roll resolved.
func (m *Momentum) ReportOutcome(p *Profile, rolled int, hadValidMove, allInBase bool) {
	m.RecentRolls = append(m.RecentRolls, rolled)
	if len(m.RecentRolls) > momentumWindow {
		m.RecentRolls = m.RecentRolls[len(m.RecentRolls)-momentumWindow:]
	}

	m.LuckDelta = m.LuckDelta*p.LuckForgiveness + (float64(rolled) - 3.5)

	if rolled == 6 {
		m.TurnsSinceSix = 0
		m.ConsecutiveSixes++
	} else {
		m.TurnsSinceSix++
		m.ConsecutiveSixes = 0
	}

	if hadValidMove {
		m.NoMoveStreak = 0
	} else {
		m.NoMoveStreak++
	}

	if allInBase && rolled != 6 {
		m.TurnsAllInBase++
	} else {
		m.TurnsAllInBase = 0
	}

	if m.RevengeArmedTurns > 0 {
		m.RevengeArmedTurns--
		if m.RevengeArmedTurns == 0 {
			m.RevengeTargetColors = nil
		}
	}
	if m.RecentlyKilledTurns > 0 {
		m.RecentlyKilledTurns--
	}
	if m.PowerRollCharges > 0 {
		m.PowerRollCharges--
	}
	m.TurnsSinceForcedRoll++
}

// ReportVictim arms the revenge window after one of the player's tokens was
// sent back to base.
func (m *Momentum) ReportVictim(p *Profile, attacker board.Color) {
	if p.RevengeWindowTurns > m.RevengeArmedTurns {
		m.RevengeArmedTurns = p.RevengeWindowTurns
	}
	if !containsColor(m.RevengeTargetColors, attacker) {
		m.RevengeTargetColors = append(m.RevengeTargetColors, attacker)
	}
	if p.RecentKillTiltTurns > m.RecentlyKilledTurns {
		m.RecentlyKilledTurns = p.RecentKillTiltTurns
	}
}

// ReportAttacker clears the attacker's own tilt after a successful capture,
// banks a power-roll charge and credits the session assist ledger so future
// help tapers off. Charges drain one per reported roll.
func (m *Momentum) ReportAttacker(p *Profile) {
	m.RecentlyKilledTurns = 0
	if m.PowerRollCharges < p.MaxPowerRollCharges {
		m.PowerRollCharges++
	}
	m.SessionAssistScore += 1.0
}

// LowRollShare is the fraction of the recent window at or below 2. The
// anti-frustration pass fires when it crosses the profile threshold.
func (m *Momentum) LowRollShare() float64 {
	if len(m.RecentRolls) == 0 {
		return 0
	}
	low := 0
	for _, r := range m.RecentRolls {
		if r <= 2 {
			low++
		}
	}
	return float64(low) / float64(len(m.RecentRolls))
}

// RepeatedFace returns the face repeated on the last three rolls, or 0.
func (m *Momentum) RepeatedFace() int {
	n := len(m.RecentRolls)
	if n < 3 {
		return 0
	}
	a, b, c := m.RecentRolls[n-3], m.RecentRolls[n-2], m.RecentRolls[n-1]
	if a == b && b == c {
		return a
	}
	return 0
}

// RepeatedBand reports whether the last four rolls all sit in the same half
// of the die (1-3 or 4-6), which players read as a rigged streak.
func (m *Momentum) RepeatedBand() (low bool, ok bool) {
	n := len(m.RecentRolls)
	if n < 4 {
		return false, false
	}
	lowBand, highBand := true, true
	for _, r := range m.RecentRolls[n-4:] {
		if r > 3 {
			lowBand = false
		}
		if r <= 3 {
			highBand = false
		}
	}
	if lowBand {
		return true, true
	}
	if highBand {
		return false, true
	}
	return false, false
}

func containsColor(colors []board.Color, c board.Color) bool {
	for _, x := range colors {
		if x == c {
			return true
		}
	}
	return false
}
