package dice

// RollInputs gathers everything the weight pipeline reads for one roll.
type RollInputs struct {
	Momentum *Momentum
	Faces    FaceContext
	Rank     RankContext
	Story    StoryPhase
	// ElapsedFrac is match wall time over the profile's target time,
	// clamped by the caller to [0,1].
	ElapsedFrac float64
}

// BuildWeights runs the ordered bias pipeline and returns unnormalized
// per-face weights (index 1..6) plus whether a hard six-force is requested.
// The force request is advisory; the engine's limiter has the final say.
// rnd supplies the entropy noise in [0,1).
func BuildWeights(p *Profile, in RollInputs, rnd func() float64) (w [7]float64, wantSix bool) {
	for f := 1; f <= 6; f++ {
		w[f] = 1
	}
	m, fc, rank := in.Momentum, in.Faces, in.Rank

	// 1. Progressive six pity. The boost grows with the drought; past the
	// force threshold the engine deals a six outright (limiter permitting).
	if gap := m.TurnsSinceSix - 4; gap > 0 {
		w[6] *= p.PityBoostBase + float64(gap)*p.PityBoostPerGap
	}
	if m.TurnsSinceSix >= p.ForceSixAt {
		wantSix = true
	}

	// 2. Participation guarantee while everything sits in base.
	if fc.AllInBase && m.TurnsAllInBase >= p.AssistAt {
		w[6] *= p.AssistBoost
		if m.TurnsAllInBase >= p.AssistForceAt {
			wantSix = true
		}
	}

	// 3. Luck-debt balancing.
	if m.LuckDelta < p.LuckDebtLow {
		for f := 4; f <= 6; f++ {
			w[f] *= p.LuckDebtBoost
		}
	} else if m.LuckDelta > p.LuckDebtHigh {
		for f := 4; f <= 6; f++ {
			w[f] *= p.LuckDebtNerf
		}
	}

	// 4. Tempo: later phases favor bigger faces so games converge.
	switch rank.Phase {
	case PhaseMid:
		for f := 4; f <= 6; f++ {
			w[f] *= p.TempoMidBoost
		}
	case PhaseLate:
		for f := 4; f <= 6; f++ {
			w[f] *= p.TempoLateBoost
		}
	}
	if in.ElapsedFrac > 0.5 {
		urgency := 1 + (p.UrgencyBoostMax-1)*(in.ElapsedFrac-0.5)*2
		for f := 4; f <= 6; f++ {
			w[f] *= urgency
		}
	}

	// 5. Tactical relevance: faces that do something beat faces that waste
	// the turn.
	for f := 1; f <= 6; f++ {
		if fc.Playable[f] {
			w[f] *= p.PlayableBoost
		} else if fc.AnyPlayable {
			w[f] *= p.NonPlayableNerf
		}
		if fc.Kill[f] {
			w[f] *= p.KillBoost
		}
		if fc.Finish[f] {
			w[f] *= p.FinishBoost
		}
	}

	// 6. Kill steering: hitting the leader or a revenge target is the most
	// satisfying outcome the engine can arrange.
	for f := 1; f <= 6; f++ {
		if fc.LeaderKill[f] {
			w[f] *= p.LeaderKillBoost
		}
		if fc.LeaderPressure[f] {
			w[f] *= p.LeaderPressureBoost
		}
		if fc.RevengeKill[f] && m.RevengeArmedTurns > 0 {
			w[f] *= p.RevengeKillBoost
		}
	}

	// 7. Escape preservation for non-leaders under threat.
	if !rank.IsLeader && fc.AnyThreat {
		for f := 1; f <= 6; f++ {
			if fc.Escape[f] {
				w[f] *= p.EscapeBoost
			}
		}
	}

	// 8. Anti-snowball: trim the leader's high faces and escapes while
	// heating up everyone hunting it.
	if rank.IsLeader && rank.Phase != PhaseEarly {
		for f := 4; f <= 6; f++ {
			w[f] *= p.LeaderHighFaceNerf
		}
		for f := 1; f <= 6; f++ {
			if fc.Escape[f] {
				w[f] *= p.LeaderEscapeNerf
			}
		}
	}
	if rank.CloseChase {
		for f := 1; f <= 6; f++ {
			if fc.Kill[f] || fc.LeaderPressure[f] {
				w[f] *= p.LeaderHeatBoost
			}
		}
	}

	// 9. Last-place hope.
	if rank.IsLast {
		for f := 1; f <= 6; f++ {
			if fc.Playable[f] {
				w[f] *= p.HopePlayableBoost
			}
		}
		for f := 1; f <= 2; f++ {
			w[f] *= p.HopeLowFaceNerf
		}
	}

	// 10. Spread awareness: a strung-out board rewards consolidation plays.
	if rank.SpreadHigh {
		for f := 1; f <= 6; f++ {
			if fc.Kill[f] {
				w[f] *= p.SpreadKillBoost
			} else if fc.Playable[f] {
				w[f] *= p.SpreadPlayableBoost
			}
		}
	}

	// 11. Bounded situational help. Each factor is a small multiplier and
	// the session assist taper shrinks them as the player accumulates help.
	taper := 1.0
	if m.SessionAssistScore > 0 {
		taper = 1 / (1 + m.SessionAssistScore*0.15)
	}
	if rank.IsLast && rank.LeadGap > 2*p.CloseChaseGap {
		applyBounded(&w, p.RubberBandBoost, taper, fc)
	}
	if m.NoMoveStreak >= 2 {
		applyBounded(&w, p.DeadTurnRescue, taper, fc)
	}
	if m.RecentlyKilledTurns > 0 {
		applyBounded(&w, p.EmotionRecovery, taper, fc)
	}
	if m.PowerRollCharges > 0 {
		applyBounded(&w, p.SessionAssistBoost, taper, fc)
	}

	// 12. Anti-frustration: break visible low streaks and shave repeats so
	// the die never reads as scripted.
	if m.LowRollShare() >= p.LowRollPatternThreshold {
		for f := 1; f <= 2; f++ {
			w[f] *= p.LowRollPenalty
		}
		for f := 5; f <= 6; f++ {
			w[f] *= p.HighRollReward
		}
	}
	if face := m.RepeatedFace(); face != 0 {
		w[face] *= p.RepeatFaceShave
	}
	if low, ok := m.RepeatedBand(); ok {
		if low {
			for f := 1; f <= 3; f++ {
				w[f] *= p.RepeatBandShave
			}
		} else {
			for f := 4; f <= 6; f++ {
				w[f] *= p.RepeatBandShave
			}
		}
	}

	// 13. Story volatility: chaotic beats widen the extremes slightly.
	if in.Story == StoryChaos || in.Story == StoryFinish {
		w[1] *= p.DramaEndsBoost
		w[6] *= p.DramaEndsBoost
	}

	// 14. Urgency floor: deep in overtime the low faces lose ground no
	// matter what earlier steps decided.
	if in.ElapsedFrac >= 1 {
		for f := 1; f <= 3; f++ {
			w[f] *= p.UrgencyLowFaceFloor
		}
	}

	// 15. Entropy noise keeps identical situations from producing identical
	// distributions.
	for f := 1; f <= 6; f++ {
		w[f] *= p.NoiseMin + rnd()*(p.NoiseMax-p.NoiseMin)
	}

	return w, wantSix
}

// applyBounded lifts every playable face by a tapered factor, never past the
// raw factor itself.
func applyBounded(w *[7]float64, factor, taper float64, fc FaceContext) {
	eff := 1 + (factor-1)*taper
	for f := 1; f <= 6; f++ {
		if fc.Playable[f] {
			w[f] *= eff
		}
	}
}
