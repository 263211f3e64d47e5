package dice

// toDistribution turns raw weights into a probability vector with the
// profile's entropy floor applied, so no face ever drops below a visible
// minimum share.
func toDistribution(p *Profile, w [7]float64) [7]float64 {
	var dist [7]float64
	total := 0.0
	for f := 1; f <= 6; f++ {
		if w[f] < 0 {
			w[f] = 0
		}
		total += w[f]
	}
	if total <= 0 {
		for f := 1; f <= 6; f++ {
			dist[f] = 1.0 / 6.0
		}
		return dist
	}
	for f := 1; f <= 6; f++ {
		dist[f] = w[f] / total
	}

	floor := p.EntropyFloor
	deficit := 0.0
	surplus := 0.0
	for f := 1; f <= 6; f++ {
		if dist[f] < floor {
			deficit += floor - dist[f]
			dist[f] = floor
		} else {
			surplus += dist[f] - floor
		}
	}
	if deficit > 0 && surplus > 0 {
		// Pay the floor out of the faces above it, proportionally.
		for f := 1; f <= 6; f++ {
			if dist[f] > floor {
				dist[f] -= deficit * (dist[f] - floor) / surplus
			}
		}
	}
	return dist
}

// maskPerception blends the shaped distribution back toward uniform and caps
// any single face, hiding the shaping from players watching frequencies.
// repeated is the face rolled three times running (0 when none); if it still
// dominates after the blend it is shaved once more. rnd picks the blend
// strength inside the profile's alpha band and the closing micro-jitter.
func maskPerception(p *Profile, dist [7]float64, repeated int, rnd func() float64) [7]float64 {
	alpha := p.MaskAlphaMin + rnd()*(p.MaskAlphaMax-p.MaskAlphaMin)
	uniform := 1.0 / 6.0
	for f := 1; f <= 6; f++ {
		dist[f] = dist[f]*(1-alpha) + uniform*alpha
	}

	for f := 1; f <= 6; f++ {
		if dist[f] > p.MaxFaceProb {
			excess := dist[f] - p.MaxFaceProb
			dist[f] = p.MaxFaceProb
			// Spread the excess over the other faces.
			for g := 1; g <= 6; g++ {
				if g != f {
					dist[g] += excess / 5
				}
			}
		}
	}

	if repeated >= 1 && repeated <= 6 {
		dominant := true
		for f := 1; f <= 6; f++ {
			if f != repeated && dist[f] >= dist[repeated] {
				dominant = false
				break
			}
		}
		if dominant {
			dist[repeated] *= p.RepeatFaceShave
		}
	}

	for f := 1; f <= 6; f++ {
		dist[f] *= 1 + (rnd()-0.5)*p.MaskJitter
	}
	return renormalize(dist)
}

// guardMinSix raises P(6) to the situational minimum, shrinking the other
// faces proportionally to pay for it.
func guardMinSix(p *Profile, dist [7]float64, fc FaceContext, rank RankContext, m *Momentum) [7]float64 {
	min := p.MinSixBase
	switch {
	case fc.AllInBase:
		min = p.MinSixAllInBase
	case fc.MostInBase:
		min = p.MinSixMostInBase
	case m.NoMoveStreak >= 2:
		min = p.MinSixNoMove
	case rank.IsLast && rank.Phase == PhaseLate:
		min = p.MinSixUrgent
	}
	// A leader closing on a win earns no six guarantee beyond the base.
	if rank.IsLeader && rank.SelfNearWin {
		min = p.MinSixBase * p.MinSixLeaderScale
	}

	if dist[6] >= min {
		return dist
	}
	need := min - dist[6]
	rest := 1 - dist[6]
	if rest <= 0 {
		return dist
	}
	for f := 1; f <= 5; f++ {
		dist[f] -= need * dist[f] / rest
	}
	dist[6] = min
	return renormalize(dist)
}

// sampleFace draws one face from the distribution via the cumulative sum.
func sampleFace(dist [7]float64, rnd func() float64) int {
	r := rnd()
	cum := 0.0
	for f := 1; f <= 6; f++ {
		cum += dist[f]
		if r < cum {
			return f
		}
	}
	return 6
}

// suppressTripleSix resamples a drawn six when the player is riding a double
// six, always on the third, so the 18-cell jackpot stays rare. The resample
// excludes six.
func suppressTripleSix(p *Profile, face int, consecutiveSixes int, dist [7]float64, rnd func() float64) int {
	if face != 6 || consecutiveSixes < 2 {
		return face
	}
	if consecutiveSixes == 2 && rnd() >= p.DoubleSixResampleProb {
		return face
	}
	var reduced [7]float64
	copy(reduced[:], dist[:])
	reduced[6] = 0
	reduced = renormalize(reduced)
	return sampleNonSix(reduced, rnd)
}

func sampleNonSix(dist [7]float64, rnd func() float64) int {
	r := rnd()
	cum := 0.0
	for f := 1; f <= 5; f++ {
		cum += dist[f]
		if r < cum {
			return f
		}
	}
	return 5
}

func renormalize(dist [7]float64) [7]float64 {
	total := 0.0
	for f := 1; f <= 6; f++ {
		if dist[f] < 0 {
			dist[f] = 0
		}
		total += dist[f]
	}
	if total <= 0 {
		for f := 1; f <= 6; f++ {
			dist[f] = 1.0 / 6.0
		}
		return dist
	}
	for f := 1; f <= 6; f++ {
		dist[f] /= total
	}
	return dist
}
