package dice

// StoryPhase is the match-level narrative beat the director believes the
// room is in. It nudges weights globally so matches develop an arc instead
// of a flat grind.
type StoryPhase string

const (
	StoryStart  StoryPhase = "cautious_start"
	StorySpread StoryPhase = "early_spread"
	StoryFights StoryPhase = "mid_fights"
	StoryLeader StoryPhase = "leader_threat"
	StoryHope   StoryPhase = "comeback_hope"
	StoryChaos  StoryPhase = "chaos"
	StoryFinish StoryPhase = "final_sprint"
)

// Director is the per-room story state, persisted to the cache alongside the
// momentum records.
type Director struct {
	Phase          StoryPhase `json:"phase"`
	TotalRolls     int        `json:"totalRolls"`
	Captures       int        `json:"captures"`
	RecentCaptures int        `json:"recentCaptures"`
	LeaderSide     int        `json:"leaderSide"`
	LeaderChanges  int        `json:"leaderChanges"`
	ComebackPulses int        `json:"comebackPulses"`
}

// NewDirector starts a room at the cautious opening beat.
func NewDirector() *Director {
	return &Director{Phase: StoryStart, LeaderSide: -1}
}

// ObserveCapture counts a capture toward the fight and chaos detectors.
func (d *Director) ObserveCapture() {
	d.Captures++
	d.RecentCaptures++
}

// Observe reclassifies the phase before a roll. leaderSide identifies the
// currently best-scoring side so leadership churn can be tracked.
func (d *Director) Observe(rank RankContext, leaderSide int) StoryPhase {
	d.TotalRolls++
	if leaderSide != d.LeaderSide {
		if d.LeaderSide >= 0 {
			d.LeaderChanges++
			if d.RecentCaptures > 0 {
				d.ComebackPulses++
			}
		}
		d.LeaderSide = leaderSide
	}
	// Recent-capture heat decays so mid_fights does not pin forever.
	if d.TotalRolls%8 == 0 && d.RecentCaptures > 0 {
		d.RecentCaptures--
	}

	switch {
	case rank.AnyNearWin || rank.Phase == PhaseLate:
		d.Phase = StoryFinish
	case d.TotalRolls < 12:
		d.Phase = StoryStart
	case d.LeaderChanges >= 3 && d.RecentCaptures >= 2:
		d.Phase = StoryChaos
	case d.RecentCaptures >= 2:
		d.Phase = StoryFights
	case rank.IsLast && rank.LeadGap > 0 && d.ComebackPulses > 0:
		d.Phase = StoryHope
	case rank.Phase == PhaseMid && rank.LeadGap > 60:
		d.Phase = StoryLeader
	case rank.Phase == PhaseEarly:
		d.Phase = StorySpread
	default:
		d.Phase = StoryFights
	}
	return d.Phase
}
