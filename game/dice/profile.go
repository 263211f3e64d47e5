package dice

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile is the bundle of numeric knobs governing the engagement engine's
// biases. The server ships one canonical profile; a YAML file can override
// individual knobs for tuning sessions.
type Profile struct {
	// Progressive six pity.
	ForceSixAt      int     `yaml:"forceSixAt"`
	PityBoostBase   float64 `yaml:"pityBoostBase"`
	PityBoostPerGap float64 `yaml:"pityBoostPerGap"`

	// Participation guarantee while every token sits in base.
	AssistAt      int     `yaml:"assistAt"`
	AssistForceAt int     `yaml:"assistForceAt"`
	AssistBoost   float64 `yaml:"assistBoost"`

	// Luck-debt balancing (EMA of dice-3.5).
	LuckDebtLow   float64 `yaml:"luckDebtLow"`
	LuckDebtHigh  float64 `yaml:"luckDebtHigh"`
	LuckDebtBoost float64 `yaml:"luckDebtBoost"`
	LuckDebtNerf  float64 `yaml:"luckDebtNerf"`
	// Forgiveness factor applied to the EMA each roll.
	LuckForgiveness float64 `yaml:"luckForgiveness"`

	// Tempo.
	TempoLateBoost   float64 `yaml:"tempoLateBoost"`
	TempoMidBoost    float64 `yaml:"tempoMidBoost"`
	UrgencyBoostMax  float64 `yaml:"urgencyBoostMax"`
	MatchTimeMinutes int     `yaml:"matchTimeMinutes"`

	// Tactical relevance.
	PlayableBoost   float64 `yaml:"playableBoost"`
	NonPlayableNerf float64 `yaml:"nonPlayableNerf"`
	KillBoost       float64 `yaml:"killBoost"`
	FinishBoost     float64 `yaml:"finishBoost"`

	// Kill and leader pressure.
	LeaderKillBoost     float64 `yaml:"leaderKillBoost"`
	LeaderPressureBoost float64 `yaml:"leaderPressureBoost"`
	RevengeKillBoost    float64 `yaml:"revengeKillBoost"`

	// Escape preservation for trailing players.
	EscapeBoost float64 `yaml:"escapeBoost"`

	// Anti-snowball on current leaders.
	LeaderHighFaceNerf float64 `yaml:"leaderHighFaceNerf"`
	LeaderEscapeNerf   float64 `yaml:"leaderEscapeNerf"`
	LeaderHeatBoost    float64 `yaml:"leaderHeatBoost"`

	// Last-place hope.
	HopePlayableBoost float64 `yaml:"hopePlayableBoost"`
	HopeLowFaceNerf   float64 `yaml:"hopeLowFaceNerf"`

	// Spread awareness.
	SpreadStdevThreshold float64 `yaml:"spreadStdevThreshold"`
	SpreadKillBoost      float64 `yaml:"spreadKillBoost"`
	SpreadPlayableBoost  float64 `yaml:"spreadPlayableBoost"`

	// Bounded situational boosts.
	RubberBandBoost    float64 `yaml:"rubberBandBoost"`
	DeadTurnRescue     float64 `yaml:"deadTurnRescue"`
	EmotionRecovery    float64 `yaml:"emotionRecovery"`
	SessionAssistBoost float64 `yaml:"sessionAssistBoost"`

	// Anti-frustration.
	LowRollPatternThreshold float64 `yaml:"lowRollPatternThreshold"`
	LowRollPenalty          float64 `yaml:"lowRollPenalty"`
	HighRollReward          float64 `yaml:"highRollReward"`
	RepeatFaceShave         float64 `yaml:"repeatFaceShave"`
	RepeatBandShave         float64 `yaml:"repeatBandShave"`

	// Drama and clutch volatility.
	DramaEndsBoost float64 `yaml:"dramaEndsBoost"`

	// Urgency hard floor.
	UrgencyLowFaceFloor float64 `yaml:"urgencyLowFaceFloor"`

	// Entropy noise band.
	NoiseMin float64 `yaml:"noiseMin"`
	NoiseMax float64 `yaml:"noiseMax"`

	// Normalization and perception masking.
	EntropyFloor float64 `yaml:"entropyFloor"`
	MaskAlphaMin float64 `yaml:"maskAlphaMin"`
	MaskAlphaMax float64 `yaml:"maskAlphaMax"`
	MaxFaceProb  float64 `yaml:"maxFaceProb"`
	MaskJitter   float64 `yaml:"maskJitter"`

	// Minimum-six probability guard.
	MinSixBase        float64 `yaml:"minSixBase"`
	MinSixAllInBase   float64 `yaml:"minSixAllInBase"`
	MinSixMostInBase  float64 `yaml:"minSixMostInBase"`
	MinSixNoMove      float64 `yaml:"minSixNoMove"`
	MinSixUrgent      float64 `yaml:"minSixUrgent"`
	MinSixLeaderScale float64 `yaml:"minSixLeaderScale"`

	// Triple-six suppression.
	DoubleSixResampleProb float64 `yaml:"doubleSixResampleProb"`

	// Force limiter.
	ForceBudgetPerMatch int `yaml:"forceBudgetPerMatch"`
	ForceMinGap         int `yaml:"forceMinGap"`

	// Revenge and tilt memory.
	RevengeWindowTurns  int `yaml:"revengeWindowTurns"`
	RecentKillTiltTurns int `yaml:"recentKillTiltTurns"`
	MaxPowerRollCharges int `yaml:"maxPowerRollCharges"`

	// Match phase boundaries as fractions of finished tokens.
	PhaseEarlyBelow float64 `yaml:"phaseEarlyBelow"`
	PhaseMidBelow   float64 `yaml:"phaseMidBelow"`

	// Ranking context thresholds.
	CloseChaseGap int `yaml:"closeChaseGap"`
	NearWinCells  int `yaml:"nearWinCells"`
}

// DefaultProfile returns the canonical tuning the server ships with.
func DefaultProfile() *Profile {
	return &Profile{
		ForceSixAt:      9,
		PityBoostBase:   1.12,
		PityBoostPerGap: 0.22,

		AssistAt:      3,
		AssistForceAt: 5,
		AssistBoost:   2.6,

		LuckDebtLow:     -2.0,
		LuckDebtHigh:    2.0,
		LuckDebtBoost:   1.18,
		LuckDebtNerf:    0.88,
		LuckForgiveness: 0.85,

		TempoLateBoost:   1.30,
		TempoMidBoost:    1.12,
		UrgencyBoostMax:  1.25,
		MatchTimeMinutes: 40,

		PlayableBoost:   1.30,
		NonPlayableNerf: 0.74,
		KillBoost:       1.24,
		FinishBoost:     1.20,

		LeaderKillBoost:     1.32,
		LeaderPressureBoost: 1.15,
		RevengeKillBoost:    1.30,

		EscapeBoost: 1.24,

		LeaderHighFaceNerf: 0.90,
		LeaderEscapeNerf:   0.95,
		LeaderHeatBoost:    1.10,

		HopePlayableBoost: 1.12,
		HopeLowFaceNerf:   0.92,

		SpreadStdevThreshold: 12,
		SpreadKillBoost:      1.15,
		SpreadPlayableBoost:  1.08,

		RubberBandBoost:    1.15,
		DeadTurnRescue:     1.20,
		EmotionRecovery:    1.12,
		SessionAssistBoost: 1.10,

		LowRollPatternThreshold: 0.5,
		LowRollPenalty:          0.82,
		HighRollReward:          1.18,
		RepeatFaceShave:         0.85,
		RepeatBandShave:         0.90,

		DramaEndsBoost: 1.10,

		UrgencyLowFaceFloor: 0.80,

		NoiseMin: 0.97,
		NoiseMax: 1.03,

		EntropyFloor: 0.05,
		MaskAlphaMin: 0.06,
		MaskAlphaMax: 0.14,
		MaxFaceProb:  0.46,
		MaskJitter:   0.02,

		MinSixBase:        0.10,
		MinSixAllInBase:   0.34,
		MinSixMostInBase:  0.24,
		MinSixNoMove:      0.20,
		MinSixUrgent:      0.16,
		MinSixLeaderScale: 0.80,

		DoubleSixResampleProb: 0.85,

		ForceBudgetPerMatch: 6,
		ForceMinGap:         4,

		RevengeWindowTurns:  6,
		RecentKillTiltTurns: 4,
		MaxPowerRollCharges: 3,

		PhaseEarlyBelow: 0.12,
		PhaseMidBelow:   0.55,

		CloseChaseGap: 14,
		NearWinCells:  10,
	}
}

// LoadProfile reads YAML overrides on top of the default profile. Only keys
// present in the file change.
func LoadProfile(path string) (*Profile, error) {
	p := DefaultProfile()
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, p); err != nil {
		return nil, fmt.Errorf("parse profile %s: %w", path, err)
	}
	return p, nil
}
