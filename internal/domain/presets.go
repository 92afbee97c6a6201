package domain

import (
	"fmt"
	"sort"
)

// Preset names for the three mission flavours.
const (
	PresetMission = "mission"
	PresetFree    = "free"
	PresetSeason  = "season"
)

var presets = map[string]MissionRules{
	PresetMission: {
		QuestionCount:       6,
		MinCorrectToPass:    5,
		StartingLives:       2,
		SecondsPerQuestion:  120,
		BonusRedemptionCost: 120,
		Distribution: []CategoryDraw{
			{Category: string(Normal), Count: 5},
			{Category: string(Critical), Count: 1},
		},
		ShuffleChoices: true,
	},
	PresetFree: {
		QuestionCount:       6,
		MinCorrectToPass:    4,
		StartingLives:       3,
		SecondsPerQuestion:  120,
		BonusRedemptionCost: 60,
		ShuffleChoices:      true,
	},
	PresetSeason: {
		QuestionCount:               6,
		MinCorrectToPass:            5,
		StartingLives:               2,
		SecondsPerQuestion:          120,
		BonusRedemptionCost:         120,
		EarlyExitOnThresholdReached: true,
		ShuffleChoices:              true,
	},
}

// Preset returns a copy of the named rules preset.
func Preset(name string) (MissionRules, error) {
	r, ok := presets[name]
	if !ok {
		return MissionRules{}, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}
	r.Distribution = append([]CategoryDraw(nil), r.Distribution...)
	return r, nil
}

// Presets returns copies of all built-in presets keyed by name.
func Presets() map[string]MissionRules {
	out := make(map[string]MissionRules, len(presets))
	for name := range presets {
		out[name], _ = Preset(name)
	}
	return out
}

// PresetNames lists the preset names in stable order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
