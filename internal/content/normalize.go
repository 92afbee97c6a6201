// Package content turns authored mission files into the uniform domain.MissionContent.
//
// Two authoring formats are accepted:
//   - legacy: a flat "question_bank" list;
//   - structured: "scenes", each holding one question and the narrative it unlocks,
//     followed by a "final_question" that is always critical.
//
// Rules are taken from a named preset and then overridden field by field.
package content

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"mission-quiz-service/internal/domain"
)

// Format selects the decoder for raw mission documents.
type Format string

const (
	JSON Format = "json"
	YAML Format = "yaml"
)

// FormatForPath picks a format from a file extension.
func FormatForPath(path string) (Format, bool) {
	switch {
	case strings.HasSuffix(path, ".json"):
		return JSON, true
	case strings.HasSuffix(path, ".yaml"), strings.HasSuffix(path, ".yml"):
		return YAML, true
	}
	return "", false
}

type rawRules struct {
	QuestionCount               *int                  `json:"questionCount" yaml:"questionCount"`
	MinCorrectToPass            *int                  `json:"minCorrectToPass" yaml:"minCorrectToPass"`
	StartingLives               *int                  `json:"startingLives" yaml:"startingLives"`
	SecondsPerQuestion          *int                  `json:"secondsPerQuestion" yaml:"secondsPerQuestion"`
	BonusRedemptionCost         *int                  `json:"bonusRedemptionCost" yaml:"bonusRedemptionCost"`
	Distribution                []domain.CategoryDraw `json:"distribution" yaml:"distribution"`
	EarlyExitOnThresholdReached *bool                 `json:"earlyExitOnThresholdReached" yaml:"earlyExitOnThresholdReached"`
	ShuffleChoices              *bool                 `json:"shuffleChoices" yaml:"shuffleChoices"`
}

type legacyQuestion struct {
	ID          string   `json:"id" yaml:"id"`
	Category    string   `json:"category" yaml:"category"`
	Question    string   `json:"question" yaml:"question"`
	Options     []string `json:"options" yaml:"options"`
	Answer      *int     `json:"answer" yaml:"answer"`
	Correct     string   `json:"correct" yaml:"correct"`
	Explanation string   `json:"explanation" yaml:"explanation"`
	Unlock      string   `json:"unlock" yaml:"unlock"`
	Critical    bool     `json:"critical" yaml:"critical"`
}

type scene struct {
	ID        string         `json:"id" yaml:"id"`
	Narrative string         `json:"narrative" yaml:"narrative"`
	Question  legacyQuestion `json:"question" yaml:"question"`
}

type rawMission struct {
	ID            string            `json:"id" yaml:"id"`
	Title         string            `json:"title" yaml:"title"`
	Country       string            `json:"country" yaml:"country"`
	Reward        string            `json:"reward" yaml:"reward"`
	Preset        string            `json:"preset" yaml:"preset"`
	Rules         *rawRules         `json:"rules" yaml:"rules"`
	QuestionPool  []domain.Question `json:"questionPool" yaml:"questionPool"`
	QuestionBank  []legacyQuestion  `json:"question_bank" yaml:"question_bank"`
	Scenes        []scene           `json:"scenes" yaml:"scenes"`
	FinalQuestion *legacyQuestion   `json:"final_question" yaml:"final_question"`
}

// Presets resolves a preset name into base rules.
type Presets func(name string) (domain.MissionRules, error)

// Normalizer decodes and normalizes mission documents.
type Normalizer struct {
	presets       Presets
	defaultPreset string
}

// NewNormalizer uses the given preset lookup; a nil lookup falls back to domain.Preset.
func NewNormalizer(presets Presets) *Normalizer {
	if presets == nil {
		presets = domain.Preset
	}
	return &Normalizer{presets: presets, defaultPreset: domain.PresetMission}
}

// Decode parses one mission document and normalizes it.
func (n *Normalizer) Decode(data []byte, format Format) (domain.MissionContent, error) {
	var raw rawMission
	var err error
	switch format {
	case JSON:
		err = json.Unmarshal(data, &raw)
	case YAML:
		err = yaml.Unmarshal(data, &raw)
	default:
		err = fmt.Errorf("unsupported format %q", format)
	}
	if err != nil {
		return domain.MissionContent{}, fmt.Errorf("decode mission: %w", err)
	}
	return n.normalize(raw)
}

func (n *Normalizer) normalize(raw rawMission) (domain.MissionContent, error) {
	if raw.ID == "" {
		return domain.MissionContent{}, fmt.Errorf("%w: mission without id", domain.ErrInvalidQuestion)
	}
	rules, err := n.rules(raw)
	if err != nil {
		return domain.MissionContent{}, fmt.Errorf("mission %q: %w", raw.ID, err)
	}

	pool := append([]domain.Question(nil), raw.QuestionPool...)
	for i, lq := range raw.QuestionBank {
		q, err := lq.toQuestion(fmt.Sprintf("%s-q%d", raw.ID, i+1))
		if err != nil {
			return domain.MissionContent{}, fmt.Errorf("mission %q: %w", raw.ID, err)
		}
		pool = append(pool, q)
	}
	for i, sc := range raw.Scenes {
		id := sc.Question.ID
		if id == "" && sc.ID != "" {
			id = sc.ID
		}
		sc.Question.ID = id
		q, err := sc.Question.toQuestion(fmt.Sprintf("%s-s%d", raw.ID, i+1))
		if err != nil {
			return domain.MissionContent{}, fmt.Errorf("mission %q: %w", raw.ID, err)
		}
		if q.NarrativeUnlock == "" {
			q.NarrativeUnlock = sc.Narrative
		}
		pool = append(pool, q)
	}
	if raw.FinalQuestion != nil {
		fq := *raw.FinalQuestion
		fq.Critical = true
		q, err := fq.toQuestion(raw.ID + "-final")
		if err != nil {
			return domain.MissionContent{}, fmt.Errorf("mission %q: %w", raw.ID, err)
		}
		pool = append(pool, q)
	}

	c := domain.MissionContent{
		ID:           raw.ID,
		Title:        raw.Title,
		Country:      raw.Country,
		Reward:       raw.Reward,
		Rules:        rules,
		QuestionPool: pool,
	}
	if err := c.Validate(); err != nil {
		return domain.MissionContent{}, err
	}
	return c, nil
}

func (n *Normalizer) rules(raw rawMission) (domain.MissionRules, error) {
	name := raw.Preset
	if name == "" && raw.Rules == nil {
		name = n.defaultPreset
	}
	var rules domain.MissionRules
	if name != "" {
		base, err := n.presets(name)
		if err != nil {
			return domain.MissionRules{}, err
		}
		rules = base
	}
	if o := raw.Rules; o != nil {
		setInt(&rules.QuestionCount, o.QuestionCount)
		setInt(&rules.MinCorrectToPass, o.MinCorrectToPass)
		setInt(&rules.StartingLives, o.StartingLives)
		setInt(&rules.SecondsPerQuestion, o.SecondsPerQuestion)
		setInt(&rules.BonusRedemptionCost, o.BonusRedemptionCost)
		if o.Distribution != nil {
			rules.Distribution = o.Distribution
		}
		if o.EarlyExitOnThresholdReached != nil {
			rules.EarlyExitOnThresholdReached = *o.EarlyExitOnThresholdReached
		}
		if o.ShuffleChoices != nil {
			rules.ShuffleChoices = *o.ShuffleChoices
		}
	}
	return rules, nil
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func (lq legacyQuestion) toQuestion(fallbackID string) (domain.Question, error) {
	id := lq.ID
	if id == "" {
		id = fallbackID
	}
	correct := -1
	switch {
	case lq.Answer != nil:
		correct = *lq.Answer
	case lq.Correct != "":
		for i, opt := range lq.Options {
			if opt == lq.Correct {
				correct = i
				break
			}
		}
	}
	if correct < 0 {
		return domain.Question{}, fmt.Errorf("%w: question %q has no resolvable answer", domain.ErrInvalidQuestion, id)
	}
	crit := domain.Normal
	if lq.Critical {
		crit = domain.Critical
	}
	return domain.Question{
		ID:              id,
		Category:        lq.Category,
		Criticality:     crit,
		Prompt:          lq.Question,
		Choices:         lq.Options,
		CorrectChoice:   correct,
		NarrativeUnlock: lq.Unlock,
		Explanation:     lq.Explanation,
	}, nil
}
