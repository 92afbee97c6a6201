package engine

import (
	"fmt"
	"math/rand"

	"mission-quiz-service/internal/domain"
)

// Draw builds the working set for one attempt.
// Each category is shuffled independently, the requested count is taken from each, and the
// concatenation is shuffled again. Without a distribution the whole pool is one category.
// Nothing is returned unless every category can be satisfied.
func Draw(pool []domain.Question, rules domain.MissionRules, rnd *rand.Rand) ([]domain.Question, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}

	draws := rules.Distribution
	buckets := make(map[string][]domain.Question)
	if len(draws) == 0 {
		draws = []domain.CategoryDraw{{Category: "", Count: rules.QuestionCount}}
		buckets[""] = append([]domain.Question(nil), pool...)
	} else {
		for _, q := range pool {
			key := q.CategoryKey()
			buckets[key] = append(buckets[key], q)
		}
	}

	for _, d := range draws {
		if have := len(buckets[d.Category]); have < d.Count {
			return nil, fmt.Errorf("%w: category %q has %d, need %d", domain.ErrInsufficientQuestions, label(d.Category), have, d.Count)
		}
	}

	set := make([]domain.Question, 0, rules.QuestionCount)
	for _, d := range draws {
		bucket := buckets[d.Category]
		shuffle(rnd, bucket)
		set = append(set, bucket[:d.Count]...)
	}
	shuffle(rnd, set)

	if rules.ShuffleChoices {
		for i := range set {
			set[i] = ShuffleChoices(set[i], rnd)
		}
	}
	return set, nil
}

// ShuffleChoices permutes the choices and remaps the correct index by identity.
func ShuffleChoices(q domain.Question, rnd *rand.Rand) domain.Question {
	order := rnd.Perm(len(q.Choices))
	choices := make([]string, len(q.Choices))
	correct := q.CorrectChoice
	for to, from := range order {
		choices[to] = q.Choices[from]
		if from == q.CorrectChoice {
			correct = to
		}
	}
	q.Choices = choices
	q.CorrectChoice = correct
	return q
}

func shuffle(rnd *rand.Rand, qs []domain.Question) {
	rnd.Shuffle(len(qs), func(i, j int) { qs[i], qs[j] = qs[j], qs[i] })
}

func label(category string) string {
	if category == "" {
		return "any"
	}
	return category
}
