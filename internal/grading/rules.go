package grading

import (
	"github.com/shopspring/decimal"
	"github.com/stemsi/exstem-grading/internal/model"
)

// Sub-score names as they appear in a verdict.
const (
	SubScoreKnowledge        = "language_knowledge"
	SubScoreReading          = "reading"
	SubScoreListening        = "listening"
	SubScoreKnowledgeReading = "language_reading_combined"
)

// Tier is the number of sub-scores a level checks.
type Tier int

const (
	// ThreeTier levels check knowledge, reading and listening separately.
	ThreeTier Tier = 3
	// TwoTier levels check a combined knowledge+reading score and listening.
	TwoTier Tier = 2
)

// Minimum is the floor one named sub-score must reach.
type Minimum struct {
	Name  string
	Score decimal.Decimal
}

// Rule is the pass/fail definition of one level.
type Rule struct {
	Level    model.Level
	Tier     Tier
	PassMark decimal.Decimal
	Minimums []Minimum
}

func threeTier(level model.Level, passMark int64) Rule {
	return Rule{
		Level:    level,
		Tier:     ThreeTier,
		PassMark: decimal.NewFromInt(passMark),
		Minimums: []Minimum{
			{Name: SubScoreKnowledge, Score: decimal.NewFromInt(19)},
			{Name: SubScoreReading, Score: decimal.NewFromInt(19)},
			{Name: SubScoreListening, Score: decimal.NewFromInt(19)},
		},
	}
}

func twoTier(level model.Level, passMark int64) Rule {
	return Rule{
		Level:    level,
		Tier:     TwoTier,
		PassMark: decimal.NewFromInt(passMark),
		Minimums: []Minimum{
			{Name: SubScoreKnowledgeReading, Score: decimal.NewFromInt(38)},
			{Name: SubScoreListening, Score: decimal.NewFromInt(19)},
		},
	}
}

// DefaultRules returns the five JLPT level definitions.
func DefaultRules() []Rule {
	return []Rule{
		threeTier(model.LevelN1, 100),
		threeTier(model.LevelN2, 90),
		threeTier(model.LevelN3, 95),
		twoTier(model.LevelN4, 90),
		twoTier(model.LevelN5, 80),
	}
}

// Blend ratios for sections that measure more than one skill. The two
// blended section types keep distinct ratios.
var (
	grammarReadingKnowledge = decimal.RequireFromString("0.5")
	grammarReadingReading   = decimal.RequireFromString("0.5")
	fullWrittenKnowledge    = decimal.RequireFromString("0.67")
	fullWrittenReading      = decimal.RequireFromString("0.33")
)

// subScores distributes section scores over the named sub-scores of a tier.
func subScores(tier Tier, sections []model.SectionResult) map[string]decimal.Decimal {
	knowledge := decimal.Zero
	reading := decimal.Zero
	listening := decimal.Zero
	combined := decimal.Zero

	for _, s := range sections {
		score := s.Score.Decimal
		if s.Type == model.SectionListening {
			listening = listening.Add(score)
			continue
		}
		combined = combined.Add(score)

		switch s.Type {
		case model.SectionVocab, model.SectionGrammar:
			knowledge = knowledge.Add(score)
		case model.SectionReading:
			reading = reading.Add(score)
		case model.SectionGrammarReading:
			knowledge = knowledge.Add(score.Mul(grammarReadingKnowledge))
			reading = reading.Add(score.Mul(grammarReadingReading))
		case model.SectionFullWritten:
			knowledge = knowledge.Add(score.Mul(fullWrittenKnowledge))
			reading = reading.Add(score.Mul(fullWrittenReading))
		}
	}

	if tier == TwoTier {
		return map[string]decimal.Decimal{
			SubScoreKnowledgeReading: combined,
			SubScoreListening:        listening,
		}
	}
	return map[string]decimal.Decimal{
		SubScoreKnowledge: knowledge,
		SubScoreReading:   reading,
		SubScoreListening: listening,
	}
}

// verdict applies the sectional floor: the total must clear the pass mark and
// every sub-score must clear its own minimum.
func (r Rule) verdict(total decimal.Decimal, sections []model.SectionResult) *model.Verdict {
	scores := subScores(r.Tier, sections)

	v := &model.Verdict{
		Level:             r.Level,
		TotalScore:        model.NewScore(total),
		PassMark:          model.NewScore(r.PassMark),
		TotalPassed:       total.GreaterThanOrEqual(r.PassMark),
		AllSectionsPassed: true,
		SubScores:         make([]model.SubScore, 0, len(r.Minimums)),
	}

	for _, m := range r.Minimums {
		score := scores[m.Name]
		passed := score.GreaterThanOrEqual(m.Score)
		if !passed {
			v.AllSectionsPassed = false
		}
		v.SubScores = append(v.SubScores, model.SubScore{
			Name:        m.Name,
			Score:       model.NewScore(score),
			MinRequired: model.NewScore(m.Score),
			Passed:      passed,
		})
	}

	v.Passed = v.TotalPassed && v.AllSectionsPassed
	return v
}
