package service

import "github.com/stemsi/exstem-grading/internal/model"

// ProjectPaper strips every answer-key field from a resource. It is the only
// path by which resource structure reaches a student.
func ProjectPaper(res model.Resource) *model.Paper {
	if res.Quiz != nil {
		return &model.Paper{Kind: model.ResourceQuiz, Quiz: projectQuiz(res.Quiz)}
	}
	if res.Test != nil {
		return &model.Paper{Kind: model.ResourceTest, Test: projectTest(res.Test)}
	}
	return nil
}

func projectTest(t *model.Test) *model.TestPaper {
	p := &model.TestPaper{
		ID:              t.ID,
		Title:           t.Title,
		Level:           t.Level,
		DurationMinutes: int(t.Duration().Minutes()),
		Sections:        make([]model.SectionPaper, 0, len(t.Sections)),
	}
	for _, s := range t.Sections {
		sp := model.SectionPaper{
			ID:              s.ID,
			Name:            s.Name,
			Type:            s.Type,
			DurationMinutes: s.DurationMinutes,
			Groups:          make([]model.GroupPaper, 0, len(s.Groups)),
		}
		for _, g := range s.Groups {
			gp := model.GroupPaper{
				ID:          g.ID,
				Number:      g.Number,
				Title:       g.Title,
				Instruction: g.Instruction,
				ReadingText: g.ReadingText,
				AudioURL:    g.AudioURL,
				Questions:   make([]model.QuestionPaper, 0, len(g.Questions)),
			}
			for _, q := range g.Questions {
				gp.Questions = append(gp.Questions, model.QuestionPaper{
					ID:      q.ID,
					Number:  q.Number,
					Text:    q.Text,
					Weight:  q.Weight,
					Options: projectOptions(q.Options),
				})
			}
			sp.Groups = append(sp.Groups, gp)
		}
		p.Sections = append(p.Sections, sp)
	}
	return p
}

func projectQuiz(q *model.Quiz) *model.QuizPaper {
	p := &model.QuizPaper{
		ID:              q.ID,
		Title:           q.Title,
		Description:     q.Description,
		DurationSeconds: int(q.Duration().Seconds()),
		Questions:       make([]model.QuizQuestionPaper, 0, len(q.Questions)),
	}
	for _, qq := range q.Questions {
		p.Questions = append(p.Questions, model.QuizQuestionPaper{
			ID:              qq.ID,
			Text:            qq.Text,
			Type:            qq.Type,
			DurationSeconds: qq.DurationSeconds,
			Points:          qq.Points,
			Options:         projectOptions(qq.Options),
		})
	}
	return p
}

func projectOptions(opts []model.Option) []model.PaperOption {
	out := make([]model.PaperOption, len(opts))
	for i, o := range opts {
		out[i] = model.PaperOption{Index: i, Text: o.Text}
	}
	return out
}
