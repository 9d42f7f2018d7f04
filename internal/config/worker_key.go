package config

type WorkerKeyStruct struct {
	PersistAnswersQueue string
}

var WorkerKey = &WorkerKeyStruct{
	PersistAnswersQueue: "persist_answers_queue",
}

type SubjectStruct struct{}

// SubmissionGraded returns the bus subject for graded-submission events
func (s *SubjectStruct) SubmissionGraded(prefix string) string {
	if prefix == "" {
		return "submission.graded"
	}
	return prefix + ".submission.graded"
}

var Subject = &SubjectStruct{}
