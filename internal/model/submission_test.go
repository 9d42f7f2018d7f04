package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to SubmissionStatus
		want     bool
	}{
		{SubmissionStatusStarted, SubmissionStatusGraded, true},
		{SubmissionStatusStarted, SubmissionStatusSubmitted, true},
		{SubmissionStatusSubmitted, SubmissionStatusGraded, true},
		{SubmissionStatusSubmitted, SubmissionStatusStarted, false},
		{SubmissionStatusGraded, SubmissionStatusGraded, false},
		{SubmissionStatusGraded, SubmissionStatusStarted, false},
		{SubmissionStatusStarted, SubmissionStatusStarted, false},
	}

	for _, tc := range tests {
		t.Run(string(tc.from)+"->"+string(tc.to), func(t *testing.T) {
			assert.Equal(t, tc.want, CanTransition(tc.from, tc.to))
		})
	}
}

func TestCompleted(t *testing.T) {
	assert.False(t, SubmissionStatusStarted.Completed())
	assert.True(t, SubmissionStatusSubmitted.Completed())
	assert.True(t, SubmissionStatusGraded.Completed())
}
