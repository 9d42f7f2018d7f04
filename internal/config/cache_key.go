package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// PaperKey returns the cache key for a resource's sanitized paper
func (r *CacheKeyStruct) PaperKey(kind, resourceID string) string {
	return fmt.Sprintf("paper:%s:%s", kind, resourceID)
}

// SubmissionAnswersKey returns the cache key for a submission's autosaved answers
func (r *CacheKeyStruct) SubmissionAnswersKey(submissionID string) string {
	return fmt.Sprintf("submission:%s:answers", submissionID)
}

var CacheKey = NewCacheKeyStruct()
