package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// ExamPaperKey returns the cache key for a config's sanitized base paper
// (questions in pool order, no answer key, pre-snapshot).
func (r *CacheKeyStruct) ExamPaperKey(examConfigID string, version int) string {
	return fmt.Sprintf("exam_config:%s:v%d:paper", examConfigID, version)
}

// AttemptAnswersKey returns the cache key for an attempt's answer mirror.
func (r *CacheKeyStruct) AttemptAnswersKey(attemptID string) string {
	return fmt.Sprintf("attempt:%s:answers", attemptID)
}

// AttemptDeadlineKey returns the cache key for an attempt's deadline
// (RFC 3339 timestamp).
func (r *CacheKeyStruct) AttemptDeadlineKey(attemptID string) string {
	return fmt.Sprintf("attempt:%s:deadline", attemptID)
}

// StudentActiveAttemptKey returns the cache key holding the attempt id of a
// student's active attempt for one exam config.
func (r *CacheKeyStruct) StudentActiveAttemptKey(studentID, examConfigID string) string {
	return fmt.Sprintf("student:%s:exam_config:%s:active_attempt", studentID, examConfigID)
}

var CacheKey = NewCacheKeyStruct()
