package common

import (
	"github.com/google/uuid"
)

// NewJobID generates a unique generation-job ID with the "job_" prefix
func NewJobID() string {
	return "job_" + uuid.New().String()
}

// NewArticleID generates a unique article ID with the "art_" prefix
func NewArticleID() string {
	return "art_" + uuid.New().String()
}

// NewQAID generates a unique Q&A item ID with the "qa_" prefix
func NewQAID() string {
	return "qa_" + uuid.New().String()
}

// NewGroupID generates a unique hreflang group ID with the "hlg_" prefix
func NewGroupID() string {
	return "hlg_" + uuid.New().String()
}
