package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnhancedErrorCategory(t *testing.T) {
	err := Newf("upload rejected: %s", "bad image").
		Component("classifier").
		Category(CategoryClassifier).
		Context("submission_id", "abc").
		Build()

	assert.Equal(t, "upload rejected: bad image", err.Error())
	assert.Equal(t, "classifier", err.GetComponent())
	assert.Equal(t, string(CategoryClassifier), err.GetCategory())
	assert.Equal(t, "abc", err.GetContext()["submission_id"])
	assert.True(t, IsCategory(err, CategoryClassifier))
	assert.False(t, IsCategory(err, CategoryNetwork))
}

func TestSentinelDetection(t *testing.T) {
	tests := []struct {
		name     string
		sentinel error
		category ErrorCategory
	}{
		{"invalid_input", ErrInvalidInput, CategoryValidation},
		{"network", ErrNetwork, CategoryNetwork},
		{"service", ErrService, CategoryClassifier},
		{"malformed_record", ErrMalformedRecord, CategoryFeedParsing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			built := New(tt.sentinel).Build()
			assert.Equal(t, tt.category, built.Category)
			assert.True(t, Is(built, tt.sentinel))
		})
	}
}

func TestWrappedSentinelSurvivesBuilder(t *testing.T) {
	inner := Newf("feed record 14: %w", ErrMalformedRecord).Build()
	require.True(t, Is(inner, ErrMalformedRecord))

	var ee *EnhancedError
	require.True(t, As(inner, &ee))
	assert.Equal(t, CategoryFeedParsing, ee.Category)
}
