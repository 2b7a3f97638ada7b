package rag

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"not ready", ErrNotReady, "not_ready"},
		{"wrapped validation", fmt.Errorf("session: %w", ErrValidation), "validation"},
		{"errorf", Errorf(ErrDimensionMismatch, "want %d, got %d", 3, 2), "dimension_mismatch"},
		{"wrap cause", Wrap(ErrEmbeddingUnavailable, "ollama", errors.New("connection refused")), "embedding_unavailable"},
		{"plain", errors.New("boom"), "internal"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, Kind(tc.err))
		})
	}
}

func TestWrap_KeepsCauseAndCategory(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused")
	err := Wrap(ErrGenerationUnavailable, "ollama generate", cause)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGenerationUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Nil(t, Wrap(ErrGenerationUnavailable, "noop", nil))
}

func TestIsClientError(t *testing.T) {
	t.Parallel()

	assert.True(t, IsClientError(ErrNotReady))
	assert.True(t, IsClientError(Errorf(ErrInvalidConfiguration, "overlap")))
	assert.False(t, IsClientError(Errorf(ErrExtraction, "corrupt")))
	assert.True(t, IsTransient(Errorf(ErrEmbeddingUnavailable, "timeout")))
	assert.False(t, IsTransient(Errorf(ErrDimensionMismatch, "384 vs 256")))
}

func TestPageRef_JSON(t *testing.T) {
	t.Parallel()

	b, err := json.Marshal([]Citation{{Page: 3, Content: "a"}, {Content: "b"}})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"page":3,"content":"a"},{"page":"Unknown","content":"b"}]`, string(b))

	var got []Citation
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, PageRef(3), got[0].Page)
	assert.Equal(t, PageRef(0), got[1].Page)
}
