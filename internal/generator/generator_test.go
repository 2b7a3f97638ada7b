package generator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/54b3r/pdfqa-go/internal/rag"
)

// fakeChat is a scripted model.BaseChatModel that records its input.
type fakeChat struct {
	reply *schema.Message
	err   error
	got   []*schema.Message
}

func (f *fakeChat) Generate(_ context.Context, in []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.got = in
	return f.reply, f.err
}

func (f *fakeChat) Stream(_ context.Context, _ []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not implemented")
}

func TestNew_NilModel(t *testing.T) {
	t.Parallel()

	_, err := New(nil)
	require.ErrorIs(t, err, rag.ErrInvalidConfiguration)
}

func TestGenerate_PassagesInOrder(t *testing.T) {
	t.Parallel()

	chat := &fakeChat{reply: schema.AssistantMessage("  Paris.  ", nil)}
	g, err := New(chat)
	require.NoError(t, err)

	answer, err := g.Generate(context.Background(), "What is the capital?", []string{"first passage", "second passage"})
	require.NoError(t, err)
	assert.Equal(t, "Paris.", answer)

	require.Len(t, chat.got, 2)
	assert.Equal(t, schema.System, chat.got[0].Role)
	user := chat.got[1].Content
	first := strings.Index(user, "[1] first passage")
	second := strings.Index(user, "[2] second passage")
	question := strings.Index(user, "Question: What is the capital?")
	assert.True(t, first >= 0 && first < second && second < question, "unexpected prompt layout: %q", user)
}

func TestGenerate_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		chat *fakeChat
	}{
		{name: "model error", chat: &fakeChat{err: errors.New("connection refused")}},
		{name: "nil message", chat: &fakeChat{}},
		{name: "empty answer", chat: &fakeChat{reply: schema.AssistantMessage(" \n ", nil)}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			g, err := New(tc.chat)
			require.NoError(t, err)

			_, err = g.Generate(context.Background(), "q", []string{"p"})
			require.ErrorIs(t, err, rag.ErrGenerationUnavailable)
			assert.True(t, rag.IsTransient(err))
		})
	}
}

func TestGenerate_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g, err := New(&fakeChat{err: context.Canceled})
	require.NoError(t, err)

	_, err = g.Generate(ctx, "q", nil)
	require.ErrorIs(t, err, rag.ErrGenerationUnavailable)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPromptTokens(t *testing.T) {
	t.Parallel()

	short := PromptTokens("why?")
	long := PromptTokens(strings.Repeat("why ", 100))
	assert.Positive(t, short)
	assert.Greater(t, long, short)
}

func TestBuildMessages_NoPassages(t *testing.T) {
	t.Parallel()

	msgs := BuildMessages("hello", nil)
	require.Len(t, msgs, 2)
	assert.NotContains(t, msgs[1].Content, "Context passages")
	assert.Equal(t, "Question: hello", msgs[1].Content)
}
