package summarize

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/suykerbuyk/focusbot/internal/llm"
	"github.com/suykerbuyk/focusbot/internal/prompts"
)

type stubClient struct {
	resp string
	err  error
	got  llm.Request
}

func (s *stubClient) Complete(_ context.Context, r llm.Request) (string, error) {
	s.got = r
	return s.resp, s.err
}

func newSummarizer(c llm.Client, max int) *Summarizer {
	return New(c, prompts.New("", zap.NewNop()), "enrich-model", max)
}

func TestSummarize_Video(t *testing.T) {
	stub := &stubClient{resp: "  - point one\n- point two \n"}
	got, err := newSummarizer(stub, 0).Summarize(context.Background(), Video, "Talk", "the transcript")
	require.NoError(t, err)

	assert.Equal(t, "- point one\n- point two", got)
	assert.Equal(t, "enrich-model", stub.got.Model)
	assert.True(t, strings.HasPrefix(stub.got.Prompt, "Video title: \"Talk\"\n\nProvide a detailed"))
	assert.True(t, strings.HasSuffix(stub.got.Prompt, "Transcript:\nthe transcript"))
}

func TestSummarize_ArticleNoTitle(t *testing.T) {
	stub := &stubClient{resp: "ok"}
	_, err := newSummarizer(stub, 0).Summarize(context.Background(), Article, "", "text")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stub.got.Prompt, "Summarize this article"))
	assert.True(t, strings.HasSuffix(stub.got.Prompt, "Article text:\ntext"))
}

func TestSummarize_TruncatesInput(t *testing.T) {
	stub := &stubClient{resp: "ok"}
	_, err := newSummarizer(stub, 10).Summarize(context.Background(), Article, "", strings.Repeat("a", 50))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(stub.got.Prompt, "\n"+strings.Repeat("a", 10)+"..."))
}

func TestSummarize_Failures(t *testing.T) {
	_, err := newSummarizer(&stubClient{err: errors.New("timeout")}, 0).Summarize(context.Background(), Video, "", "x")
	assert.ErrorIs(t, err, ErrSummarizationFailed)

	_, err = newSummarizer(&stubClient{resp: "   "}, 0).Summarize(context.Background(), Video, "", "x")
	assert.ErrorIs(t, err, ErrSummarizationFailed)

	_, err = newSummarizer(&stubClient{resp: "ok"}, 0).Summarize(context.Background(), Kind("podcast"), "", "x")
	assert.ErrorIs(t, err, ErrSummarizationFailed)
}
