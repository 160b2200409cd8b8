package intent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	stderrors "trade-assistant/internal/common/errors"
	"trade-assistant/internal/common/logger"
)

type fakeCompleter struct {
	reply string
	err   error
}

func (f *fakeCompleter) Complete(context.Context, string, string) (string, error) {
	return f.reply, f.err
}

func newTestClassifier(t *testing.T, c Completer) *Classifier {
	return New(c, logger.NewZapAdapter(zaptest.NewLogger(t)))
}

func TestClassifyYes(t *testing.T) {
	c := newTestClassifier(t, &fakeCompleter{reply: "YES"})

	route, err := c.Classify(context.Background(), "Mã HS 8471 gồm những sản phẩm nào?")
	require.NoError(t, err)
	assert.Equal(t, RouteStructured, route)
}

func TestClassifyNo(t *testing.T) {
	c := newTestClassifier(t, &fakeCompleter{reply: "NO"})

	route, err := c.Classify(context.Background(), "HS code là gì?")
	require.NoError(t, err)
	assert.Equal(t, RouteSemantic, route)
}

func TestClassifyNormalizesWhitespaceAndCase(t *testing.T) {
	c := newTestClassifier(t, &fakeCompleter{reply: "  yes \n"})

	route, err := c.Classify(context.Background(), "tra cứu 8471")
	require.NoError(t, err)
	assert.Equal(t, RouteStructured, route)
}

func TestClassifyFailsClosedOnGarbage(t *testing.T) {
	c := newTestClassifier(t, &fakeCompleter{reply: "MAYBE, depends"})

	_, err := c.Classify(context.Background(), "câu hỏi")
	require.Error(t, err)
	assert.Equal(t, stderrors.ErrCodeInvalidDecisionOutput, stderrors.CodeOf(err))
	assert.False(t, stderrors.IsRetryable(err))
}

func TestClassifyUpstreamError(t *testing.T) {
	c := newTestClassifier(t, &fakeCompleter{err: assert.AnError})

	_, err := c.Classify(context.Background(), "câu hỏi")
	require.Error(t, err)
	assert.Equal(t, stderrors.ErrCodeUpstreamUnavailable, stderrors.CodeOf(err))
	assert.True(t, stderrors.IsRetryable(err))
}
