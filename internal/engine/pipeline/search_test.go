package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	stderrors "trade-assistant/internal/common/errors"
	"trade-assistant/internal/common/llm"
	"trade-assistant/internal/common/logger"
)

type fakeExtractor struct {
	raw json.RawMessage
	err error
	fn  llm.FunctionSchema
}

func (f *fakeExtractor) CompleteWithSchema(_ context.Context, _, _ string, fn llm.FunctionSchema) (json.RawMessage, error) {
	f.fn = fn
	return f.raw, f.err
}

func newSearchServer(t *testing.T, handler http.HandlerFunc) *elasticsearch.Client {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return client
}

func newTestSearcher(t *testing.T, es *elasticsearch.Client, extractor Extractor) *Searcher {
	cfg := testPipelineConfig()
	return NewSearcher(es, "trade_declarations", extractor, NewGenerator(cfg), cfg,
		logger.NewZapAdapter(zaptest.NewLogger(t)))
}

func searchResponse(scores ...float64) string {
	hits := make([]string, 0, len(scores))
	for i, s := range scores {
		hits = append(hits, fmt.Sprintf(
			`{"_score": %g, "_source": {"ten_hang": "item %d"}}`, s, i))
	}
	out := `{"hits": {"hits": [`
	for i, h := range hits {
		if i > 0 {
			out += ","
		}
		out += h
	}
	return out + `]}}`
}

func TestGenerate(t *testing.T) {
	extractor := &fakeExtractor{raw: json.RawMessage(`{"fuzzy_search": {"ten_hang": "chim bồ câu"}}`)}
	s := newTestSearcher(t, newSearchServer(t, func(w http.ResponseWriter, _ *http.Request) {}), extractor)

	snippet, body, usedFields, err := s.Generate(context.Background(), "tìm chim bồ câu")
	require.NoError(t, err)

	assert.Equal(t, "chim bồ câu", snippet.FuzzySearch[FieldProductName])
	assert.NotNil(t, body["query"])
	assert.Equal(t, []string{FieldProductName}, usedFields)
	assert.Equal(t, "generate_search_query", extractor.fn.Name)
}

func TestGenerateExtractorFailure(t *testing.T) {
	extractor := &fakeExtractor{err: assert.AnError}
	s := newTestSearcher(t, newSearchServer(t, func(w http.ResponseWriter, _ *http.Request) {}), extractor)

	_, _, _, err := s.Generate(context.Background(), "tìm chim bồ câu")
	require.Error(t, err)
	assert.Equal(t, stderrors.ErrCodeExtractionFailed, stderrors.CodeOf(err))
}

func TestGenerateInvalidExtractorOutput(t *testing.T) {
	extractor := &fakeExtractor{raw: json.RawMessage(`{"fuzzy_search": {"bogus": "x"}}`)}
	s := newTestSearcher(t, newSearchServer(t, func(w http.ResponseWriter, _ *http.Request) {}), extractor)

	_, _, _, err := s.Generate(context.Background(), "tìm gì đó")
	require.Error(t, err)
	assert.Equal(t, stderrors.ErrCodeInvalidExtractorOutput, stderrors.CodeOf(err))
}

func TestSearchAppliesRelativeThresholdBeforeCap(t *testing.T) {
	// Top score 10; threshold 0.5 drops everything below 5.
	es := newSearchServer(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, searchResponse(10, 8, 6, 4.9, 2))
	})
	s := newTestSearcher(t, es, &fakeExtractor{})

	hits, err := s.Search(context.Background(), map[string]interface{}{})
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, 10.0, hits[0].Score)
	assert.Equal(t, 6.0, hits[2].Score)
}

func TestSearchCapsResults(t *testing.T) {
	scores := make([]float64, 30)
	for i := range scores {
		scores[i] = 10
	}
	es := newSearchServer(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, searchResponse(scores...))
	})
	s := newTestSearcher(t, es, &fakeExtractor{})

	hits, err := s.Search(context.Background(), map[string]interface{}{})
	require.NoError(t, err)
	assert.Len(t, hits, 20)
}

func TestSearchEmptyResult(t *testing.T) {
	es := newSearchServer(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, searchResponse())
	})
	s := newTestSearcher(t, es, &fakeExtractor{})

	hits, err := s.Search(context.Background(), map[string]interface{}{})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearchServerError(t *testing.T) {
	es := newSearchServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error": "boom"}`)
	})
	s := newTestSearcher(t, es, &fakeExtractor{})

	_, err := s.Search(context.Background(), map[string]interface{}{})
	require.Error(t, err)
	assert.Equal(t, stderrors.ErrCodeSearchQueryFailed, stderrors.CodeOf(err))
}
