package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"trade-assistant/internal/common/config"
	stderrors "trade-assistant/internal/common/errors"
	"trade-assistant/internal/common/llm"
	"trade-assistant/internal/common/logger"
)

// extractionPrompt steers the external model toward the snippet schema.
const extractionPrompt = "Bạn là trợ lý AI trích xuất điều kiện tìm kiếm từ câu hỏi của người dùng " +
	"về dữ liệu tờ khai hải quan. " +
	"Phân loại từng điều kiện vào đúng nhóm: " +
	"fuzzy_search cho tên hàng (ten_hang), nhà cung cấp (nha_cung_cap), xuất xứ (xuat_xu); " +
	"regex_search cho mã HS (hs_code); " +
	"exact_match cho ngày (ngay, định dạng YYYY-MM-DD), điều kiện giao hàng (dieu_kien_giao_hang), " +
	"tình trạng nhập/xuất (tinh_trang); " +
	"range_queries cho khoảng ngày (ngay với start_date và end_date). " +
	"Chỉ trích xuất những trường người dùng thực sự đề cập."

// Extractor is the function-call surface of the external model.
type Extractor interface {
	CompleteWithSchema(ctx context.Context, systemPrompt, userText string, fn llm.FunctionSchema) (json.RawMessage, error)
}

// Hit is one projected document with its relevance score.
type Hit struct {
	Score  float64
	Source map[string]interface{}
}

// Searcher runs the full free-text pipeline: extraction, query generation,
// execution, and score-threshold post-filtering.
type Searcher struct {
	es        *elasticsearch.Client
	index     string
	extractor Extractor
	generator *Generator
	cfg       config.PipelineConfig
	logger    logger.Logger
}

func NewSearcher(es *elasticsearch.Client, index string, extractor Extractor, generator *Generator, cfg config.PipelineConfig, log logger.Logger) *Searcher {
	return &Searcher{
		es:        es,
		index:     index,
		extractor: extractor,
		generator: generator,
		cfg:       cfg,
		logger:    log.WithFields(map[string]interface{}{"component": "pipeline"}),
	}
}

// Generate extracts a search snippet from the user query and builds the
// corresponding query body, returning both plus the referenced fields.
func (s *Searcher) Generate(ctx context.Context, userQuery string) (SearchSnippet, map[string]interface{}, []string, error) {
	raw, err := s.extractor.CompleteWithSchema(ctx, extractionPrompt, userQuery, llm.FunctionSchema{
		Name:        "generate_search_query",
		Description: "Trích xuất điều kiện tìm kiếm từ câu hỏi của người dùng",
		Parameters:  ExtractionSchema(),
	})
	if err != nil {
		return SearchSnippet{}, nil, nil, stderrors.NewExtractionFailedError(err)
	}

	snippet, err := ParseSnippet(raw)
	if err != nil {
		return SearchSnippet{}, nil, nil, err
	}

	body := s.generator.Build(snippet)
	return snippet, body, UsedFields(snippet), nil
}

// Search executes the query body, applies the relative score threshold
// against the top hit, and caps the result at the configured limit. The
// relative filter runs before the cap.
func (s *Searcher) Search(ctx context.Context, body map[string]interface{}) ([]Hit, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, stderrors.NewSearchQueryFailedError(err)
	}

	req := esapi.SearchRequest{
		Index: []string{s.index},
		Body:  bytes.NewReader(payload),
	}
	res, err := req.Do(ctx, s.es)
	if err != nil {
		return nil, stderrors.NewSearchQueryFailedError(err)
	}
	defer res.Body.Close()

	if res.IsError() {
		data, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return nil, stderrors.NewSearchQueryFailedError(
			fmt.Errorf("search returned %s: %s", res.Status(), string(data)))
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Score  float64                `json:"_score"`
				Source map[string]interface{} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, stderrors.NewSearchQueryFailedError(err)
	}

	hits := make([]Hit, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		hits = append(hits, Hit{Score: h.Score, Source: h.Source})
	}

	filtered := s.applyRelativeThreshold(hits)
	if len(filtered) > s.cfg.ResultLimit {
		filtered = filtered[:s.cfg.ResultLimit]
	}

	s.logger.Debug("search executed", map[string]interface{}{
		"raw_hits": len(hits),
		"returned": len(filtered),
	})
	return filtered, nil
}

// applyRelativeThreshold drops hits scoring below the configured fraction of
// the top score. Hits arrive score-descending, so the first hit is the top.
func (s *Searcher) applyRelativeThreshold(hits []Hit) []Hit {
	if len(hits) == 0 || s.cfg.ScoreThreshold <= 0 {
		return hits
	}
	floor := hits[0].Score * s.cfg.ScoreThreshold
	filtered := make([]Hit, 0, len(hits))
	for _, h := range hits {
		if h.Score >= floor {
			filtered = append(filtered, h)
		}
	}
	return filtered
}
