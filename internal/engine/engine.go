// Package engine orchestrates one chat turn: intent routing, entity
// resolution, structured query execution, response planning, and rendering.
package engine

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	stderrors "trade-assistant/internal/common/errors"
	"trade-assistant/internal/common/llm"
	"trade-assistant/internal/common/logger"
	"trade-assistant/internal/common/metrics"
	"trade-assistant/internal/engine/format"
	"trade-assistant/internal/engine/intent"
	"trade-assistant/internal/engine/pipeline"
	"trade-assistant/internal/engine/planner"
	"trade-assistant/internal/engine/resolver"
	"trade-assistant/internal/engine/session"
	"trade-assistant/internal/engine/synth"
	"trade-assistant/internal/models"
)

// systemErrorMessage is the uniform user-facing reply for any collaborator
// failure; internals never leak to the user.
const systemErrorMessage = "Hệ thống đang gặp sự cố, vui lòng thử lại sau."

// dimensionPrompt steers the external model toward the filter dimensions.
const dimensionPrompt = "Bạn là trợ lý AI trích xuất thông tin truy vấn từ câu hỏi của người dùng " +
	"về dữ liệu tờ khai hải quan. " +
	"Trích xuất: mã HS (code), tên nhà cung cấp (supplier), ngày cụ thể (date, định dạng YYYY-MM-DD), " +
	"khoảng ngày (start_date và end_date, định dạng YYYY-MM-DD), " +
	"tình trạng nhập/xuất (direction: 'nhập' hoặc 'xuất'). " +
	"Chỉ trích xuất những trường người dùng thực sự đề cập."

// dimensionSchema is the function-call schema for filter extraction.
var dimensionSchema = llm.FunctionSchema{
	Name:        "extract_query_dimensions",
	Description: "Trích xuất các chiều truy vấn từ câu hỏi của người dùng",
	Parameters: map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"code":       map[string]interface{}{"type": "string"},
			"supplier":   map[string]interface{}{"type": "string"},
			"date":       map[string]interface{}{"type": "string"},
			"start_date": map[string]interface{}{"type": "string"},
			"end_date":   map[string]interface{}{"type": "string"},
			"direction":  map[string]interface{}{"type": "string"},
		},
		"additionalProperties": false,
	},
}

// Extractor is the function-call surface used for dimension extraction.
type Extractor interface {
	CompleteWithSchema(ctx context.Context, systemPrompt, userText string, fn llm.FunctionSchema) (json.RawMessage, error)
}

// SemanticResponder answers turns routed away from the structured store.
// Vector retrieval, reranking, and generation live behind this port.
type SemanticResponder interface {
	Respond(ctx context.Context, userText string) (string, error)
}

// Engine wires the per-turn components. It is stateless between turns except
// for the session disambiguation cache.
type Engine struct {
	classifier  *intent.Classifier
	resolver    *resolver.Resolver
	synthesizer *synth.Synthesizer
	planner     *planner.Planner
	formatter   *format.Formatter
	extractor   Extractor
	semantic    SemanticResponder
	sessions    *session.Cache
	logger      logger.Logger
}

func New(
	classifier *intent.Classifier,
	res *resolver.Resolver,
	synthesizer *synth.Synthesizer,
	pln *planner.Planner,
	formatter *format.Formatter,
	extractor Extractor,
	semantic SemanticResponder,
	sessions *session.Cache,
	log logger.Logger,
) *Engine {
	return &Engine{
		classifier:  classifier,
		resolver:    res,
		synthesizer: synthesizer,
		planner:     pln,
		formatter:   formatter,
		extractor:   extractor,
		semantic:    semantic,
		sessions:    sessions,
		logger:      log.WithFields(map[string]interface{}{"component": "engine"}),
	}
}

// Turn identifies one user utterance plus its caller context.
type Turn struct {
	SessionID string
	Tier      string
	Text      string
}

// AnswerSemanticOrStructured routes the turn and answers it on the chosen
// path. Collaborator failures collapse to the uniform system-error reply.
func (e *Engine) AnswerSemanticOrStructured(ctx context.Context, turn Turn) (string, error) {
	turnID := uuid.New().String()
	start := time.Now()
	log := e.logger.WithFields(map[string]interface{}{
		"turn_id": turnID,
		"session": turn.SessionID,
	})

	route, err := e.classifier.Classify(ctx, turn.Text)
	if err != nil {
		log.Error("intent classification failed", map[string]interface{}{"error": err.Error()})
		metrics.TurnsFailed.WithLabelValues("unknown", string(stderrors.CodeOf(err))).Inc()
		return systemErrorMessage, err
	}

	var answer string
	switch route {
	case intent.RouteSemantic:
		answer, err = e.semantic.Respond(ctx, turn.Text)
		if err != nil {
			serr := stderrors.NewUpstreamUnavailableError("semantic responder", err)
			log.Error("semantic path failed", map[string]interface{}{"error": serr.Error()})
			metrics.TurnsFailed.WithLabelValues(string(route), string(serr.Code)).Inc()
			return systemErrorMessage, serr
		}
	case intent.RouteStructured:
		answer, err = e.AnswerStructuredQuery(ctx, turn)
		if err != nil {
			metrics.TurnsFailed.WithLabelValues(string(route), string(stderrors.CodeOf(err))).Inc()
			return systemErrorMessage, err
		}
	}

	metrics.TurnsProcessed.WithLabelValues(string(route)).Inc()
	metrics.TurnDuration.WithLabelValues(string(route)).Observe(time.Since(start).Seconds())

	log.Info("turn answered", map[string]interface{}{
		"route":       string(route),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return answer, nil
}

// AnswerStructuredQuery runs the structured path end to end: dimension
// extraction, entity resolution, query execution, planning, and rendering.
func (e *Engine) AnswerStructuredQuery(ctx context.Context, turn Turn) (string, error) {
	dims, err := e.extractDimensions(ctx, turn.Text)
	if err != nil {
		return "", err
	}
	dims = e.applyPendingChoice(ctx, turn, dims)

	qctx := format.QueryContext{Code: dims.Code, Supplier: dims.Supplier, Tier: turn.Tier}

	// Resolve each named dimension; an empty or ambiguous resolution is
	// terminal for the turn.
	if dims.Code != "" {
		set, err := e.resolver.ResolveCode(ctx, dims.Code)
		if err != nil {
			return "", err
		}
		if plan, terminal := e.planner.PlanForCandidates("code", set); terminal {
			e.rememberDisambiguation(ctx, turn.SessionID, plan)
			return e.formatter.RenderPlan(plan, qctx), nil
		}
		dims.Code = set.One()
	}
	if dims.Supplier != "" {
		set, err := e.resolver.ResolveSupplier(ctx, dims.Supplier)
		if err != nil {
			return "", err
		}
		if plan, terminal := e.planner.PlanForCandidates("supplier", set); terminal {
			e.rememberDisambiguation(ctx, turn.SessionID, plan)
			return e.formatter.RenderPlan(plan, qctx), nil
		}
		dims.Supplier = set.One()
	}

	filter, err := synth.ParseFilter(dims)
	if err != nil {
		return "", stderrors.NewQueryExecutionFailedError(err)
	}

	total, err := e.synthesizer.Cardinality(ctx, filter)
	if err != nil {
		return "", err
	}

	var records []models.TradeRecord
	if total > 0 {
		records, err = e.synthesizer.Execute(ctx, filter)
		if err != nil {
			return "", err
		}
	}

	plan := e.planner.PlanForRecords(records)
	if plan.Kind != planner.KindDisambiguation && turn.SessionID != "" {
		// The turn completed; any pending disambiguation is stale.
		if err := e.sessions.Clear(ctx, turn.SessionID); err != nil {
			e.logger.Warn("session clear failed", map[string]interface{}{"error": err.Error()})
		}
	}

	qctx.Code = filter.Code
	qctx.Supplier = filter.Supplier
	return e.formatter.RenderPlan(plan, qctx), nil
}

// applyPendingChoice consults the candidate list a previous turn asked the
// user to choose from. When the new utterance names exactly one stored
// candidate, that candidate replaces the extracted value for the pending
// dimension and the session entry is dropped. Anything else leaves the
// extracted dimensions untouched; the entry expires on its own.
func (e *Engine) applyPendingChoice(ctx context.Context, turn Turn, dims synth.Dimensions) synth.Dimensions {
	if turn.SessionID == "" {
		return dims
	}
	pending, err := e.sessions.Get(ctx, turn.SessionID)
	if err != nil {
		e.logger.Warn("session read failed", map[string]interface{}{
			"session": turn.SessionID,
			"error":   err.Error(),
		})
		return dims
	}
	if pending == nil {
		return dims
	}

	text := strings.ToUpper(turn.Text)
	var picked []string
	for _, c := range pending.Candidates {
		if strings.Contains(text, strings.ToUpper(c)) {
			picked = append(picked, c)
		}
	}
	if len(picked) != 1 {
		return dims
	}

	switch pending.Dimension {
	case "code":
		dims.Code = picked[0]
	case "supplier":
		dims.Supplier = picked[0]
	default:
		return dims
	}

	if err := e.sessions.Clear(ctx, turn.SessionID); err != nil {
		e.logger.Warn("session clear failed", map[string]interface{}{
			"session": turn.SessionID,
			"error":   err.Error(),
		})
	}
	e.logger.Debug("pending choice applied", map[string]interface{}{
		"session":   turn.SessionID,
		"dimension": pending.Dimension,
	})
	return dims
}

func (e *Engine) extractDimensions(ctx context.Context, userText string) (synth.Dimensions, error) {
	raw, err := e.extractor.CompleteWithSchema(ctx, dimensionPrompt, userText, dimensionSchema)
	if err != nil {
		return synth.Dimensions{}, stderrors.NewExtractionFailedError(err)
	}

	var dims synth.Dimensions
	if err := json.Unmarshal(raw, &dims); err != nil {
		return synth.Dimensions{}, stderrors.NewInvalidExtractorOutputError(err.Error())
	}
	return dims, nil
}

// rememberDisambiguation stores the candidate list shown to the user.
// Best effort: a session-store failure must not fail a turn that already has
// a valid reply.
func (e *Engine) rememberDisambiguation(ctx context.Context, sessionID string, plan planner.Plan) {
	if plan.Kind != planner.KindDisambiguation || sessionID == "" {
		return
	}
	state := session.State{
		Dimension:  plan.Dimension,
		Candidates: plan.Candidates,
		AskedAt:    time.Now().UTC(),
	}
	if err := e.sessions.Put(ctx, sessionID, state); err != nil {
		e.logger.Warn("session write failed", map[string]interface{}{
			"session": sessionID,
			"error":   err.Error(),
		})
	}
}

// DocumentSearch is the alternate, schema-less backend path: free text in,
// projected document hits plus the referenced fields out.
type DocumentSearch struct {
	searcher *pipeline.Searcher
}

func NewDocumentSearch(searcher *pipeline.Searcher) *DocumentSearch {
	return &DocumentSearch{searcher: searcher}
}

// Answer generates and executes a document-store search for the query.
func (d *DocumentSearch) Answer(ctx context.Context, userQuery string) ([]pipeline.Hit, []string, error) {
	_, body, usedFields, err := d.searcher.Generate(ctx, userQuery)
	if err != nil {
		return nil, nil, err
	}
	hits, err := d.searcher.Search(ctx, body)
	if err != nil {
		return nil, nil, err
	}
	return hits, usedFields, nil
}
