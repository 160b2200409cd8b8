package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"trade-assistant/internal/common/config"
	"trade-assistant/internal/common/database"
	"trade-assistant/internal/common/llm"
	"trade-assistant/internal/common/logger"
	"trade-assistant/internal/common/observability"
	"trade-assistant/internal/engine"
	"trade-assistant/internal/engine/format"
	"trade-assistant/internal/engine/intent"
	"trade-assistant/internal/engine/pipeline"
	"trade-assistant/internal/engine/planner"
	"trade-assistant/internal/engine/resolver"
	"trade-assistant/internal/engine/session"
	"trade-assistant/internal/engine/synth"
	"trade-assistant/internal/models"
	"trade-assistant/internal/store/postgres"
)

// semanticResponder answers general-knowledge turns through the external
// generation model.
type semanticResponder struct {
	client *llm.Client
}

const semanticPrompt = "Bạn là trợ lý AI am hiểu về xuất nhập khẩu và hải quan Việt Nam. " +
	"Trả lời câu hỏi của người dùng một cách ngắn gọn và chính xác."

func (s *semanticResponder) Respond(ctx context.Context, userText string) (string, error) {
	return s.client.Complete(ctx, semanticPrompt, userText)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logger.NewStructured(cfg.Logging.Level, cfg.Logging.Format)
	log.Info("starting trade assistant", map[string]interface{}{
		"version":     cfg.App.Version,
		"environment": cfg.App.Environment,
	})

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		log.Error("postgres connection failed", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
	defer pg.Close()

	es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
	if err != nil {
		log.Error("elasticsearch connection failed", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}

	rdb, err := database.NewRedis(cfg.Database.Redis)
	if err != nil {
		log.Error("redis connection failed", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
	defer rdb.Close()

	llmClient := llm.NewClient(cfg.GenAI, log)
	store := postgres.NewStore(pg.DB, log)

	sessions := session.NewCache(
		rdb.Client,
		cfg.Session.KeyPrefix,
		time.Duration(cfg.Session.TTLSeconds)*time.Second,
		log,
	)

	eng := engine.New(
		intent.New(llmClient, log),
		resolver.New(store, log),
		synth.New(store, log),
		planner.New(cfg.Engine.DetailThreshold),
		format.New(cfg.Engine),
		llmClient,
		&semanticResponder{client: llmClient},
		sessions,
		log,
	)

	docSearch := engine.NewDocumentSearch(pipeline.NewSearcher(
		es.Client,
		cfg.Database.Elasticsearch.Index,
		llmClient,
		pipeline.NewGenerator(cfg.Engine.Pipeline),
		cfg.Engine.Pipeline,
		log,
	))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pg.Ping(ctx); err != nil {
			http.Error(w, "postgres unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/chat", chatHandler(eng, obs, log))
	mux.HandleFunc("/search", searchHandler(docSearch, log))
	mux.HandleFunc("/ingest", ingestHandler(store, log))

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("http server listening", map[string]interface{}{"address": cfg.Server.Address})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server failed", map[string]interface{}{"error": err.Error()})
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down", nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown error", map[string]interface{}{"error": err.Error()})
	}
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Tier      string `json:"tier"`
	Message   string `json:"message"`
}

type chatResponse struct {
	Reply string `json:"reply"`
}

// turnAnswerer is the engine surface the chat handler needs.
type turnAnswerer interface {
	AnswerSemanticOrStructured(ctx context.Context, turn engine.Turn) (string, error)
}

func chatHandler(eng turnAnswerer, obs *observability.Observability, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		start := time.Now()
		reply, err := eng.AnswerSemanticOrStructured(r.Context(), engine.Turn{
			SessionID: req.SessionID,
			Tier:      req.Tier,
			Text:      req.Message,
		})
		status := "ok"
		if err != nil {
			status = "error"
			log.Error("turn failed", map[string]interface{}{"error": err.Error()})
		}
		obs.RecordTurnProcessed(r.Context(), status)
		obs.RecordTurnDuration(r.Context(), time.Since(start), status)

		w.Header().Set("Content-Type", "application/json")
		if err != nil {
			// The engine already produced the uniform failure reply; the
			// status code still has to say the turn failed.
			w.WriteHeader(http.StatusBadGateway)
		}
		json.NewEncoder(w).Encode(chatResponse{Reply: reply})
	}
}

type ingestRequest struct {
	SourceFile string        `json:"source_file"`
	Records    []ingestEntry `json:"records"`
}

type ingestEntry struct {
	Date         string   `json:"date"`
	Supplier     string   `json:"supplier"`
	HSCode       string   `json:"hs_code"`
	ProductName  string   `json:"product_name"`
	Direction    string   `json:"direction"`
	Unit         string   `json:"unit"`
	Quantity     *float64 `json:"quantity"`
	Origin       string   `json:"origin"`
	DeliveryTerm string   `json:"delivery_term"`
	TaxIE        *float64 `json:"tax_import_export"`
	TaxSC        *float64 `json:"tax_special_consumption"`
	TaxVAT       *float64 `json:"tax_vat"`
	TaxSafeguard *float64 `json:"tax_safeguard"`
	TaxEnv       *float64 `json:"tax_environment"`
}

// ingestHandler accepts a batch of declaration rows (POST) or removes every
// row ingested from a source file (DELETE with ?source_file=).
func ingestHandler(store *postgres.Store, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			var req ingestRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SourceFile == "" {
				http.Error(w, "invalid request body", http.StatusBadRequest)
				return
			}

			records := make([]models.TradeRecord, 0, len(req.Records))
			for _, e := range req.Records {
				rec := models.TradeRecord{
					Supplier:              e.Supplier,
					HSCode:                e.HSCode,
					ProductName:           e.ProductName,
					Direction:             models.ParseDirection(e.Direction),
					Unit:                  e.Unit,
					Quantity:              e.Quantity,
					Origin:                e.Origin,
					DeliveryTerm:          e.DeliveryTerm,
					TaxImportExport:       e.TaxIE,
					TaxSpecialConsumption: e.TaxSC,
					TaxVAT:                e.TaxVAT,
					TaxSafeguard:          e.TaxSafeguard,
					TaxEnvironment:        e.TaxEnv,
					SourceFile:            req.SourceFile,
				}
				if e.Date != "" {
					d, err := time.Parse("2006-01-02", e.Date)
					if err != nil {
						http.Error(w, "invalid date: "+e.Date, http.StatusBadRequest)
						return
					}
					rec.Date = &d
				}
				records = append(records, rec)
			}

			if err := store.BulkInsert(r.Context(), records); err != nil {
				log.Error("bulk insert failed", map[string]interface{}{"error": err.Error()})
				http.Error(w, "insert failed", http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusCreated)

		case http.MethodDelete:
			sourceFile := r.URL.Query().Get("source_file")
			if sourceFile == "" {
				http.Error(w, "source_file is required", http.StatusBadRequest)
				return
			}
			deleted, err := store.DeleteBySourceFile(r.Context(), sourceFile)
			if err != nil {
				log.Error("bulk delete failed", map[string]interface{}{"error": err.Error()})
				http.Error(w, "delete failed", http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]int64{"deleted": deleted})

		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

type searchRequest struct {
	Query string `json:"query"`
}

type searchResponse struct {
	Hits       []map[string]interface{} `json:"hits"`
	UsedFields []string                 `json:"used_fields"`
}

func searchHandler(docSearch *engine.DocumentSearch, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req searchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Query == "" {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		hits, usedFields, err := docSearch.Answer(r.Context(), req.Query)
		if err != nil {
			log.Error("document search failed", map[string]interface{}{"error": err.Error()})
			http.Error(w, "search failed", http.StatusBadGateway)
			return
		}

		resp := searchResponse{UsedFields: usedFields, Hits: make([]map[string]interface{}, 0, len(hits))}
		for _, h := range hits {
			resp.Hits = append(resp.Hits, h.Source)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}
