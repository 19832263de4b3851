package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/extraction-workbench/internal/config"
	"github.com/kirillkom/extraction-workbench/internal/core/domain"
	"github.com/kirillkom/extraction-workbench/internal/core/ports"
	"github.com/kirillkom/extraction-workbench/internal/core/usecase"
	"github.com/kirillkom/extraction-workbench/internal/infrastructure/export/xlsx"
	"github.com/kirillkom/extraction-workbench/internal/infrastructure/extractor"
	"github.com/kirillkom/extraction-workbench/internal/infrastructure/extractor/pdf"
	"github.com/kirillkom/extraction-workbench/internal/infrastructure/extractor/plaintext"
	"github.com/kirillkom/extraction-workbench/internal/infrastructure/lineage/neo4j"
	"github.com/kirillkom/extraction-workbench/internal/infrastructure/llm"
	"github.com/kirillkom/extraction-workbench/internal/infrastructure/llm/gemini"
	"github.com/kirillkom/extraction-workbench/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/extraction-workbench/internal/infrastructure/queue/inproc"
	"github.com/kirillkom/extraction-workbench/internal/infrastructure/queue/nats"
	"github.com/kirillkom/extraction-workbench/internal/infrastructure/repository/memory"
	"github.com/kirillkom/extraction-workbench/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/extraction-workbench/internal/infrastructure/resilience"
	"github.com/kirillkom/extraction-workbench/internal/infrastructure/ruleseed"
	"github.com/kirillkom/extraction-workbench/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/extraction-workbench/internal/observability/metrics"
)

const closeTimeout = 5 * time.Second

type App struct {
	Config config.Config

	Queue   ports.MessageQueue
	Docs    ports.DocumentRepository
	Metrics *metrics.WorkbenchMetrics

	IngestUC     ports.DocumentIngestor
	ReaderUC     ports.DocumentReader
	ProcessUC    ports.DocumentProcessor
	ExtractionUC ports.ExtractionService
	FeedbackUC   ports.FeedbackService
	RulesUC      ports.RuleLibrary
	EvolutionUC  ports.RuleEvolver

	classifyRetry *resilience.Executor
	closers       []func()
}

type stores struct {
	docs   ports.DocumentRepository
	rules  ports.RuleRepository
	ledger ports.FeedbackLedger
	db     *sql.DB
}

// New wires the application. registerer receives the workbench metrics and may be a
// throwaway registry for processes that do not expose /metrics.
func New(ctx context.Context, cfg config.Config, service string, registerer prometheus.Registerer) (*App, error) {
	app := &App{Config: cfg}
	if registerer == nil {
		registerer = prometheus.NewRegistry()
	}
	app.Metrics = metrics.NewWorkbenchMetrics(service, registerer)
	app.classifyRetry = newBusyRetry(app.Metrics)

	st, err := openStores(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if st.db != nil {
		app.onClose(func() { _ = st.db.Close() })
	}
	app.Docs = st.docs

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	pages := extractor.NewRouter(plaintext.NewExtractor(storage, cfg.TextFallbackCharset, cfg.TextPageChars)).
		Handle("application/pdf", pdf.NewExtractor(storage, cfg.PDFMaxPages))

	executor := resilience.NewExecutor(resilienceConfig(cfg), resilience.WithObserver(app.Metrics))

	collaborators, err := newCollaborators(ctx, cfg, executor)
	if err != nil {
		app.Close()
		return nil, err
	}

	queue, err := newQueue(cfg, executor)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Queue = queue
	if q, ok := queue.(*nats.Queue); ok {
		app.onClose(q.Close)
	}

	var lineage ports.RuleLineage
	if strings.TrimSpace(cfg.Neo4jURI) != "" {
		graph, err := neo4j.New(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword, cfg.Neo4jDatabase)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("init rule lineage: %w", err)
		}
		lineage = graph
		app.onClose(func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
			defer cancel()
			_ = graph.Close(closeCtx)
		})
	}

	if err := seedRules(ctx, cfg.RulesSeedPath, st.rules); err != nil {
		app.Close()
		return nil, err
	}

	guard := usecase.NewDocumentGuard()
	timeout := cfg.OperationTimeout()

	app.IngestUC = usecase.NewIngestDocumentUseCase(st.docs, storage, pages, queue)
	app.ReaderUC = usecase.NewDocumentQueryUseCase(st.docs)
	app.ProcessUC = usecase.NewClassifyDocumentUseCase(st.docs, collaborators, guard, app.Metrics, cfg.ClassifySnippetChars, timeout)
	app.ExtractionUC = usecase.NewExtractionUseCase(
		st.docs, st.rules, st.ledger,
		collaborators, collaborators, collaborators,
		xlsx.New(),
		usecase.ExtractionOptions{
			Guard:            guard,
			Metrics:          app.Metrics,
			Matcher:          domain.NewKeyMatcher(cfg.RegionKeyMatcher),
			OperationTimeout: timeout,
		},
	)
	app.FeedbackUC = usecase.NewFeedbackUseCase(st.docs, st.ledger)
	app.RulesUC = usecase.NewRuleLibraryUseCase(st.rules, collaborators, collaborators, timeout)
	app.EvolutionUC = usecase.NewRuleEvolutionUseCase(st.docs, st.rules, collaborators, lineage, guard, app.Metrics, timeout)

	return app, nil
}

func (a *App) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func openStores(ctx context.Context, cfg config.Config) (stores, error) {
	switch cfg.StoreBackend {
	case config.StorePostgres:
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return stores{}, fmt.Errorf("open postgres: %w", err)
		}
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			_ = db.Close()
			return stores{}, fmt.Errorf("ensure schema: %w", err)
		}
		return stores{
			docs:   postgres.NewDocumentRepository(db),
			rules:  postgres.NewRuleRepository(db),
			ledger: postgres.NewFeedbackLedger(db),
			db:     db,
		}, nil
	case config.StoreMemory, "":
		return stores{
			docs:   memory.NewDocumentRepository(),
			rules:  memory.NewRuleRepository(),
			ledger: memory.NewFeedbackLedger(),
		}, nil
	default:
		return stores{}, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func resilienceConfig(cfg config.Config) resilience.Config {
	rc := resilience.DefaultConfig()
	rc.RetryMaxAttempts = cfg.RetryMaxAttempts
	rc.RetryInitialBackoff = time.Duration(cfg.RetryInitialBackoffMS) * time.Millisecond
	rc.RetryMaxBackoff = time.Duration(cfg.RetryMaxBackoffMS) * time.Millisecond
	rc.BreakerEnabled = cfg.BreakerEnabled
	rc.BreakerFailureRatio = cfg.BreakerFailureRatio
	rc.BreakerOpenTimeout = time.Duration(cfg.BreakerOpenTimeoutMS) * time.Millisecond
	return rc
}

func newCollaborators(ctx context.Context, cfg config.Config, executor *resilience.Executor) (*llm.Client, error) {
	aliases := llm.ParseModelAliases(cfg.LLMModelAliases)
	switch cfg.LLMProvider {
	case config.ProviderGemini:
		client, err := gemini.New(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, executor)
		if err != nil {
			return nil, fmt.Errorf("init gemini: %w", err)
		}
		return llm.NewClient(client, llm.Models{Fast: cfg.GeminiFastModel, Precise: cfg.GeminiModel, Aliases: aliases}), nil
	case config.ProviderOllama, "":
		client := ollama.New(cfg.OllamaURL, cfg.OllamaModel, ollama.WithExecutor(executor))
		return llm.NewClient(client, llm.Models{Fast: cfg.OllamaFastModel, Precise: cfg.OllamaModel, Aliases: aliases}), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLMProvider)
	}
}

func newQueue(cfg config.Config, executor *resilience.Executor) (ports.MessageQueue, error) {
	if cfg.EmbeddedWorker() {
		return inproc.New(cfg.InprocQueueBuffer, cfg.InprocQueueWorkers), nil
	}
	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		QueueGroup:         cfg.NATSQueueGroup,
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}
	return queue, nil
}

// seedRules loads the built-in rules when path is empty. Stored rules are never overwritten.
func seedRules(ctx context.Context, path string, repo ports.RuleRepository) error {
	rules, err := ruleseed.Load(path)
	if err != nil {
		return fmt.Errorf("load rule seed: %w", err)
	}
	added, err := ruleseed.Seed(ctx, repo, rules)
	if err != nil {
		return fmt.Errorf("seed rules: %w", err)
	}
	source := path
	if strings.TrimSpace(source) == "" {
		source = "builtin"
	}
	slog.Info("rules_seeded", "source", source, "added", added, "total", len(rules))
	return nil
}
