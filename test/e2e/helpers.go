//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/cloo-solutions/kbsearch/internal/api/handlers"
	"github.com/cloo-solutions/kbsearch/internal/api/middleware"
	"github.com/cloo-solutions/kbsearch/internal/jobs"
	"github.com/cloo-solutions/kbsearch/internal/logging"
	"github.com/cloo-solutions/kbsearch/internal/repository"
	"github.com/cloo-solutions/kbsearch/internal/server"
	"github.com/cloo-solutions/kbsearch/internal/service"
	"github.com/cloo-solutions/kbsearch/internal/testutil"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Offline embedder settings shared by the in-process server and the daemon
// binary, so both produce identical vectors.
const (
	e2eDimension = 64
	e2eSeed      = 42
)

// E2ETestEnv is a migrated Postgres plus an API server and embedding worker
// running in-process against it. Everything is torn down by t.Cleanup.
type E2ETestEnv struct {
	Ctx       context.Context
	Pool      *pgxpool.Pool
	ServerURL string
	client    *http.Client
}

func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	t.Helper()
	ctx := context.Background()

	pc := testutil.NewPostgresContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")

	return &E2ETestEnv{
		Ctx:       ctx,
		Pool:      pool,
		ServerURL: startServer(t, pool),
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

// startServer assembles the same object graph as `kbsearchd serve`, with the
// offline embedder, a permissive similarity threshold and a fast worker poll.
func startServer(t *testing.T, pool *pgxpool.Pool) string {
	logger := logging.NewLogger("error", "text")

	knowledgeRepo := repository.NewKnowledgeRepository(pool)
	embedder := service.NewEmbeddingService(
		service.NewOfflineEmbeddingProvider(e2eDimension, e2eSeed),
		service.EmbeddingConfig{Dimension: e2eDimension},
		logger,
	)
	indexer := service.NewKnowledgeIndexer(knowledgeRepo, embedder, logger)
	searchSvc := service.NewHybridSearchService(knowledgeRepo, embedder, service.SearchConfig{
		SimilarityThreshold: 0.01,
	}, logger).WithSearchLog(repository.NewSearchLogRepository(pool))

	workerCtx, stopWorker := context.WithCancel(context.Background())
	worker := jobs.NewWorker(
		jobs.NewEmbeddingWorker(repository.NewEmbeddingJobRepository(pool), indexer, logger),
		100*time.Millisecond,
		logger,
	)
	go worker.Start(workerCtx)

	srv := httptest.NewServer(server.NewRouter(server.RouterConfig{
		KnowledgeHandler: handlers.NewKnowledgeHandler(
			service.NewKnowledgeService(knowledgeRepo, repository.NewTxRunner(pool), logger),
		),
		SearchHandler: handlers.NewSearchHandler(searchSvc),
		EmbeddingMode: embedder.Mode(),
		Logger:        logger,
	}))

	// Cleanups run LIFO: registered before the pool's, so the worker stops
	// before its connections go away.
	t.Cleanup(func() {
		worker.Stop()
		stopWorker()
		srv.Close()
	})
	return srv.URL
}

// BuildDaemon compiles cmd/kbsearchd into a per-test temp dir.
func BuildDaemon(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	cmd := exec.Command("go", "build", "-o", filepath.Join(dir, "kbsearchd"), "./cmd/kbsearchd")
	cmd.Dir = "../.."
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("build kbsearchd: %v\n%s", err, out)
	}
	return dir
}

// RunDaemon runs one kbsearchd subcommand against databaseURL and returns its
// combined output. Provider credentials are blanked so embeddings stay offline.
func RunDaemon(binaryDir, databaseURL string, args ...string) (string, error) {
	cmd := exec.Command(filepath.Join(binaryDir, "kbsearchd"), args...)
	cmd.Dir = binaryDir
	cmd.Env = append(os.Environ(),
		"KBSEARCH_DATABASE_URL="+databaseURL,
		"KBSEARCH_OPENAI_API_KEY=",
		"KBSEARCH_SENTRY_DSN=",
		fmt.Sprintf("KBSEARCH_EMBEDDING_DIMENSION=%d", e2eDimension),
		fmt.Sprintf("KBSEARCH_MOCK_EMBEDDING_SEED=%d", e2eSeed),
		"KBSEARCH_LOG_FORMAT=json",
	)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// APIResponse is the JSON envelope every endpoint answers with.
type APIResponse struct {
	Status int             `json:"-"`
	Data   json.RawMessage `json:"data"`
	Error  string          `json:"error,omitempty"`
	Code   string          `json:"code,omitempty"`
}

func (e *E2ETestEnv) Get(path, role string) (*APIResponse, error) {
	return e.do(http.MethodGet, path, nil, role)
}

func (e *E2ETestEnv) Post(path string, body any, role string) (*APIResponse, error) {
	return e.do(http.MethodPost, path, body, role)
}

func (e *E2ETestEnv) Put(path string, body any, role string) (*APIResponse, error) {
	return e.do(http.MethodPut, path, body, role)
}

// do sends one request as role. Error statuses come back as a non-nil error
// alongside the decoded envelope, so tests can assert on Code.
func (e *E2ETestEnv) do(method, path string, body any, role string) (*APIResponse, error) {
	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		payload = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(e.Ctx, method, e.ServerURL+path, payload)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set(middleware.RoleHeader, role)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	out := &APIResponse{Status: resp.StatusCode}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return out, fmt.Errorf("%s %s: HTTP %d with undecodable body %q", method, path, resp.StatusCode, raw)
		}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return out, fmt.Errorf("%s %s: HTTP %d %s: %s", method, path, resp.StatusCode, out.Code, out.Error)
	}
	return out, nil
}
