package service

import (
	"context"

	"github.com/cloo-solutions/kbsearch/internal/repository/memory"
)

type testTxRepos struct {
	knowledge     KnowledgeRepository
	embeddingJobs EmbeddingJobRepository
}

func (t *testTxRepos) Knowledge() KnowledgeRepository {
	return t.knowledge
}

func (t *testTxRepos) EmbeddingJobs() EmbeddingJobRepository {
	return t.embeddingJobs
}

type testTxRunner struct {
	repos  TxRepositories
	called int
	err    error
}

func (t *testTxRunner) WithTx(ctx context.Context, fn func(repos TxRepositories) error) error {
	t.called++
	if t.err != nil {
		return t.err
	}
	return fn(t.repos)
}

func newMemoryTxRunner(store *memory.Store) *testTxRunner {
	return &testTxRunner{repos: &testTxRepos{knowledge: store, embeddingJobs: store.Jobs()}}
}
