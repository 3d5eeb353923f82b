package service

import "context"

// TxRepositories are the repositories visible inside a WithTx callback. Writes
// through them land atomically or not at all.
type TxRepositories interface {
	Knowledge() KnowledgeRepository
	EmbeddingJobs() EmbeddingJobRepository
}

type TxRunner interface {
	WithTx(ctx context.Context, fn func(repos TxRepositories) error) error
}
