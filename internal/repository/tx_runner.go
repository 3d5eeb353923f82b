package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloo-solutions/kbsearch/internal/service"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TxRunner hands service code a set of repositories bound to one pgx
// transaction. The transaction commits only when fn returns nil.
type TxRunner struct {
	pool *pgxpool.Pool
}

func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

func (r *TxRunner) WithTx(ctx context.Context, fn func(repos service.TxRepositories) error) (err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err == nil {
			return
		}
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
	}()

	if err = fn(txRepositories{tx: tx}); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type txRepositories struct {
	tx pgx.Tx
}

func (r txRepositories) Knowledge() service.KnowledgeRepository {
	return NewKnowledgeRepositoryWithTx(r.tx)
}

func (r txRepositories) EmbeddingJobs() service.EmbeddingJobRepository {
	return NewEmbeddingJobRepositoryWithTx(r.tx)
}
