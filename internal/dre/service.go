package dre

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ateliemoda/backend-atelie/internal/repo"
	"github.com/ateliemoda/backend-atelie/internal/tenant"
)

// Querier defines the store access required for DRE reports.
type Querier interface {
	ListTransactions(ctx context.Context, f repo.TransactionFilter) ([]repo.TransactionRow, error)
}

// Service derives income statements on demand, with a short Redis cache in
// front of the transaction scan.
type Service struct {
	Q   Querier
	R   *redis.Client
	TTL time.Duration
	Now func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Report is a breakdown together with the period it covers.
type Report struct {
	From             time.Time `json:"from"`
	To               time.Time `json:"to"`
	TransactionCount int       `json:"transactionCount"`
	Breakdown        Breakdown `json:"breakdown"`
}

func (s *Service) cacheKey(ctx context.Context, from, to time.Time) (string, bool) {
	tid, ok := tenant.FromContext(ctx)
	if !ok {
		return "", false
	}
	key := fmt.Sprintf("dre:%s:%s", from.Format("2006-01-02"), to.Format("2006-01-02"))
	return tenant.PrefixKey(tid, key), true
}

// Breakdown computes the income statement for [from, to). The breakdown is
// always re-derived from transactions; only the derived result is cached.
func (s *Service) Breakdown(ctx context.Context, from, to time.Time) (Report, error) {
	key, keyed := s.cacheKey(ctx, from, to)
	if keyed && s.R != nil && s.TTL > 0 {
		if data, err := s.R.Get(ctx, key).Bytes(); err == nil {
			var cached Report
			if err := json.Unmarshal(data, &cached); err == nil {
				return cached, nil
			}
		}
	}

	rows, err := s.Q.ListTransactions(ctx, repo.TransactionFilter{From: from, To: to})
	if err != nil {
		return Report{}, fmt.Errorf("list transactions: %w", err)
	}
	txs := make([]Transaction, 0, len(rows))
	for _, r := range rows {
		txs = append(txs, Transaction{
			Type:       TransactionType(r.Type),
			Category:   Category(r.DreCategory),
			CashImpact: r.CashImpact,
			Amount:     r.Amount,
			Date:       r.OccurredAt,
		})
	}
	report := Report{
		From:             from,
		To:               to,
		TransactionCount: len(txs),
		Breakdown:        Reduce(txs),
	}

	if keyed && s.R != nil && s.TTL > 0 {
		if data, err := json.Marshal(report); err == nil {
			_ = s.R.Set(ctx, key, data, s.TTL).Err()
		}
	}
	return report, nil
}
