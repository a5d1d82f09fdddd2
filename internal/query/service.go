package query

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// Service answers history queries from the projection tables. Results are
// eventually consistent with the engine; every response carries the
// sequence it was current as of.
type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// PolicyByID returns one policy record, or nil if unknown.
func (s *Service) PolicyByID(ctx context.Context, id uint64) (*PolicyRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT policy_id, owner_id, premium, max_payout, start_time, end_time,
		       region, status, payout_ratio_bps, payout, settled_at, as_of_sequence
		FROM projections.policies
		WHERE policy_id = $1
	`, id)

	var p PolicyRecord
	if err := scanPolicy(row, &p); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("query policy %d: %w", id, err)
	}
	return &p, nil
}

// PoliciesByOwner returns an owner's policies, newest first.
func (s *Service) PoliciesByOwner(ctx context.Context, owner uuid.UUID, limit int) ([]PolicyRecord, error) {
	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT policy_id, owner_id, premium, max_payout, start_time, end_time,
		       region, status, payout_ratio_bps, payout, settled_at, as_of_sequence
		FROM projections.policies
		WHERE owner_id = $1
		ORDER BY policy_id DESC
		LIMIT $2
	`, owner, limit)
	if err != nil {
		return nil, fmt.Errorf("query policies for %s: %w", owner, err)
	}
	defer rows.Close()

	var out []PolicyRecord
	for rows.Next() {
		var p PolicyRecord
		if err := scanPolicy(rows, &p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ShareBalance returns an account's LP share balance, zero if unknown.
func (s *Service) ShareBalance(ctx context.Context, account uuid.UUID) (*ShareRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT account_id, shares, as_of_sequence
		FROM projections.lp_shares
		WHERE account_id = $1
	`, account)

	var r ShareRecord
	if err := row.Scan(&r.Account, &r.Shares, &r.AsOfSequence); err != nil {
		if err == sql.ErrNoRows {
			return &ShareRecord{Account: account}, nil
		}
		return nil, fmt.Errorf("query shares for %s: %w", account, err)
	}
	return &r, nil
}

// PoolSummary returns the projected pool state, zero-valued on an empty
// projection.
func (s *Service) PoolSummary(ctx context.Context) (*PoolRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT capital, total_shares, as_of_sequence
		FROM projections.pool_state
		WHERE id = 1
	`)

	var r PoolRecord
	if err := row.Scan(&r.Capital, &r.TotalShares, &r.AsOfSequence); err != nil {
		if err == sql.ErrNoRows {
			return &PoolRecord{}, nil
		}
		return nil, fmt.Errorf("query pool state: %w", err)
	}
	return &r, nil
}

// RecentSettlements returns the most recently settled policies.
func (s *Service) RecentSettlements(ctx context.Context, limit int) ([]PolicyRecord, error) {
	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT policy_id, owner_id, premium, max_payout, start_time, end_time,
		       region, status, payout_ratio_bps, payout, settled_at, as_of_sequence
		FROM projections.policies
		WHERE status = 'Settled'
		ORDER BY settled_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent settlements: %w", err)
	}
	defer rows.Close()

	var out []PolicyRecord
	for rows.Next() {
		var p PolicyRecord
		if err := scanPolicy(rows, &p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanPolicy(s scanner, p *PolicyRecord) error {
	return s.Scan(
		&p.PolicyID, &p.Owner, &p.Premium, &p.MaxPayout, &p.StartTime, &p.EndTime,
		&p.Region, &p.Status, &p.PayoutRatioBps, &p.Payout, &p.SettledAt, &p.AsOfSequence,
	)
}
