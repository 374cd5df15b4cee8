package store

import (
	"context"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/Masterminds/squirrel"

	"github.com/openmarkets/totem/internal/fees"
	"github.com/openmarkets/totem/internal/model"
)

// marketColumns is the column list shared by every market query; scanMarket
// must stay in the same order.
var marketColumns = []string{
	"id", "question",
	"q_yes", "q_no", "b_e18",
	"vault", "lp_fee_pot", "residual_pot",
	"treasury_bps", "vault_bps", "lp_bps",
	"status",
	"expiry_timestamp", "oracle_type", "feed_id", "target_value", "comparison",
	"yes_wins", "is_resolved", "resolved_at",
	"residual_finalized",
	"total_lp_collateral", "lp_fee_acc_per_share", "lp_residual_acc_per_share",
	"created_at",
}

// SaveMarket upserts the full market record. The engine calls this after
// every committed operation, so conflicts on id are the common path.
func (s *Store) SaveMarket(ctx context.Context, m *model.Market) error {
	query, args, err := s.sq.
		Insert("markets").
		Columns(marketColumns...).
		Values(
			m.ID, m.Question,
			m.QYes.String(), m.QNo.String(), m.BE18.String(),
			m.Vault, m.LpFeePot, m.ResidualPot,
			m.Fees.TreasuryBps, m.Fees.VaultBps, m.Fees.LpBps,
			string(m.Status),
			m.Resolution.ExpiryTimestamp, string(m.Resolution.OracleType),
			m.Resolution.FeedID, m.Resolution.TargetValue, string(m.Resolution.Comparison),
			m.Resolution.YesWins, m.Resolution.IsResolved, m.Resolution.ResolvedAt,
			m.ResidualFinalized,
			m.TotalLpCollateral, m.LpFeeAccPerShare.String(), m.LpResidualAccPerShare.String(),
			m.CreatedAt,
		).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			q_yes = EXCLUDED.q_yes,
			q_no = EXCLUDED.q_no,
			vault = EXCLUDED.vault,
			lp_fee_pot = EXCLUDED.lp_fee_pot,
			residual_pot = EXCLUDED.residual_pot,
			status = EXCLUDED.status,
			yes_wins = EXCLUDED.yes_wins,
			is_resolved = EXCLUDED.is_resolved,
			resolved_at = EXCLUDED.resolved_at,
			residual_finalized = EXCLUDED.residual_finalized,
			total_lp_collateral = EXCLUDED.total_lp_collateral,
			lp_fee_acc_per_share = EXCLUDED.lp_fee_acc_per_share,
			lp_residual_acc_per_share = EXCLUDED.lp_residual_acc_per_share`).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build query: %w", err)
	}

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to save market: %w", err)
	}
	return nil
}

func (s *Store) GetMarket(ctx context.Context, id string) (*model.Market, error) {
	query, args, err := s.sq.
		Select(marketColumns...).
		From("markets").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	m, err := scanMarket(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, fmt.Errorf("failed to query market: %w", notFound(err))
	}
	return m, nil
}

func (s *Store) ListMarkets(ctx context.Context) ([]*model.Market, error) {
	query, args, err := s.sq.
		Select(marketColumns...).
		From("markets").
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query markets: %w", err)
	}
	defer rows.Close()

	var markets []*model.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan market: %w", err)
		}
		markets = append(markets, m)
	}
	return markets, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMarket(row rowScanner) (*model.Market, error) {
	var (
		m          model.Market
		qYes       string
		qNo        string
		b          string
		feeAcc     string
		resAcc     string
		status     string
		oracleType string
		comparison string
		resolvedAt *time.Time
		fs         fees.Schedule
	)
	err := row.Scan(
		&m.ID, &m.Question,
		&qYes, &qNo, &b,
		&m.Vault, &m.LpFeePot, &m.ResidualPot,
		&fs.TreasuryBps, &fs.VaultBps, &fs.LpBps,
		&status,
		&m.Resolution.ExpiryTimestamp, &oracleType,
		&m.Resolution.FeedID, &m.Resolution.TargetValue, &comparison,
		&m.Resolution.YesWins, &m.Resolution.IsResolved, &resolvedAt,
		&m.ResidualFinalized,
		&m.TotalLpCollateral, &feeAcc, &resAcc,
		&m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if m.QYes, err = parseInt(qYes); err != nil {
		return nil, err
	}
	if m.QNo, err = parseInt(qNo); err != nil {
		return nil, err
	}
	if m.BE18, err = parseInt(b); err != nil {
		return nil, err
	}
	if m.LpFeeAccPerShare, err = parseInt(feeAcc); err != nil {
		return nil, err
	}
	if m.LpResidualAccPerShare, err = parseInt(resAcc); err != nil {
		return nil, err
	}
	m.Fees = fs
	m.Status = model.Status(status)
	m.Resolution.OracleType = model.OracleType(oracleType)
	m.Resolution.Comparison = model.Comparison(comparison)
	m.Resolution.ResolvedAt = resolvedAt
	return &m, nil
}

// parseInt decodes the NUMERIC(78,0) text representation used for
// 18-decimal quantities.
func parseInt(s string) (sdkmath.Int, error) {
	v, ok := sdkmath.NewIntFromString(s)
	if !ok {
		return sdkmath.Int{}, fmt.Errorf("invalid integer column value %q", s)
	}
	return v, nil
}
