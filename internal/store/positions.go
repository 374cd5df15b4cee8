package store

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"github.com/openmarkets/totem/internal/model"
)

var positionColumns = []string{
	"market_id", "provider", "shares", "fee_checkpoint", "residual_checkpoint",
}

// SavePosition upserts one provider's LP position for a market.
func (s *Store) SavePosition(ctx context.Context, p *model.LpPosition) error {
	query, args, err := s.sq.
		Insert("lp_positions").
		Columns(positionColumns...).
		Values(p.MarketID, p.Provider, p.Shares,
			p.FeeCheckpoint.String(), p.ResidualCheckpoint.String()).
		Suffix(`ON CONFLICT (market_id, provider) DO UPDATE SET
			shares = EXCLUDED.shares,
			fee_checkpoint = EXCLUDED.fee_checkpoint,
			residual_checkpoint = EXCLUDED.residual_checkpoint`).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build query: %w", err)
	}

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to save position: %w", err)
	}
	return nil
}

func (s *Store) GetPosition(ctx context.Context, marketID, provider string) (*model.LpPosition, error) {
	query, args, err := s.sq.
		Select(positionColumns...).
		From("lp_positions").
		Where(squirrel.Eq{"market_id": marketID, "provider": provider}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	p, err := scanPosition(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, fmt.Errorf("failed to query position: %w", notFound(err))
	}
	return p, nil
}

func (s *Store) ListPositions(ctx context.Context, marketID string) ([]*model.LpPosition, error) {
	query, args, err := s.sq.
		Select(positionColumns...).
		From("lp_positions").
		Where(squirrel.Eq{"market_id": marketID}).
		OrderBy("provider").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	var positions []*model.LpPosition
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

func scanPosition(row rowScanner) (*model.LpPosition, error) {
	var (
		p     model.LpPosition
		feeCp string
		resCp string
	)
	if err := row.Scan(&p.MarketID, &p.Provider, &p.Shares, &feeCp, &resCp); err != nil {
		return nil, err
	}
	var err error
	if p.FeeCheckpoint, err = parseInt(feeCp); err != nil {
		return nil, err
	}
	if p.ResidualCheckpoint, err = parseInt(resCp); err != nil {
		return nil, err
	}
	return &p, nil
}
