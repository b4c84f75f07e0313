package anchor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kreymann/resetwatch/internal/recharge"
)

// Repository persists the manual recharge anchor for authenticated users.
// The remote row is the source of truth across sessions and cycle rollovers;
// guests never touch it.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// LoadAnchor returns the stored anchor for userID, or a zero anchor if none
// was ever synced.
func (r *Repository) LoadAnchor(ctx context.Context, userID string) (recharge.Anchor, error) {
	var at time.Time
	err := r.db.QueryRowContext(ctx,
		`SELECT anchor_at FROM recharge_anchors WHERE user_id = $1`, userID,
	).Scan(&at)
	if errors.Is(err, sql.ErrNoRows) {
		return recharge.Anchor{}, nil
	}
	if err != nil {
		return recharge.Anchor{}, fmt.Errorf("failed to load anchor: %w", err)
	}
	return recharge.Anchor{At: at}, nil
}

// SaveAnchor upserts the anchor for userID.
func (r *Repository) SaveAnchor(ctx context.Context, userID string, a recharge.Anchor) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO recharge_anchors (user_id, anchor_at, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (user_id) DO UPDATE SET anchor_at = $2, updated_at = now()`,
		userID, a.At.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save anchor: %w", err)
	}
	return nil
}

// ClearAnchor removes the stored anchor for userID.
func (r *Repository) ClearAnchor(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM recharge_anchors WHERE user_id = $1`, userID,
	); err != nil {
		return fmt.Errorf("failed to clear anchor: %w", err)
	}
	return nil
}
