package engine

import (
	"context"
	"errors"

	"github.com/aethra/glow/internal/models"
	"github.com/rs/zerolog"
)

// FallbackSource reads rows from Primary and falls back to Secondary when
// Primary fails. A canceled or expired context is returned as is.
type FallbackSource struct {
	Primary   RowSource
	Secondary RowSource
	Logger    zerolog.Logger
}

// Rows implements RowSource.
func (s FallbackSource) Rows(ctx context.Context, moduleID string) ([]models.Row, error) {
	rows, err := s.Primary.Rows(ctx, moduleID)
	if err == nil {
		return rows, nil
	}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil, err
	}
	s.Logger.Warn().Err(err).Str("module", moduleID).Msg("primary rows unavailable, using fallback")
	rows, ferr := s.Secondary.Rows(ctx, moduleID)
	if ferr != nil {
		return nil, errors.Join(err, ferr)
	}
	return rows, nil
}
