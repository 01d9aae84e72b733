// Package repo defines the store ports the engine runs against. Adapters
// live in the postgres, sqlite and memory subpackages. Lookups return
// nil, nil when no row exists.
package repo

import (
	"context"
	"time"

	"github.com/PascalHesselink/PassieUptimeRobot/internal/domain"
)

type TargetStore interface {
	// Upsert registers a target by URL; an existing URL is left untouched.
	Upsert(ctx context.Context, t *domain.Target) error
	ListEnabled(ctx context.Context) ([]domain.Target, error)
	GetByID(ctx context.Context, id int64) (*domain.Target, error)

	MarkChecked(ctx context.Context, id int64, unix int64) error
	MarkUp(ctx context.Context, id int64, at time.Time, unix int64) error
	MarkDown(ctx context.Context, id int64, at time.Time, unix int64) error

	// SetSSLDaysRemaining caches the current day count on the target;
	// nil clears it (unknown SSL state this cycle).
	SetSSLDaysRemaining(ctx context.Context, id int64, days *int) error
}
