package repo

import (
	"context"
	"time"

	"github.com/PascalHesselink/PassieUptimeRobot/internal/domain"
)

type SslStore interface {
	// InsertSnapshot appends a new snapshot row and returns its id.
	InsertSnapshot(ctx context.Context, s *domain.CertSnapshot) (int64, error)

	LatestSnapshot(ctx context.Context, targetID int64) (*domain.CertSnapshot, error)
	LatestInvalidSnapshot(ctx context.Context, targetID int64) (*domain.CertSnapshot, error)

	// TouchSnapshot refreshes last_checked_at and days_left on an
	// existing row; used when the comparable tuple did not change.
	TouchSnapshot(ctx context.Context, id int64, daysLeft *int, at time.Time) error
}
