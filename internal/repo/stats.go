package repo

import (
	"context"

	"github.com/PascalHesselink/PassieUptimeRobot/internal/domain"
)

type StatStore interface {
	// AppendStat inserts the record and returns its assigned id.
	AppendStat(ctx context.Context, r *domain.CheckRecord) (int64, error)

	// LastStat returns the most recent record by id for the target.
	LastStat(ctx context.Context, targetID int64) (*domain.CheckRecord, error)

	// StatBefore returns the most recent record with id < beforeID.
	StatBefore(ctx context.Context, targetID, beforeID int64) (*domain.CheckRecord, error)

	// RecentStats returns up to limit records, newest first.
	RecentStats(ctx context.Context, targetID int64, limit int) ([]domain.CheckRecord, error)
}
