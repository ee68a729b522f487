package persistence

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/andrescamacho/fleetcore/internal/domain/shared"
)

// RequestLogRepository appends one row per outbound API request. Logging never
// blocks the hot path: failures are dropped.
type RequestLogRepository struct {
	db    *gorm.DB
	clock shared.Clock
}

// NewRequestLogRepository creates a GORM-based request log repository
func NewRequestLogRepository(db *gorm.DB, clock shared.Clock) *RequestLogRepository {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &RequestLogRepository{db: db, clock: clock}
}

// Append records one request. Returns silently on failure.
func (r *RequestLogRepository) Append(ctx context.Context, url string, statusCode int, requestBody string) {
	model := RequestLogModel{
		ID:         uuid.NewString(),
		URL:        url,
		StatusCode: statusCode,
		CreatedAt:  r.clock.Now(),
	}
	if requestBody != "" {
		model.RequestBody = &requestBody
	}
	_ = r.db.WithContext(ctx).Create(&model).Error
}
