package services

import (
	"context"

	"github.com/upb/esign-platform/models"
)

// ActivityRecorder records organization activity. Recording never fails the
// operation that caused it.
type ActivityRecorder interface {
	Record(ctx context.Context, entry *models.AuditLog)
}

// NopRecorder discards activity.
type NopRecorder struct{}

// Record implements ActivityRecorder.
func (NopRecorder) Record(context.Context, *models.AuditLog) {}
