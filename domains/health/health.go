package health

import (
	"context"
	"time"
)

type EntityType string

const (
	EntityProvider EntityType = "price_provider"
	EntityStore    EntityType = "cache_store"
	EntityCalendar EntityType = "calendar"
)

type Status string

const (
	StatusOk      Status = "OK"
	StatusError   Status = "ERROR"
	StatusUnknown Status = "UNKNOWN"
)

type HealthRecord struct {
	ID          string     `json:"id"`
	EntityType  EntityType `json:"entity_type"`
	EntityID    string     `json:"entity_id"`
	Status      Status     `json:"status"`
	LastMessage string     `json:"last_message"`
	LastChecked time.Time  `json:"last_checked"`
	LastSuccess *time.Time `json:"last_success,omitempty"`
}

// IHealthUsecase probes the pipeline's three external legs and keeps
// the last verdict per entity in a durable table.
type IHealthUsecase interface {
	GetStatus(ctx context.Context) ([]HealthRecord, error)
	CheckProvider(ctx context.Context) (HealthRecord, error)
	CheckStore(ctx context.Context) (HealthRecord, error)
	CheckCalendar(ctx context.Context) (HealthRecord, error)
	CheckAll(ctx context.Context) ([]HealthRecord, error)
	StartPeriodicChecks(ctx context.Context)
}
