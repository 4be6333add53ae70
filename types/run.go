package types

import (
	"time"

	"github.com/RezaEskandarii/cronhook/internal/state"
)

// Run is the audit entry of one firing attempt.
type Run struct {
	ID             string          `json:"id"`
	JobID          string          `json:"cronId"`
	ScheduledFor   time.Time       `json:"scheduledFor"`
	ExecutedAt     *time.Time      `json:"executedAt,omitempty"`
	Status         state.RunStatus `json:"status"`
	ResponseStatus *int            `json:"responseStatus,omitempty"`
	ResponseBody   string          `json:"responseBody,omitempty"`
	Attempts       int             `json:"attempts"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}
