package types

import (
	"time"
)

// Job is a recurring HTTP trigger. LeaseExpiresAt is only ever written through
// the lease primitives of the store, never by user edits.
type Job struct {
	ID             string     `json:"id"`
	Name           string     `json:"name,omitempty"`
	URI            string     `json:"uri"`
	Method         string     `json:"httpMethod"`
	Body           string     `json:"body,omitempty"`
	Schedule       string     `json:"schedule"`
	TimeZone       string     `json:"timeZone"`
	Enabled        bool       `json:"enabled"`
	LeaseExpiresAt *time.Time `json:"lockedUntil,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// Leased reports whether a lease on the job is still active at now.
func (j *Job) Leased(now time.Time) bool {
	return j.LeaseExpiresAt != nil && j.LeaseExpiresAt.After(now)
}
