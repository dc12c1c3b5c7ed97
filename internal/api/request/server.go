package request

import (
	"fmt"
	"net/http"
	"time"
)

// CreateServer declares a new server's image and resource shape. Name is
// optional; a missing name gets a generated one.
type CreateServer struct {
	Name     string  `json:"name" validate:"omitempty,slug"`
	Image    string  `json:"image" validate:"required"`
	CPULimit float64 `json:"cpu_limit" validate:"required,gt=0"`
	Cores    int     `json:"cores" validate:"required,gt=0"`
	RAMGiB   float64 `json:"ram_gib" validate:"required,gt=0"`
	DiskGiB  float64 `json:"disk_gib" validate:"required,gt=0"`
}

// UpdateServer carries a partial change. Absent fields stay untouched, so
// every field is a pointer.
type UpdateServer struct {
	Name     *string  `json:"name" validate:"omitempty,slug"`
	CPULimit *float64 `json:"cpu_limit" validate:"omitempty,gt=0"`
	Cores    *int     `json:"cores" validate:"omitempty,gt=0"`
	RAMGiB   *float64 `json:"ram_gib" validate:"omitempty,gt=0"`
	DiskGiB  *float64 `json:"disk_gib" validate:"omitempty,gt=0"`
}

// UsageQuery is the parsed query string of a usage read.
type UsageQuery struct {
	From     time.Time
	To       time.Time
	Interval string
}

// ParseUsageQuery reads from, to and interval query parameters. Timestamps
// are RFC 3339; both are optional. Interval defaults to 1h and is validated
// downstream against the supported set.
func ParseUsageQuery(r *http.Request) (UsageQuery, error) {
	q := UsageQuery{Interval: "1h"}

	if v := r.URL.Query().Get("interval"); v != "" {
		q.Interval = v
	}
	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return q, fmt.Errorf("invalid from timestamp: %w", err)
		}
		q.From = t
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return q, fmt.Errorf("invalid to timestamp: %w", err)
		}
		q.To = t
	}
	return q, nil
}
