package model

import "time"

// UsageSample is one point-in-time measurement of a server's resource
// consumption. Samples are append-only; they are removed only when their
// server is deleted.
type UsageSample struct {
	ID       string    `json:"id" db:"id"`
	ServerID string    `json:"server_id" db:"server_id"`
	TS       time.Time `json:"ts" db:"ts"`
	CPUPct   float64   `json:"cpu_pct" db:"cpu_pct"`
	RAMMiB   float64   `json:"ram_mib" db:"ram_mib"`
	DiskGiB  float64   `json:"disk_gib" db:"disk_gib"`
}

// UsageBucket is an aggregated view over samples whose timestamps truncate to
// the same interval boundary.
type UsageBucket struct {
	TS          time.Time `json:"ts"`
	CPUPct      float64   `json:"cpu_pct"`
	RAMMiB      float64   `json:"ram_mib"`
	DiskGiB     float64   `json:"disk_gib"`
	SampleCount int       `json:"sample_count"`
}
