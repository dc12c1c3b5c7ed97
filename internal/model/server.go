package model

import "time"

// Server lifecycle states.
const (
	ServerStatusCreated = "created"
	ServerStatusRunning = "running"
	ServerStatusStopped = "stopped"
	ServerStatusDeleted = "deleted"
)

// Server is a user-provisioned compute instance backed by a container runtime.
// RuntimeHandle is the opaque id of the backing runtime object; it is nil only
// for a server whose creation never reached the runtime.
type Server struct {
	ID            string    `json:"id" db:"id"`
	UserID        string    `json:"user_id" db:"user_id"`
	Name          string    `json:"name" db:"name"`
	Image         string    `json:"image" db:"image"`
	CPULimit      float64   `json:"cpu_limit" db:"cpu_limit"`
	Cores         int       `json:"cores" db:"cores"`
	RAMGiB        float64   `json:"ram_gib" db:"ram_gib"`
	DiskGiB       float64   `json:"disk_gib" db:"disk_gib"`
	Status        string    `json:"status" db:"status"`
	RuntimeHandle *string   `json:"runtime_handle,omitempty" db:"runtime_handle"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}
