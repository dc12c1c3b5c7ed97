package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/autobit/compute/internal/events"
	"github.com/autobit/compute/internal/model"
	"github.com/autobit/compute/internal/runtime"
)

// stopGraceSeconds is how long a container gets to exit cleanly before the
// runtime kills it.
const stopGraceSeconds = 10

// ServerService owns the server lifecycle state machine. It translates
// intent (create/start/stop/update/delete) into runtime adapter calls plus
// persisted state transitions, and emits lifecycle events.
type ServerService struct {
	db     DB
	rt     runtime.Runtime
	pub    EventPublisher
	logger zerolog.Logger
}

func NewServerService(db DB, rt runtime.Runtime, pub EventPublisher, logger zerolog.Logger) *ServerService {
	return &ServerService{
		db:     db,
		rt:     rt,
		pub:    pub,
		logger: logger.With().Str("component", "server-service").Logger(),
	}
}

// ServerUpdate carries a partial resource-shape change. Nil fields are left
// untouched.
type ServerUpdate struct {
	Name     *string
	CPULimit *float64
	Cores    *int
	RAMGiB   *float64
	DiskGiB  *float64
}

func validateShape(cpuLimit float64, cores int, ramGiB, diskGiB float64) error {
	if cpuLimit <= 0 || cores <= 0 || ramGiB <= 0 || diskGiB <= 0 {
		return fmt.Errorf("%w: all resource values must be positive", ErrValidation)
	}
	return nil
}

// Create validates the declared shape, creates the backing runtime object and
// persists the server with status created and the returned handle.
func (s *ServerService) Create(ctx context.Context, srv *model.Server) error {
	if err := validateShape(srv.CPULimit, srv.Cores, srv.RAMGiB, srv.DiskGiB); err != nil {
		return err
	}

	handle, err := s.rt.Create(ctx, srv)
	if err != nil {
		return fmt.Errorf("create container for server %s: %w: %w", srv.ID, ErrRuntimeFailure, err)
	}
	srv.RuntimeHandle = &handle
	srv.Status = model.ServerStatusCreated

	_, err = s.db.Exec(ctx,
		`INSERT INTO servers (id, user_id, name, image, cpu_limit, cores, ram_gib, disk_gib, status, runtime_handle, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		srv.ID, srv.UserID, srv.Name, srv.Image, srv.CPULimit, srv.Cores,
		srv.RAMGiB, srv.DiskGiB, srv.Status, srv.RuntimeHandle,
		srv.CreatedAt, srv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert server: %w", err)
	}

	s.pub.Publish(ctx, events.SubjectServerCreated, map[string]string{"server_id": srv.ID})
	return nil
}

const serverColumns = `id, user_id, name, image, cpu_limit, cores, ram_gib, disk_gib, status, runtime_handle, created_at, updated_at`

func scanServer(row interface{ Scan(dest ...any) error }) (model.Server, error) {
	var srv model.Server
	err := row.Scan(&srv.ID, &srv.UserID, &srv.Name, &srv.Image, &srv.CPULimit, &srv.Cores,
		&srv.RAMGiB, &srv.DiskGiB, &srv.Status, &srv.RuntimeHandle,
		&srv.CreatedAt, &srv.UpdatedAt)
	if err != nil {
		return srv, err
	}
	return srv, nil
}

// GetByID returns the server only when it is owned by the given user.
func (s *ServerService) GetByID(ctx context.Context, userID, id string) (*model.Server, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+serverColumns+` FROM servers WHERE id = $1 AND user_id = $2`, id, userID,
	)
	srv, err := scanServer(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get server %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get server %s: %w", id, err)
	}
	return &srv, nil
}

func (s *ServerService) ListByUser(ctx context.Context, userID string, limit int, cursor string) ([]model.Server, bool, error) {
	query := `SELECT ` + serverColumns + ` FROM servers WHERE user_id = $1`
	args := []any{userID}
	argIdx := 2

	if cursor != "" {
		query += fmt.Sprintf(` AND id > $%d`, argIdx)
		args = append(args, cursor)
		argIdx++
	}

	query += ` ORDER BY id`
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit+1)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("list servers for user %s: %w", userID, err)
	}
	defer rows.Close()

	var servers []model.Server
	for rows.Next() {
		srv, err := scanServer(rows)
		if err != nil {
			return nil, false, fmt.Errorf("scan server: %w", err)
		}
		servers = append(servers, srv)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate servers: %w", err)
	}

	hasMore := len(servers) > limit
	if hasMore {
		servers = servers[:limit]
	}
	return servers, hasMore, nil
}

// ListRunning returns every server currently believed to be running with a
// present runtime handle, across all users. Used by the usage sampler.
func (s *ServerService) ListRunning(ctx context.Context) ([]model.Server, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+serverColumns+` FROM servers WHERE status = $1 AND runtime_handle IS NOT NULL ORDER BY id`,
		model.ServerStatusRunning,
	)
	if err != nil {
		return nil, fmt.Errorf("list running servers: %w", err)
	}
	defer rows.Close()

	var servers []model.Server
	for rows.Next() {
		srv, err := scanServer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan server: %w", err)
		}
		servers = append(servers, srv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate running servers: %w", err)
	}
	return servers, nil
}

func (s *ServerService) setStatus(ctx context.Context, id, status string, at time.Time) error {
	_, err := s.db.Exec(ctx,
		`UPDATE servers SET status = $1, updated_at = $2 WHERE id = $3`,
		status, at, id,
	)
	if err != nil {
		return fmt.Errorf("set server %s status to %s: %w", id, status, err)
	}
	return nil
}

// Start transitions the server to running. Rejected when already running or
// when no runtime handle exists.
func (s *ServerService) Start(ctx context.Context, userID, id string) error {
	srv, err := s.GetByID(ctx, userID, id)
	if err != nil {
		return err
	}
	if srv.Status == model.ServerStatusRunning {
		return fmt.Errorf("%w: server is already running", ErrConflict)
	}
	if srv.RuntimeHandle == nil {
		return fmt.Errorf("%w: server has no runtime handle", ErrConflict)
	}

	if !s.rt.Start(ctx, *srv.RuntimeHandle) {
		return fmt.Errorf("start container for server %s: %w", id, ErrRuntimeFailure)
	}

	if err := s.setStatus(ctx, id, model.ServerStatusRunning, time.Now().UTC()); err != nil {
		return err
	}

	s.pub.Publish(ctx, events.SubjectServerStarted, map[string]string{"server_id": id})
	return nil
}

// Stop transitions the server to stopped. Rejected when already stopped or
// when no runtime handle exists.
func (s *ServerService) Stop(ctx context.Context, userID, id string) error {
	srv, err := s.GetByID(ctx, userID, id)
	if err != nil {
		return err
	}
	if srv.Status == model.ServerStatusStopped {
		return fmt.Errorf("%w: server is already stopped", ErrConflict)
	}
	if srv.RuntimeHandle == nil {
		return fmt.Errorf("%w: server has no runtime handle", ErrConflict)
	}

	if !s.rt.Stop(ctx, *srv.RuntimeHandle, stopGraceSeconds) {
		return fmt.Errorf("stop container for server %s: %w", id, ErrRuntimeFailure)
	}

	if err := s.setStatus(ctx, id, model.ServerStatusStopped, time.Now().UTC()); err != nil {
		return err
	}

	s.pub.Publish(ctx, events.SubjectServerStopped, map[string]string{"server_id": id})
	return nil
}

// Update applies a resource-shape change. When the server is running and any
// resource field actually changed, the backing container is replaced in
// place: stop, delete, recreate with the new shape, start. This is the only
// path that changes a server's runtime handle after initial creation. The
// sequence is at-least-once and non-atomic: each sub-step persists its own
// progress, and a partial failure leaves the record at the last completed
// sub-step with no automatic rollback.
func (s *ServerService) Update(ctx context.Context, userID, id string, upd ServerUpdate) (*model.Server, error) {
	srv, err := s.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if upd.Name == nil && upd.CPULimit == nil && upd.Cores == nil && upd.RAMGiB == nil && upd.DiskGiB == nil {
		return nil, fmt.Errorf("%w: no fields to update", ErrValidation)
	}

	resourceChanged := false
	if upd.Name != nil {
		srv.Name = *upd.Name
	}
	if upd.CPULimit != nil && *upd.CPULimit != srv.CPULimit {
		srv.CPULimit = *upd.CPULimit
		resourceChanged = true
	}
	if upd.Cores != nil && *upd.Cores != srv.Cores {
		srv.Cores = *upd.Cores
		resourceChanged = true
	}
	if upd.RAMGiB != nil && *upd.RAMGiB != srv.RAMGiB {
		srv.RAMGiB = *upd.RAMGiB
		resourceChanged = true
	}
	if upd.DiskGiB != nil && *upd.DiskGiB != srv.DiskGiB {
		srv.DiskGiB = *upd.DiskGiB
		resourceChanged = true
	}

	if err := validateShape(srv.CPULimit, srv.Cores, srv.RAMGiB, srv.DiskGiB); err != nil {
		return nil, err
	}

	srv.UpdatedAt = time.Now().UTC()

	if srv.Status == model.ServerStatusRunning && srv.RuntimeHandle != nil && resourceChanged {
		if err := s.replaceInPlace(ctx, srv); err != nil {
			return nil, err
		}
		return srv, nil
	}

	if err := s.persist(ctx, srv); err != nil {
		return nil, err
	}
	return srv, nil
}

func (s *ServerService) persist(ctx context.Context, srv *model.Server) error {
	_, err := s.db.Exec(ctx,
		`UPDATE servers SET name = $1, cpu_limit = $2, cores = $3, ram_gib = $4, disk_gib = $5,
		 status = $6, runtime_handle = $7, updated_at = $8 WHERE id = $9 AND user_id = $10`,
		srv.Name, srv.CPULimit, srv.Cores, srv.RAMGiB, srv.DiskGiB,
		srv.Status, srv.RuntimeHandle, srv.UpdatedAt, srv.ID, srv.UserID,
	)
	if err != nil {
		return fmt.Errorf("update server %s: %w", srv.ID, err)
	}
	return nil
}

func (s *ServerService) replaceInPlace(ctx context.Context, srv *model.Server) error {
	oldHandle := *srv.RuntimeHandle

	if !s.rt.Stop(ctx, oldHandle, stopGraceSeconds) {
		return fmt.Errorf("replace server %s: stop container: %w", srv.ID, ErrRuntimeFailure)
	}
	srv.Status = model.ServerStatusStopped
	if err := s.setStatus(ctx, srv.ID, model.ServerStatusStopped, srv.UpdatedAt); err != nil {
		return err
	}

	if !s.rt.Delete(ctx, oldHandle, true) {
		return fmt.Errorf("replace server %s: delete container: %w", srv.ID, ErrRuntimeFailure)
	}

	newHandle, err := s.rt.Create(ctx, srv)
	if err != nil {
		return fmt.Errorf("replace server %s: recreate container: %w: %w", srv.ID, ErrRuntimeFailure, err)
	}
	srv.RuntimeHandle = &newHandle
	if err := s.persist(ctx, srv); err != nil {
		return err
	}

	if !s.rt.Start(ctx, newHandle) {
		return fmt.Errorf("replace server %s: start container: %w", srv.ID, ErrRuntimeFailure)
	}
	srv.Status = model.ServerStatusRunning
	return s.setStatus(ctx, srv.ID, model.ServerStatusRunning, srv.UpdatedAt)
}

// Delete removes the backing runtime object best-effort and then removes the
// server record outright. Deleted is not a retained tombstone: it is the
// absence of the record.
func (s *ServerService) Delete(ctx context.Context, userID, id string) error {
	srv, err := s.GetByID(ctx, userID, id)
	if err != nil {
		return err
	}

	if srv.RuntimeHandle != nil {
		if !s.rt.Delete(ctx, *srv.RuntimeHandle, true) {
			s.logger.Warn().Str("server_id", id).Msg("failed to remove container, deleting record anyway")
		}
	}

	_, err = s.db.Exec(ctx, `DELETE FROM servers WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete server %s: %w", id, err)
	}
	return nil
}

// RemoveRecord deletes a server record without touching the runtime. The
// sampler uses it to retire servers whose backing runtime object disappeared
// out-of-band.
func (s *ServerService) RemoveRecord(ctx context.Context, id string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM servers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("remove server record %s: %w", id, err)
	}
	return nil
}
