package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/autobit/compute/internal/core"
	"github.com/autobit/compute/internal/events"
	"github.com/autobit/compute/internal/model"
	"github.com/autobit/compute/internal/runtime"
)

func newServerHandler(db core.DB) *Server {
	svc := core.NewServerService(db, runtime.NewMock(zerolog.Nop()), events.Noop{}, zerolog.Nop())
	return NewServer(svc)
}

func serverRow(srv model.Server) *handlerMockRow {
	return &handlerMockRow{scanFunc: func(dest ...any) error {
		*(dest[0].(*string)) = srv.ID
		*(dest[1].(*string)) = srv.UserID
		*(dest[2].(*string)) = srv.Name
		*(dest[3].(*string)) = srv.Image
		*(dest[4].(*float64)) = srv.CPULimit
		*(dest[5].(*int)) = srv.Cores
		*(dest[6].(*float64)) = srv.RAMGiB
		*(dest[7].(*float64)) = srv.DiskGiB
		*(dest[8].(*string)) = srv.Status
		*(dest[9].(**string)) = srv.RuntimeHandle
		*(dest[10].(*time.Time)) = srv.CreatedAt
		*(dest[11].(*time.Time)) = srv.UpdatedAt
		return nil
	}}
}

func ownedServer(status string) model.Server {
	handle := "mock-srv-1"
	return model.Server{
		ID:            "srv-1",
		UserID:        testUserID,
		Name:          "web-1",
		Image:         "nginx:latest",
		CPULimit:      1.0,
		Cores:         2,
		RAMGiB:        2.0,
		DiskGiB:       10.0,
		Status:        status,
		RuntimeHandle: &handle,
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}
}

// --- Create ---

func TestServerCreate_InvalidJSON(t *testing.T) {
	h := newServerHandler(nil)
	rec := httptest.NewRecorder()
	r := withUser(newRequestRaw(http.MethodPost, "/servers", "{bad json"), testUserID)

	h.Create(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeErrorResponse(rec)
	assert.Contains(t, body["error"], "invalid JSON")
}

func TestServerCreate_MissingImage(t *testing.T) {
	h := newServerHandler(nil)
	rec := httptest.NewRecorder()
	r := withUser(newRequest(http.MethodPost, "/servers", map[string]any{
		"cpu_limit": 1.0,
		"cores":     2,
		"ram_gib":   2.0,
		"disk_gib":  10.0,
	}), testUserID)

	h.Create(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeErrorResponse(rec)
	assert.Contains(t, body["error"], "validation error")
}

func TestServerCreate_NonPositiveResources(t *testing.T) {
	h := newServerHandler(nil)
	rec := httptest.NewRecorder()
	r := withUser(newRequest(http.MethodPost, "/servers", map[string]any{
		"image":     "nginx:latest",
		"cpu_limit": 0,
		"cores":     2,
		"ram_gib":   2.0,
		"disk_gib":  10.0,
	}), testUserID)

	h.Create(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServerCreate_Valid(t *testing.T) {
	db := new(handlerMockDB)
	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, nil)
	h := newServerHandler(db)

	rec := httptest.NewRecorder()
	r := withUser(newRequest(http.MethodPost, "/servers", map[string]any{
		"name":      "web-1",
		"image":     "nginx:latest",
		"cpu_limit": 1.0,
		"cores":     2,
		"ram_gib":   2.0,
		"disk_gib":  10.0,
	}), testUserID)

	h.Create(rec, r)

	require.Equal(t, http.StatusCreated, rec.Code)

	var srv model.Server
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &srv))
	assert.Equal(t, testUserID, srv.UserID)
	assert.Equal(t, model.ServerStatusCreated, srv.Status)
	require.NotNil(t, srv.RuntimeHandle)
	assert.Equal(t, "mock-"+srv.ID, *srv.RuntimeHandle)
}

func TestServerCreate_GeneratesNameWhenOmitted(t *testing.T) {
	db := new(handlerMockDB)
	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, nil)
	h := newServerHandler(db)

	rec := httptest.NewRecorder()
	r := withUser(newRequest(http.MethodPost, "/servers", map[string]any{
		"image":     "nginx:latest",
		"cpu_limit": 1.0,
		"cores":     2,
		"ram_gib":   2.0,
		"disk_gib":  10.0,
	}), testUserID)

	h.Create(rec, r)

	require.Equal(t, http.StatusCreated, rec.Code)

	var srv model.Server
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &srv))
	assert.Contains(t, srv.Name, "server-")
}

// --- Get ---

func TestServerGet_NotFound(t *testing.T) {
	db := new(handlerMockDB)
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&handlerMockRow{scanFunc: func(dest ...any) error { return pgx.ErrNoRows }})
	h := newServerHandler(db)

	rec := httptest.NewRecorder()
	r := withUser(withChiURLParam(newRequest(http.MethodGet, "/servers/srv-x", nil), "id", "srv-x"), testUserID)

	h.Get(rec, r)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServerGet_Found(t *testing.T) {
	db := new(handlerMockDB)
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(serverRow(ownedServer(model.ServerStatusRunning)))
	h := newServerHandler(db)

	rec := httptest.NewRecorder()
	r := withUser(withChiURLParam(newRequest(http.MethodGet, "/servers/srv-1", nil), "id", "srv-1"), testUserID)

	h.Get(rec, r)

	require.Equal(t, http.StatusOK, rec.Code)

	var srv model.Server
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &srv))
	assert.Equal(t, "srv-1", srv.ID)
}

// --- Start / Stop ---

func TestServerStart_AlreadyRunning(t *testing.T) {
	db := new(handlerMockDB)
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(serverRow(ownedServer(model.ServerStatusRunning)))
	h := newServerHandler(db)

	rec := httptest.NewRecorder()
	r := withUser(withChiURLParam(newRequest(http.MethodPost, "/servers/srv-1/start", nil), "id", "srv-1"), testUserID)

	h.Start(rec, r)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestServerStart_Stopped(t *testing.T) {
	db := new(handlerMockDB)
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(serverRow(ownedServer(model.ServerStatusStopped)))
	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, nil)
	h := newServerHandler(db)

	rec := httptest.NewRecorder()
	r := withUser(withChiURLParam(newRequest(http.MethodPost, "/servers/srv-1/start", nil), "id", "srv-1"), testUserID)

	h.Start(rec, r)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, model.ServerStatusRunning, body["status"])
}

func TestServerStop_AlreadyStopped(t *testing.T) {
	db := new(handlerMockDB)
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(serverRow(ownedServer(model.ServerStatusStopped)))
	h := newServerHandler(db)

	rec := httptest.NewRecorder()
	r := withUser(withChiURLParam(newRequest(http.MethodPost, "/servers/srv-1/stop", nil), "id", "srv-1"), testUserID)

	h.Stop(rec, r)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

// --- Update ---

func TestServerUpdate_EmptyBody(t *testing.T) {
	db := new(handlerMockDB)
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(serverRow(ownedServer(model.ServerStatusStopped)))
	h := newServerHandler(db)

	rec := httptest.NewRecorder()
	r := withUser(withChiURLParam(newRequest(http.MethodPatch, "/servers/srv-1", map[string]any{}), "id", "srv-1"), testUserID)

	h.Update(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServerUpdate_Resize(t *testing.T) {
	db := new(handlerMockDB)
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(serverRow(ownedServer(model.ServerStatusStopped)))
	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, nil)
	h := newServerHandler(db)

	rec := httptest.NewRecorder()
	r := withUser(withChiURLParam(newRequest(http.MethodPatch, "/servers/srv-1", map[string]any{
		"ram_gib": 8.0,
	}), "id", "srv-1"), testUserID)

	h.Update(rec, r)

	require.Equal(t, http.StatusOK, rec.Code)
	var srv model.Server
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &srv))
	assert.Equal(t, 8.0, srv.RAMGiB)
}

// --- Delete ---

func TestServerDelete(t *testing.T) {
	db := new(handlerMockDB)
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(serverRow(ownedServer(model.ServerStatusStopped)))
	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, nil)
	h := newServerHandler(db)

	rec := httptest.NewRecorder()
	r := withUser(withChiURLParam(newRequest(http.MethodDelete, "/servers/srv-1", nil), "id", "srv-1"), testUserID)

	h.Delete(rec, r)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}
