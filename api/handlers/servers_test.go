package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/flowcanvas/api"
	"github.com/BaSui01/flowcanvas/types"
)

func searchServer() types.MCPServer {
	return types.MCPServer{
		Name:      "search",
		Transport: "http",
		URL:       "http://localhost:9000",
		Enabled:   true,
	}
}

func TestServersHandler_AddUpdateDeleteFlow(t *testing.T) {
	router, _ := newTestRouter(t)

	rec, envelope := doJSON(t, router, http.MethodPost, "/api/v1/servers",
		api.PutServerRequest{Server: searchServer(), Version: 0})
	require.Equal(t, http.StatusOK, rec.Code)
	var v api.VersionResponse
	decodeData(t, envelope, &v)
	assert.Equal(t, int64(1), v.Version)

	updated := searchServer()
	updated.URL = "http://localhost:9001"
	rec, envelope = doJSON(t, router, http.MethodPut, "/api/v1/servers/search",
		api.PutServerRequest{Server: updated, Version: v.Version})
	require.Equal(t, http.StatusOK, rec.Code)
	decodeData(t, envelope, &v)
	assert.Equal(t, int64(2), v.Version)

	_, envelope = doJSON(t, router, http.MethodGet, "/api/v1/servers", nil)
	var reg api.RegistryResponse
	decodeData(t, envelope, &reg)
	require.Len(t, reg.Registry.Servers, 1)
	assert.Equal(t, "http://localhost:9001", reg.Registry.Servers[0].URL)
	assert.Equal(t, int64(2), reg.Version)

	rec, envelope = doJSON(t, router, http.MethodDelete, "/api/v1/servers/search?version=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeData(t, envelope, &v)
	assert.Equal(t, int64(3), v.Version)

	_, envelope = doJSON(t, router, http.MethodGet, "/api/v1/servers", nil)
	decodeData(t, envelope, &reg)
	assert.Empty(t, reg.Registry.Servers)
}

func TestServersHandler_DuplicateAddRejected(t *testing.T) {
	router, _ := newTestRouter(t)

	rec, _ := doJSON(t, router, http.MethodPost, "/api/v1/servers",
		api.PutServerRequest{Server: searchServer(), Version: 0})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, envelope := doJSON(t, router, http.MethodPost, "/api/v1/servers",
		api.PutServerRequest{Server: searchServer(), Version: 1})
	assert.Equal(t, http.StatusConflict, rec.Code)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, string(types.ErrDuplicateName), envelope.Error.Code)
}

func TestServersHandler_StaleVersionConflicts(t *testing.T) {
	router, _ := newTestRouter(t)

	rec, _ := doJSON(t, router, http.MethodPost, "/api/v1/servers",
		api.PutServerRequest{Server: searchServer(), Version: 0})
	require.Equal(t, http.StatusOK, rec.Code)

	other := searchServer()
	other.Name = "files"
	rec, envelope := doJSON(t, router, http.MethodPost, "/api/v1/servers",
		api.PutServerRequest{Server: other, Version: 0})
	assert.Equal(t, http.StatusConflict, rec.Code)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, string(types.ErrConflict), envelope.Error.Code)
	assert.Equal(t, int64(1), envelope.Error.Current)
}

func TestServersHandler_UpdateMissingServer(t *testing.T) {
	router, _ := newTestRouter(t)

	rec, _ := doJSON(t, router, http.MethodPut, "/api/v1/servers/ghost",
		api.PutServerRequest{Server: searchServer(), Version: 0})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServersHandler_DeleteRequiresVersion(t *testing.T) {
	router, _ := newTestRouter(t)

	rec, envelope := doJSON(t, router, http.MethodDelete, "/api/v1/servers/search", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, string(types.ErrValidation), envelope.Error.Code)
}
