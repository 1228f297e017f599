package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/BaSui01/flowcanvas/api"
	"github.com/BaSui01/flowcanvas/persistence"
	"github.com/BaSui01/flowcanvas/types"
)

// ServersHandler serves the MCP server registry endpoints. The registry
// is one versioned document; every mutation goes through the same
// compare-and-swap contract as graph saves.
type ServersHandler struct {
	store  persistence.GraphStore
	logger *zap.Logger
}

// NewServersHandler creates a servers handler.
func NewServersHandler(store persistence.GraphStore, logger *zap.Logger) *ServersHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ServersHandler{
		store:  store,
		logger: logger.With(zap.String("component", "servers_handler")),
	}
}

// HandleGet serves GET /api/v1/servers.
func (h *ServersHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	reg, version, err := h.store.GetRegistry(r.Context())
	if err != nil {
		WriteAnyError(w, err, h.logger)
		return
	}
	WriteSuccess(w, api.RegistryResponse{Registry: reg, Version: version})
}

// HandleAdd serves POST /api/v1/servers.
func (h *ServersHandler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	var req api.PutServerRequest
	if ferr := decodeBody(r, &req); ferr != nil {
		WriteError(w, ferr, h.logger)
		return
	}
	if req.Server.Name == "" {
		WriteError(w, types.NewError(types.ErrValidation, "server name must not be empty"), h.logger)
		return
	}

	reg, _, err := h.store.GetRegistry(r.Context())
	if err != nil {
		WriteAnyError(w, err, h.logger)
		return
	}
	if reg.Index(req.Server.Name) >= 0 {
		WriteError(w, types.NewErrorf(types.ErrDuplicateName, "server %q already exists", req.Server.Name), h.logger)
		return
	}
	reg.Servers = append(reg.Servers, req.Server)

	version, err := h.store.PutRegistry(r.Context(), reg, req.Version)
	if err != nil {
		WriteAnyError(w, err, h.logger)
		return
	}
	h.logger.Info("mcp server added",
		zap.String("server", req.Server.Name),
		zap.Int64("version", version))
	WriteSuccess(w, api.VersionResponse{Version: version})
}

// HandleUpdate serves PUT /api/v1/servers/{name}.
func (h *ServersHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	var req api.PutServerRequest
	if ferr := decodeBody(r, &req); ferr != nil {
		WriteError(w, ferr, h.logger)
		return
	}
	req.Server.Name = name

	reg, _, err := h.store.GetRegistry(r.Context())
	if err != nil {
		WriteAnyError(w, err, h.logger)
		return
	}
	idx := reg.Index(name)
	if idx < 0 {
		WriteError(w, types.NewErrorf(types.ErrNotFound, "server %q not found", name), h.logger)
		return
	}
	reg.Servers[idx] = req.Server

	version, err := h.store.PutRegistry(r.Context(), reg, req.Version)
	if err != nil {
		WriteAnyError(w, err, h.logger)
		return
	}
	h.logger.Info("mcp server updated",
		zap.String("server", name),
		zap.Int64("version", version))
	WriteSuccess(w, api.VersionResponse{Version: version})
}

// HandleDelete serves DELETE /api/v1/servers/{name}?version=N.
func (h *ServersHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	expected, err := strconv.ParseInt(r.URL.Query().Get("version"), 10, 64)
	if err != nil {
		WriteError(w, types.NewError(types.ErrValidation, "version query parameter is required"), h.logger)
		return
	}

	reg, _, regErr := h.store.GetRegistry(r.Context())
	if regErr != nil {
		WriteAnyError(w, regErr, h.logger)
		return
	}
	idx := reg.Index(name)
	if idx < 0 {
		WriteError(w, types.NewErrorf(types.ErrNotFound, "server %q not found", name), h.logger)
		return
	}
	reg.Servers = append(reg.Servers[:idx], reg.Servers[idx+1:]...)

	version, putErr := h.store.PutRegistry(r.Context(), reg, expected)
	if putErr != nil {
		WriteAnyError(w, putErr, h.logger)
		return
	}
	h.logger.Info("mcp server deleted",
		zap.String("server", name),
		zap.Int64("version", version))
	WriteSuccess(w, api.VersionResponse{Version: version})
}
