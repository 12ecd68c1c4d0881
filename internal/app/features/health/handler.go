package health

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/dalemusser/bisontutor/internal/app/client/tutorapi"
	"github.com/dalemusser/bisontutor/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// Handler holds dependencies needed for health checks.
type Handler struct {
	Client *mongo.Client // nil when profiles are not kept in Mongo
	API    *tutorapi.Client
	Log    *zap.Logger
}

// NewHandler constructs a health Handler. client may be nil.
func NewHandler(client *mongo.Client, api *tutorapi.Client, logger *zap.Logger) *Handler {
	return &Handler{
		Client: client,
		API:    api,
		Log:    logger,
	}
}

// healthResponse is the JSON structure for the health check response.
type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	TutorAPI string `json:"tutor_api"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Serve handles GET /health.
//
// On success: 200 and
//
//	{ "status":"ok", "database":"connected", "tutor_api":"reachable" }
//
// When the tutoring service does not answer the app can still sign people
// in, so the answer is 200 with "status":"degraded".
//
// On DB failure: 503 and
//
//	{ "status":"error", "message":"Database unavailable", "error":"…"}
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Ping())
	defer cancel()

	w.Header().Set("Content-Type", "application/json")

	resp := healthResponse{
		Status:   "ok",
		Database: "not_configured",
		TutorAPI: "not_configured",
	}

	if h.Client != nil {
		if err := h.Client.Ping(ctx, readpref.Primary()); err != nil {
			h.Log.Error("health-check: mongo ping failed", zap.Error(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			resp.Status = "error"
			resp.Database = "disconnected"
			resp.Message = "Database unavailable"
			resp.Error = err.Error()
			_ = json.NewEncoder(w).Encode(resp)
			return
		}
		resp.Database = "connected"
	}

	if h.API != nil {
		if err := h.API.Ping(ctx); err != nil {
			h.Log.Warn("health-check: tutor api ping failed", zap.Error(err))
			resp.Status = "degraded"
			resp.TutorAPI = "unreachable"
			resp.Error = err.Error()
		} else {
			resp.TutorAPI = "reachable"
		}
	}

	_ = json.NewEncoder(w).Encode(resp)
}
