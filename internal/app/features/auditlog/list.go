// internal/app/features/auditlog/list.go
package auditlog

import (
	"net/http"
	"time"

	"github.com/dalemusser/bisontutor/internal/app/store/audit"
	"github.com/dalemusser/bisontutor/internal/app/system/authsession"
	"github.com/dalemusser/bisontutor/internal/app/system/normalize"
	"github.com/dalemusser/bisontutor/internal/app/system/respond"
	"github.com/dalemusser/bisontutor/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/pantry/query"
	"go.uber.org/zap"
)

const pageSize = 50

// listItem is one audit event as shown to its owner.
type listItem struct {
	ID            string            `json:"id"`
	Timestamp     string            `json:"timestamp"`
	Category      string            `json:"category"`
	EventType     string            `json:"event_type"`
	IP            string            `json:"ip,omitempty"`
	Success       bool              `json:"success"`
	FailureReason string            `json:"failure_reason,omitempty"`
	Details       map[string]string `json:"details,omitempty"`
}

type listResponse struct {
	Enabled  bool       `json:"enabled"`
	Timezone string     `json:"timezone"`
	Items    []listItem `json:"items"`
}

// ServeList handles GET /audit: the caller's recent sign-in and role
// events, newest first.
//
// Query parameters: category (auth or role), event_type, since
// (YYYY-MM-DD) and tz (an IANA zone used to format timestamps; default UTC).
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	st, ok := h.SessionMgr.CurrentAccount(r)
	if !ok {
		h.ErrLog.Write(w, r, authsession.ErrNotAuthenticated)
		return
	}

	category := normalize.Status(query.Get(r, "category"))
	switch category {
	case "", audit.CategoryAuth, audit.CategoryRole:
	default:
		respond.Error(w, http.StatusBadRequest, "category must be auth or role.")
		return
	}

	tzName := normalize.QueryParam(query.Get(r, "tz"))
	if tzName == "" {
		tzName = "UTC"
	}
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "tz must be an IANA time zone such as America/New_York.")
		return
	}

	filter := audit.QueryFilter{
		UserID:    st.User.ID,
		Category:  category,
		EventType: normalize.Status(query.Get(r, "event_type")),
		Limit:     pageSize,
	}
	if since := normalize.QueryParam(query.Get(r, "since")); since != "" {
		t, err := time.ParseInLocation("2006-01-02", since, loc)
		if err != nil {
			respond.Error(w, http.StatusBadRequest, "since must be a date (YYYY-MM-DD).")
			return
		}
		filter.Since = &t
	}

	resp := listResponse{Enabled: h.Store != nil, Timezone: loc.String(), Items: []listItem{}}
	if h.Store == nil {
		respond.JSON(w, http.StatusOK, resp)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "audit log list")
	defer cancel()

	events, err := h.Store.Query(ctx, filter)
	if err != nil {
		h.Log.Error("failed to query audit events", zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "A database error occurred.")
		return
	}

	for _, e := range events {
		resp.Items = append(resp.Items, listItem{
			ID:            e.ID.Hex(),
			Timestamp:     e.Timestamp.In(loc).Format(time.RFC3339),
			Category:      e.Category,
			EventType:     e.EventType,
			IP:            e.IP,
			Success:       e.Success,
			FailureReason: e.FailureReason,
			Details:       e.Details,
		})
	}
	respond.JSON(w, http.StatusOK, resp)
}
