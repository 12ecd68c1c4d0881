// internal/app/features/tutors/handler.go
package tutors

import (
	"net/http"
	"strconv"

	"github.com/dalemusser/bisontutor/internal/app/client/tutorapi"
	uierrors "github.com/dalemusser/bisontutor/internal/app/features/errors"
	"github.com/dalemusser/bisontutor/internal/app/system/auth"
	"github.com/dalemusser/bisontutor/internal/app/system/authsession"
	"github.com/dalemusser/bisontutor/internal/app/system/normalize"
	"github.com/dalemusser/bisontutor/internal/app/system/respond"
	"github.com/dalemusser/bisontutor/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Handler serves tutor search and tutor detail.
type Handler struct {
	API    *tutorapi.Client
	Log    *zap.Logger
	ErrLog *uierrors.ErrorLogger
}

func NewHandler(api *tutorapi.Client, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{API: api, Log: logger, ErrLog: errLog}
}

func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (*tutorapi.Caller, bool) {
	m, ok := auth.Client(r)
	if !ok {
		respond.Error(w, http.StatusUnauthorized, authsession.ErrNotAuthenticated.Error())
		return nil, false
	}
	return h.API.As(m.Tokens()), true
}

// ServeSearch handles GET /tutors/search?subject=&availability=&verified_only=.
func (h *Handler) ServeSearch(w http.ResponseWriter, r *http.Request) {
	cl, ok := h.caller(w, r)
	if !ok {
		return
	}

	s := models.TutorSearch{
		Subject:      normalize.QueryParam(query.Get(r, "subject")),
		Availability: normalize.QueryParam(query.Get(r, "availability")),
	}
	if v := query.Get(r, "verified_only"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			respond.Error(w, http.StatusBadRequest, "verified_only must be true or false")
			return
		}
		s.VerifiedOnly = b
	}

	list, err := cl.SearchTutors(r.Context(), s)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, list)
}

// ServeTutor handles GET /tutors/{id}.
func (h *Handler) ServeTutor(w http.ResponseWriter, r *http.Request) {
	cl, ok := h.caller(w, r)
	if !ok {
		return
	}
	t, err := cl.GetTutor(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, t)
}
