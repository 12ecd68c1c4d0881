// internal/app/features/transcript/handler.go
package transcript

import (
	"errors"
	"io"
	"net/http"

	"github.com/dalemusser/bisontutor/internal/app/client/tutorapi"
	uierrors "github.com/dalemusser/bisontutor/internal/app/features/errors"
	"github.com/dalemusser/bisontutor/internal/app/system/auth"
	"github.com/dalemusser/bisontutor/internal/app/system/authsession"
	"github.com/dalemusser/bisontutor/internal/app/system/respond"
	"github.com/dalemusser/bisontutor/internal/domain/models"
	"go.uber.org/zap"
)

// uploadOverhead leaves room for multipart framing around the file.
const uploadOverhead = 64 << 10

// Handler serves the tutor's transcript upload and verification.
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

// HandleUpload accepts a multipart form with the file in field "file".
// The file is checked for size and type here, before it is forwarded.
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	cl, ok := h.caller(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, tutorapi.MaxTranscriptSize+uploadOverhead)
	file, header, err := r.FormFile("file")
	if err != nil {
		var mbe *http.MaxBytesError
		switch {
		case errors.As(err, &mbe):
			h.ErrLog.Write(w, r, tutorapi.ErrTranscriptTooLarge)
		case errors.Is(err, http.ErrMissingFile):
			respond.Error(w, http.StatusBadRequest, "Please choose a file to upload.")
		default:
			respond.Error(w, http.StatusBadRequest, "upload must be multipart/form-data with a file field")
		}
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, tutorapi.MaxTranscriptSize+1))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "could not read the uploaded file")
		return
	}

	res, err := cl.UploadTranscript(r.Context(), tutorapi.Transcript{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	h.Log.Info("transcript uploaded",
		zap.String("client_id", auth.ClientIDFrom(r)),
		zap.Int("bytes", len(data)))
	respond.JSON(w, http.StatusOK, res)
}

// HandleVerify asks the service to verify the uploaded transcript.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	cl, ok := h.caller(w, r)
	if !ok {
		return
	}
	res, err := cl.VerifyTranscript(r.Context())
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, res)
}

// ServeStatus returns the current transcript state. A failed lookup
// reports an empty status rather than an error.
func (h *Handler) ServeStatus(w http.ResponseWriter, r *http.Request) {
	cl, ok := h.caller(w, r)
	if !ok {
		return
	}
	res, err := cl.TranscriptStatus(r.Context())
	if err != nil {
		// The status panel treats a failed lookup as "no transcript yet".
		h.Log.Warn("transcript status lookup failed", zap.Error(err))
		res = &models.TranscriptStatus{}
	}
	respond.JSON(w, http.StatusOK, res)
}
