// internal/app/client/tutorapi/transcripts.go
package tutorapi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/dalemusser/bisontutor/internal/domain/models"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// MaxTranscriptSize is the largest transcript the service accepts.
const MaxTranscriptSize = 10 << 20

var (
	ErrTranscriptEmpty    = errors.New("transcript file is empty")
	ErrTranscriptTooLarge = errors.New("file too large. Maximum size: 10MB")
	ErrTranscriptType     = errors.New("invalid file type. Allowed types: PDF, PNG, JPG")
)

// allowedTranscriptTypes maps accepted declared types to the detected
// type they must match and the extension used for the upload name.
var allowedTranscriptTypes = map[string]struct{ detected, ext string }{
	"application/pdf": {"application/pdf", ".pdf"},
	"image/png":       {"image/png", ".png"},
	"image/jpeg":      {"image/jpeg", ".jpg"},
	"image/jpg":       {"image/jpeg", ".jpg"},
}

// Transcript is a file to upload.
type Transcript struct {
	Filename    string
	ContentType string
	Data        []byte
}

// CheckTranscript validates a file before any network call: it must be
// non-empty, at most MaxTranscriptSize, declared as PDF/PNG/JPEG, and its
// content must match the declared type. It returns the canonical type.
func CheckTranscript(t Transcript) (string, error) {
	if len(t.Data) == 0 {
		return "", ErrTranscriptEmpty
	}
	if len(t.Data) > MaxTranscriptSize {
		return "", ErrTranscriptTooLarge
	}
	declared := strings.ToLower(strings.TrimSpace(t.ContentType))
	if i := strings.IndexByte(declared, ';'); i >= 0 {
		declared = strings.TrimSpace(declared[:i])
	}
	want, ok := allowedTranscriptTypes[declared]
	if !ok {
		return "", ErrTranscriptType
	}
	if !mimetype.Detect(t.Data).Is(want.detected) {
		return "", fmt.Errorf("%w: content does not look like %s", ErrTranscriptType, want.detected)
	}
	return want.detected, nil
}

// UploadTranscript sends the file as multipart field "file".
func (cl *Caller) UploadTranscript(ctx context.Context, t Transcript) (*models.TranscriptUploadResult, error) {
	ct, err := CheckTranscript(t)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	name := "transcript-" + uuid.NewString() + allowedTranscriptTypes[ct].ext
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, name))
	h.Set("Content-Type", ct)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(t.Data); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	var out models.TranscriptUploadResult
	err = cl.do(ctx, request{
		endpoint:    "transcript_upload",
		method:      http.MethodPost,
		path:        "/tutors/transcript/upload",
		rawBody:     buf.Bytes(),
		contentType: mw.FormDataContentType(),
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyTranscript asks the service to verify the uploaded transcript.
func (cl *Caller) VerifyTranscript(ctx context.Context) (*models.TranscriptVerifyResult, error) {
	var out models.TranscriptVerifyResult
	if err := cl.do(ctx, request{
		endpoint: "transcript_verify",
		method:   http.MethodPost,
		path:     "/tutors/transcript/verify",
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// TranscriptStatus returns the caller's transcript state.
func (cl *Caller) TranscriptStatus(ctx context.Context) (*models.TranscriptStatus, error) {
	var out models.TranscriptStatus
	if err := cl.do(ctx, request{
		endpoint: "transcript_status",
		method:   http.MethodGet,
		path:     "/tutors/transcript/status",
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
