// internal/domain/models/transcript.go
package models

import "encoding/json"

// TranscriptUploadResult is returned after a transcript file is stored.
type TranscriptUploadResult struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	FilePath string `json:"file_path"`
	Status   string `json:"status"`
}

// TranscriptVerifyResult is returned after verification runs.
type TranscriptVerifyResult struct {
	Success          bool            `json:"success"`
	Status           string          `json:"status"`
	VerificationData json.RawMessage `json:"verification_data"`
}

// TranscriptStatus describes the tutor's current transcript.
type TranscriptStatus struct {
	HasTranscript    bool            `json:"has_transcript"`
	Status           *string         `json:"status"`
	VerifiedAt       *string         `json:"verified_at"`
	VerificationData json.RawMessage `json:"verification_data"`
}
