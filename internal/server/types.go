// Package server provides the HTTP surface of the media API.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import (
	"github.com/mediavault/mediavault-api/internal/media"
	"github.com/mediavault/mediavault-api/internal/metadata"
)

// UploadResponse is returned after a successful upload.
type UploadResponse struct {
	Message         string            `json:"message"`
	StoredKey       string            `json:"storedKey"`
	MetadataVersion int64             `json:"metadataVersion"`
	Metadata        media.ProbeResult `json:"metadata"`
}

// PresignResponse carries a time-limited download URL.
type PresignResponse struct {
	URL       string `json:"url"`
	ExpiresIn int64  `json:"expiresIn"`
}

// VersionsResponse lists every metadata version of a file, newest first.
type VersionsResponse struct {
	Filename string            `json:"filename"`
	Versions []metadata.Record `json:"versions"`
}

// RecommendationsResponse lists articles related to a file.
type RecommendationsResponse struct {
	ID    string   `json:"id"`
	Query string   `json:"query"`
	URLs  []string `json:"urls"`
}

// StoreMetadataRequest is the body of POST /api/manage/metadata/store.
type StoreMetadataRequest struct {
	// Filename identifies the file the metadata belongs to.
	Filename string `json:"filename" validate:"required"`
	// Metadata is the probe result to record as a new version.
	Metadata *media.ProbeResult `json:"metadata" validate:"required"`
}

// StoreMetadataResponse reports the version assigned to stored metadata.
type StoreMetadataResponse struct {
	Message  string `json:"message"`
	Filename string `json:"filename"`
	Version  int64  `json:"version"`
}

// RollbackRequest is the body of POST /api/manage/metadata/rollback.
type RollbackRequest struct {
	Filename string `json:"filename" validate:"required"`
}

// RollbackResponse reports which version was restored and the new version.
type RollbackResponse struct {
	Message      string `json:"message"`
	Filename     string `json:"filename"`
	RestoredFrom int64  `json:"restoredFrom"`
	Version      int64  `json:"version"`
}

// BackupRequest is the body of POST /api/manage/file/backup.
type BackupRequest struct {
	Key string `json:"key" validate:"required"`
}

// BackupResponse carries the key the backup was written to.
type BackupResponse struct {
	Message   string `json:"message"`
	Key       string `json:"key"`
	BackupKey string `json:"backupKey"`
}

// RestoreRequest is the body of POST /api/manage/file/restore.
type RestoreRequest struct {
	Key       string `json:"key" validate:"required"`
	BackupKey string `json:"backupKey" validate:"required"`
}

// RestoreResponse confirms a restore.
type RestoreResponse struct {
	Message string `json:"message"`
	Key     string `json:"key"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
