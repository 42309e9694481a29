package receipt

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"sort"
	"strings"
)

// maxUploadSize caps uploads at 50MB to accommodate high-resolution phone
// photos.
const maxUploadSize = int64(50 << 20)

// allowedContentTypes is the upload allowlist. A disallowed type is a
// malformed request and is rejected with a transport error before the scan
// pipeline runs; it never becomes a Failure outcome.
var allowedContentTypes = map[string]bool{
	"image/jpeg":      true,
	"image/jpg":       true,
	"image/png":       true,
	"image/webp":      true,
	"image/heic":      true,
	"image/heif":      true,
	"application/pdf": true,
}

// setCORSHeaders sets the process-wide CORS policy on a response.
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// corsError writes a plain error response with CORS headers set.
func corsError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	http.Error(w, message, code)
}

// jsonError writes a JSON error body with CORS headers set.
func jsonError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// writeJSON writes a JSON response body.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleServiceInfo reports what this service is and which engine backs it.
func (s *Server) handleServiceInfo(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "receipt-ocr",
		"status":  "running",
		"engine":  s.service.EngineName(),
		"version": s.version,
	})
}

// handleHealth reports whether the recognition engine binding is reachable.
// The response is always 200; readiness is carried in the body so scan
// failures and probe failures stay distinguishable.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	if err := s.service.CheckEngine(r.Context()); err != nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "unhealthy",
			"engine": s.service.EngineName(),
			"ready":  false,
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "healthy",
		"engine": s.service.EngineName(),
		"ready":  true,
	})
}

// handleScan accepts a multipart image upload and runs the scan pipeline.
// Pipeline failures are reported as success=false payloads with HTTP 200;
// transport errors are reserved for malformed requests.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		msg := "Error parsing form"
		if err.Error() == "http: request body too large" {
			msg = fmt.Sprintf("File is too large. Maximum size is %dMB.", maxUploadSize>>20)
		}
		jsonError(w, msg, http.StatusBadRequest)
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "No file provided", http.StatusBadRequest)
		return
	}
	defer f.Close()

	if header.Size > maxUploadSize {
		jsonError(w, fmt.Sprintf("File is too large. Maximum size is %dMB.", maxUploadSize>>20), http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		jsonError(w, "Error reading file", http.StatusInternalServerError)
		return
	}

	contentType := uploadContentType(header.Header.Get("Content-Type"), header.Filename)
	if !allowedContentTypes[contentType] {
		jsonError(w, fmt.Sprintf("Invalid file type %q. Allowed: %s", contentType, allowedTypesList()), http.StatusBadRequest)
		return
	}

	outcome := s.service.Scan(r.Context(), header.Filename, data, contentType)
	setCORSHeaders(w)
	writeJSON(w, http.StatusOK, outcome)
}

// handleScanBase64 accepts {"image": "<base64>"} and runs the scan pipeline;
// the payload format is sniffed from the decoded bytes. Useful for mobile
// clients that cannot build multipart bodies.
func (s *Server) handleScanBase64(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Image string `json:"image"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Image == "" {
		jsonError(w, "Missing image field", http.StatusBadRequest)
		return
	}

	data, err := base64.StdEncoding.DecodeString(req.Image)
	if err != nil {
		jsonError(w, "Invalid base64 image data", http.StatusBadRequest)
		return
	}
	if int64(len(data)) > maxUploadSize {
		jsonError(w, fmt.Sprintf("Image is too large. Maximum size is %dMB.", maxUploadSize>>20), http.StatusBadRequest)
		return
	}

	contentType := http.DetectContentType(data)
	outcome := s.service.Scan(r.Context(), "upload", data, contentType)
	setCORSHeaders(w)
	writeJSON(w, http.StatusOK, outcome)
}

// handleListScans returns the stored scan history.
func (s *Server) handleListScans(w http.ResponseWriter, r *http.Request) {
	scans, err := s.service.ListScans()
	if err != nil {
		slog.Error("Error listing scans", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if scans == nil {
		scans = []*Scan{}
	}
	writeJSON(w, http.StatusOK, scans)
}

// handleGetScan returns a single stored scan.
func (s *Server) handleGetScan(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Scan ID required", http.StatusBadRequest)
		return
	}
	scan, err := s.service.GetScan(id)
	if err != nil {
		corsError(w, "Scan not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, scan)
}

// handleGetScanFile returns the originally uploaded image for a stored scan.
func (s *Server) handleGetScanFile(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Scan ID required", http.StatusBadRequest)
		return
	}
	data, contentType, err := s.service.GetScanFile(id)
	if err != nil {
		corsError(w, "File not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// handleDeleteScan deletes a stored scan and its file.
func (s *Server) handleDeleteScan(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Scan ID required", http.StatusBadRequest)
		return
	}
	if err := s.service.DeleteScan(id); err != nil {
		corsError(w, "Error deleting scan", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// uploadContentType normalizes the declared content type, falling back to
// the filename extension when the client sent none. Generic octet-stream
// declarations count as none; multipart writers default to it.
func uploadContentType(declared, filename string) string {
	contentType := strings.ToLower(strings.TrimSpace(declared))
	if contentType != "" && contentType != "application/octet-stream" {
		return contentType
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	default:
		return "application/octet-stream"
	}
}

// allowedTypesList renders the allowlist for error messages.
func allowedTypesList() string {
	types := make([]string, 0, len(allowedContentTypes))
	for t := range allowedContentTypes {
		types = append(types, t)
	}
	sort.Strings(types)
	return strings.Join(types, ", ")
}
