package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/ketutoka/printlabel/internal/label"
	"github.com/ketutoka/printlabel/internal/layout"
	"github.com/ketutoka/printlabel/internal/qr"
	"github.com/ketutoka/printlabel/internal/sink"
)

const maxPreviewScale = 4

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeErrorResponse(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: s.version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	})
}

// profilesHandler lists the built-in paper profiles.
func (s *Server) profilesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeErrorResponse(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, ProfilesResponse{
		Profiles: layout.Profiles(),
		Aliases:  layout.ProfileNames(),
	})
}

// renderHandler composes a label and writes it to the output directory.
func (s *Server) renderHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeErrorResponse(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	req, ok := s.decodeRequest(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	start := time.Now()
	var rendered *label.RenderedLabel
	err := s.withRenderer(ctx, func(rd Renderer) error {
		var err error
		rendered, err = rd.Compose(ctx, req)
		return err
	})
	renderDuration.WithLabelValues("file").Observe(time.Since(start).Seconds())
	if err != nil {
		labelsRenderedTotal.WithLabelValues("file", "error").Inc()
		s.logger.Warn("render failed", "error", err)
		s.writeErrorResponse(w, err.Error(), statusFor(err))
		return
	}
	labelsRenderedTotal.WithLabelValues("file", "success").Inc()
	labelHeight.WithLabelValues(rendered.Profile).Observe(float64(rendered.Height))

	name := filepath.Base(rendered.FilePath)
	s.writeJSON(w, http.StatusOK, RenderResponse{
		Success: true,
		Label: &LabelInfo{
			ID:      rendered.ID,
			File:    name,
			URL:     "/labels/" + url.PathEscape(name),
			Format:  rendered.Format,
			Profile: rendered.Profile,
			Width:   rendered.Width,
			Height:  rendered.Height,
		},
	})
}

// previewHandler renders a label in memory and returns it as PNG.
func (s *Server) previewHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeErrorResponse(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	scale := 1
	if v := r.URL.Query().Get("scale"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxPreviewScale {
			s.writeErrorResponse(w, "scale must be between 1 and 4", http.StatusBadRequest)
			return
		}
		scale = n
	}
	req, ok := s.decodeRequest(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	data, rendering, err := s.preview(ctx, req, scale)
	if err != nil {
		s.writeErrorResponse(w, err.Error(), statusFor(err))
		return
	}

	b := rendering.Image.Bounds()
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("X-Label-Width", strconv.Itoa(b.Dx()))
	w.Header().Set("X-Label-Height", strconv.Itoa(b.Dy()))
	w.Header().Set("X-Label-Profile", rendering.Profile.Name)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.logger.Error("write preview", "error", err)
	}
}

// preview lays out req on a pooled renderer and encodes the canvas as PNG,
// enlarged by scale.
func (s *Server) preview(ctx context.Context, req label.Request, scale int) ([]byte, *label.Rendering, error) {
	start := time.Now()
	var rendering *label.Rendering
	err := s.withRenderer(ctx, func(rd Renderer) error {
		var err error
		rendering, err = rd.Layout(req)
		return err
	})
	renderDuration.WithLabelValues("preview").Observe(time.Since(start).Seconds())
	if err != nil {
		labelsRenderedTotal.WithLabelValues("preview", "error").Inc()
		return nil, nil, err
	}
	labelsRenderedTotal.WithLabelValues("preview", "success").Inc()

	if scale <= 1 {
		data, err := sink.EncodePNG(rendering.Image)
		return data, rendering, err
	}
	b := rendering.Image.Bounds()
	big := imaging.Resize(rendering.Image, b.Dx()*scale, b.Dy()*scale, imaging.NearestNeighbor)
	data, err := sink.EncodePNG(big)
	return data, rendering, err
}

// downloadHandler serves a previously rendered file from the output
// directory.
func (s *Server) downloadHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		s.writeErrorResponse(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/labels/")
	if !safeFileName(name) {
		s.writeErrorResponse(w, "invalid file name", http.StatusBadRequest)
		return
	}

	path := filepath.Join(s.outputDir, name)
	f, err := os.Open(path) //nolint:gosec // G304: name is a validated base name inside outputDir
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.writeErrorResponse(w, "label not found", http.StatusNotFound)
			return
		}
		s.writeErrorResponse(w, "failed to open label", http.StatusInternalServerError)
		return
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		s.writeErrorResponse(w, "label not found", http.StatusNotFound)
		return
	}

	if format, err := sink.ParseFormat(strings.TrimPrefix(filepath.Ext(name), ".")); err == nil {
		w.Header().Set("Content-Type", format.ContentType())
	}
	if r.URL.Query().Get("download") == "1" {
		w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	}
	http.ServeContent(w, r, name, info.ModTime(), f)
}

// safeFileName accepts plain file names only.
func safeFileName(name string) bool {
	if name == "" || strings.HasPrefix(name, ".") || strings.Contains(name, "..") {
		return false
	}
	if strings.ContainsAny(name, `/\`) || filepath.Base(name) != name {
		return false
	}
	return true
}

// decodeRequest reads a JSON label request with the body size limit applied.
func (s *Server) decodeRequest(w http.ResponseWriter, r *http.Request) (label.Request, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
	var req label.Request
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			s.writeErrorResponse(w, "request body too large", http.StatusRequestEntityTooLarge)
			return req, false
		}
		s.writeErrorResponse(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
		return req, false
	}
	return req, true
}

// withRenderer runs fn on a pooled renderer.
func (s *Server) withRenderer(ctx context.Context, fn func(Renderer) error) error {
	rd, err := s.pool.acquire(ctx)
	if err != nil {
		return err
	}
	defer s.pool.release(rd)
	return fn(rd)
}

// statusFor maps render errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, label.ErrInvalidRequest), errors.Is(err, sink.ErrUnsupportedFormat):
		return http.StatusBadRequest
	case errors.Is(err, qr.ErrCapacity), errors.Is(err, qr.ErrEmptyPayload):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

// writeErrorResponse writes a JSON error body.
func (s *Server) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	s.writeJSON(w, statusCode, RenderResponse{Success: false, Error: message})
}
