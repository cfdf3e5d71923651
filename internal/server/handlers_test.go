package server

import (
	"bytes"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ketutoka/printlabel/internal/label"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServer_Errors(t *testing.T) {
	_, err := NewServer(Config{OutputDir: t.TempDir()})
	assert.Error(t, err)

	_, err = NewServer(Config{NewRenderer: func() Renderer { return nil }})
	assert.Error(t, err)
}

func TestHealthHandler(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	tests := []struct {
		name           string
		method         string
		expectedStatus int
	}{
		{name: "GET request success", method: http.MethodGet, expectedStatus: http.StatusOK},
		{name: "POST request not allowed", method: http.MethodPost, expectedStatus: http.StatusMethodNotAllowed},
		{name: "PUT request not allowed", method: http.MethodPut, expectedStatus: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, h, tt.method, "/health", nil)
			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			if tt.expectedStatus == http.StatusOK {
				var resp HealthResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.Equal(t, "healthy", resp.Status)
				assert.Equal(t, "test", resp.Version)
				assert.NotEmpty(t, resp.Time)
			}
		})
	}
}

func TestProfilesHandler(t *testing.T) {
	s, _ := newTestServer(t)
	w := doRequest(t, s.Handler(), http.MethodGet, "/profiles", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp ProfilesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Profiles, 2)
	assert.Equal(t, "narrow", resp.Profiles[0].Name)
	assert.Equal(t, 203, resp.Profiles[0].CanvasWidth)
	assert.Equal(t, "wide", resp.Profiles[1].Name)
	assert.Equal(t, 280, resp.Profiles[1].CanvasWidth)
	assert.Contains(t, resp.Aliases, "58mm")
	assert.Contains(t, resp.Aliases, "80mm")
}

func TestRenderHandler_Success(t *testing.T) {
	s, dir := newTestServer(t)
	req := sampleRequest
	req.ID = "42"

	w := doRequest(t, s.Handler(), http.MethodPost, "/labels/render", jsonBody(t, req))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp RenderResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.NotNil(t, resp.Label)

	assert.Equal(t, "42", resp.Label.ID)
	assert.Equal(t, "shipping_label_narrow_42_ABC123.png", resp.Label.File)
	assert.Equal(t, "/labels/shipping_label_narrow_42_ABC123.png", resp.Label.URL)
	assert.Equal(t, "narrow", resp.Label.Profile)
	assert.Equal(t, "png", resp.Label.Format)
	assert.Equal(t, 203, resp.Label.Width)
	assert.LessOrEqual(t, resp.Label.Height, 400)
	assert.FileExists(t, filepath.Join(dir, resp.Label.File))
}

func TestRenderHandler_Errors(t *testing.T) {
	s, _ := newTestServer(t, func(c *Config) { c.MaxBodyKB = 1 })
	h := s.Handler()

	tests := []struct {
		name           string
		method         string
		body           string
		expectedStatus int
		errorContains  string
	}{
		{
			name:           "wrong method",
			method:         http.MethodGet,
			expectedStatus: http.StatusMethodNotAllowed,
		},
		{
			name:           "malformed JSON",
			method:         http.MethodPost,
			body:           `{"sender_name":`,
			expectedStatus: http.StatusBadRequest,
			errorContains:  "invalid JSON",
		},
		{
			name:           "unknown field",
			method:         http.MethodPost,
			body:           `{"sender_name":"A","sender_phone":"1","colour":"red"}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "missing sender phone",
			method:         http.MethodPost,
			body:           `{"sender_name":"A"}`,
			expectedStatus: http.StatusBadRequest,
			errorContains:  "sender_phone",
		},
		{
			name:           "unsupported format",
			method:         http.MethodPost,
			body:           `{"sender_name":"A","sender_phone":"1","format":"gif"}`,
			expectedStatus: http.StatusBadRequest,
			errorContains:  "format",
		},
		{
			name:           "body too large",
			method:         http.MethodPost,
			body:           `{"sender_name":"` + strings.Repeat("a", 2048) + `","sender_phone":"1"}`,
			expectedStatus: http.StatusRequestEntityTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, h, tt.method, "/labels/render", strings.NewReader(tt.body))
			assert.Equal(t, tt.expectedStatus, w.Code, w.Body.String())

			var resp RenderResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			assert.NotEmpty(t, resp.Error)
			if tt.errorContains != "" {
				assert.Contains(t, resp.Error, tt.errorContains)
			}
		})
	}
}

func TestRenderHandler_CodeTooLong(t *testing.T) {
	s, _ := newTestServer(t)
	req := sampleRequest
	req.ShippingCode = strings.Repeat("z", 4000)

	w := doRequest(t, s.Handler(), http.MethodPost, "/labels/render", jsonBody(t, req))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
}

func TestPreviewHandler(t *testing.T) {
	s, dir := newTestServer(t)
	h := s.Handler()

	w := doRequest(t, h, http.MethodPost, "/labels/preview", jsonBody(t, sampleRequest))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, "203", w.Header().Get("X-Label-Width"))
	assert.Equal(t, "narrow", w.Header().Get("X-Label-Profile"))

	img, err := png.Decode(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 203, img.Bounds().Dx())
	height := img.Bounds().Dy()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "preview must not write files")

	w = doRequest(t, h, http.MethodPost, "/labels/preview?scale=2", jsonBody(t, sampleRequest))
	require.Equal(t, http.StatusOK, w.Code)
	img, err = png.Decode(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 406, img.Bounds().Dx())
	assert.Equal(t, 2*height, img.Bounds().Dy())

	w = doRequest(t, h, http.MethodPost, "/labels/preview?scale=9", jsonBody(t, sampleRequest))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, h, http.MethodPost, "/labels/preview", jsonBody(t, label.Request{SenderPhone: "1"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDownloadHandler(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	w := doRequest(t, h, http.MethodPost, "/labels/render", jsonBody(t, sampleRequest))
	require.Equal(t, http.StatusOK, w.Code)
	var resp RenderResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	w = doRequest(t, h, http.MethodGet, resp.Label.URL, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Empty(t, w.Header().Get("Content-Disposition"))
	img, err := png.Decode(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, resp.Label.Height, img.Bounds().Dy())

	w = doRequest(t, h, http.MethodGet, resp.Label.URL+"?download=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), resp.Label.File)
}

func TestDownloadHandler_Rejects(t *testing.T) {
	s, dir := newTestServer(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden"), []byte("x"), 0o600))
	h := s.Handler()

	tests := []struct {
		name           string
		method         string
		path           string
		expectedStatus int
	}{
		{name: "missing file", method: http.MethodGet, path: "/labels/nope.png", expectedStatus: http.StatusNotFound},
		{name: "empty name", method: http.MethodGet, path: "/labels/", expectedStatus: http.StatusBadRequest},
		{name: "hidden file", method: http.MethodGet, path: "/labels/.hidden", expectedStatus: http.StatusBadRequest},
		{name: "wrong method", method: http.MethodDelete, path: "/labels/a.png", expectedStatus: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, h, tt.method, tt.path, nil)
			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

func TestDownloadHandler_Traversal(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/labels/x", nil)
	req.URL.Path = "/labels/../secret"
	w := httptest.NewRecorder()

	s.downloadHandler(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSafeFileName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"shipping_label_narrow_1_ABC.png", true},
		{"label.prn", true},
		{"", false},
		{".env", false},
		{"../x.png", false},
		{"a/b.png", false},
		{`a\b.png`, false},
		{"a..b", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, safeFileName(tt.name))
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	doRequest(t, h, http.MethodGet, "/health", nil)
	w := doRequest(t, h, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "printlabel_http_requests_total")
}
