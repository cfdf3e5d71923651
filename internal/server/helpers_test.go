package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ketutoka/printlabel/internal/fonts"
	"github.com/ketutoka/printlabel/internal/label"
	"github.com/ketutoka/printlabel/internal/sink"
	"github.com/stretchr/testify/require"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// newTestServer builds a server whose composers use the embedded Go fonts
// and write into a temporary directory.
func newTestServer(t *testing.T, mutate ...func(*Config)) (*Server, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := Config{
		CORSOrigin: "*",
		OutputDir:  dir,
		Composers:  2,
		Version:    "test",
		Logger:     quietLogger,
		NewRenderer: func() Renderer {
			c := label.NewComposer(label.Options{
				Loader: fonts.NewLoader([]string{}, []string{}),
				Sink:   sink.New(dir, sink.WithLogger(quietLogger)),
				Logger: quietLogger,
			})
			t.Cleanup(func() { _ = c.Close() })
			return c
		},
	}
	for _, m := range mutate {
		m(&cfg)
	}
	s, err := NewServer(cfg)
	require.NoError(t, err)
	return s, dir
}

func jsonBody(t *testing.T, v any) *bytes.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(data)
}

func doRequest(t *testing.T, h http.Handler, method, target string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

var sampleRequest = label.Request{
	SenderName:   "Budi Santoso",
	SenderPhone:  "0811111111",
	ShippingCode: "ABC123",
	PaperProfile: "narrow",
}
