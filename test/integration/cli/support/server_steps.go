package support

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/cucumber/godog"
	"github.com/ketutoka/printlabel/internal/fonts"
	"github.com/ketutoka/printlabel/internal/label"
	"github.com/ketutoka/printlabel/internal/server"
	"github.com/ketutoka/printlabel/internal/sink"
)

// RegisterServerSteps registers steps against an in-process label server.
func (testCtx *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a running label server$`, testCtx.aRunningLabelServer)
	sc.Step(`^a running label server limited to (\d+) requests per minute$`, testCtx.aRunningLimitedLabelServer)
	sc.Step(`^I send a GET request to "([^"]*)"$`, testCtx.iSendAGETRequestTo)
	sc.Step(`^I POST to "([^"]*)" with:$`, testCtx.iPOSTToWith)
	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the response should contain "([^"]*)"$`, testCtx.theResponseShouldContain)
	sc.Step(`^the response JSON field "([^"]*)" should equal "([^"]*)"$`, testCtx.theResponseJSONFieldShouldEqual)
	sc.Step(`^the response header "([^"]*)" should be "([^"]*)"$`, testCtx.theResponseHeaderShouldBe)
}

func (testCtx *TestContext) aRunningLabelServer() error {
	return testCtx.startServer(nil)
}

func (testCtx *TestContext) aRunningLimitedLabelServer(perMinute int) error {
	return testCtx.startServer(server.NewRateLimiter(perMinute, 0, 0))
}

func (testCtx *TestContext) startServer(limiter *server.RateLimiter) error {
	if testCtx.HTTPServer != nil {
		return nil
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	out := sink.New(testCtx.OutputDir, sink.WithLogger(logger))

	var (
		mu        sync.Mutex
		composers []*label.Composer
	)
	srv, err := server.NewServer(server.Config{
		OutputDir: testCtx.OutputDir,
		Composers: 2,
		NewRenderer: func() server.Renderer {
			c := label.NewComposer(label.Options{
				Loader: fonts.NewLoader([]string{}, []string{}),
				Sink:   out,
				Logger: logger,
			})
			mu.Lock()
			composers = append(composers, c)
			mu.Unlock()
			return c
		},
		RateLimiter: limiter,
		Version:     "test",
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	testCtx.HTTPServer = httptest.NewServer(srv.Handler())
	testCtx.cleanupHTTP = func() {
		mu.Lock()
		defer mu.Unlock()
		for _, c := range composers {
			_ = c.Close()
		}
	}
	return nil
}

func (testCtx *TestContext) doHTTP(method, path string, body io.Reader) error {
	if testCtx.HTTPServer == nil {
		return fmt.Errorf("no server running")
	}
	req, err := http.NewRequestWithContext(context.Background(), method, testCtx.HTTPServer.URL+path, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := testCtx.HTTPServer.Client().Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	testCtx.LastHTTPBody, err = io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	testCtx.LastHTTPStatusCode = resp.StatusCode
	testCtx.LastHTTPHeaders = make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		testCtx.LastHTTPHeaders[k] = resp.Header.Get(k)
	}
	return nil
}

func (testCtx *TestContext) iSendAGETRequestTo(path string) error {
	return testCtx.doHTTP(http.MethodGet, testCtx.substituteVariables(path), nil)
}

func (testCtx *TestContext) iPOSTToWith(path string, doc *godog.DocString) error {
	return testCtx.doHTTP(http.MethodPost, path, bytes.NewBufferString(doc.Content))
}

func (testCtx *TestContext) theResponseStatusShouldBe(status int) error {
	if testCtx.LastHTTPStatusCode != status {
		return fmt.Errorf("status %d, expected %d:\n%s", testCtx.LastHTTPStatusCode, status, testCtx.LastHTTPBody)
	}
	return nil
}

func (testCtx *TestContext) theResponseShouldContain(expected string) error {
	if !strings.Contains(string(testCtx.LastHTTPBody), expected) {
		return fmt.Errorf("response does not contain %q:\n%s", expected, testCtx.LastHTTPBody)
	}
	return nil
}

func (testCtx *TestContext) theResponseJSONFieldShouldEqual(field, expected string) error {
	var data map[string]interface{}
	if err := json.Unmarshal(testCtx.LastHTTPBody, &data); err != nil {
		return fmt.Errorf("response is not JSON: %w", err)
	}
	v, ok := lookupField(data, field)
	if !ok {
		return fmt.Errorf("response has no field %q:\n%s", field, testCtx.LastHTTPBody)
	}
	if got := fmt.Sprint(v); got != expected {
		return fmt.Errorf("response field %q is %q, expected %q", field, got, expected)
	}
	return nil
}

func (testCtx *TestContext) theResponseHeaderShouldBe(name, expected string) error {
	if got := testCtx.LastHTTPHeaders[http.CanonicalHeaderKey(name)]; got != expected {
		return fmt.Errorf("header %s is %q, expected %q", name, got, expected)
	}
	return nil
}
