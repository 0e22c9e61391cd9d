package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/valpere/bilingua/internal/translator"
)

type mockService struct {
	translateFunc func(ctx context.Context, req translator.Request) (*translator.Response, error)
	availableErr  error
	callCount     atomic.Int32
	lastLang      atomic.Value
}

func (m *mockService) Name() string { return "mock" }

func (m *mockService) Translate(ctx context.Context, req translator.Request) (*translator.Response, error) {
	m.callCount.Add(1)
	m.lastLang.Store(req.TargetLang)
	if m.translateFunc != nil {
		return m.translateFunc(ctx, req)
	}
	out := make([]string, len(req.Segments))
	for i, s := range req.Segments {
		out[i] = "译:" + s
	}
	return &translator.Response{Translations: out}, nil
}

func (m *mockService) IsAvailable(ctx context.Context) error { return m.availableErr }

func newTestServer(svc translator.Service) *httptest.Server {
	return httptest.NewServer(New(svc, Config{TargetLang: "zh-CN"}, nil).Handler())
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url+translator.TranslatePath, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestServer_Translate(t *testing.T) {
	svc := &mockService{}
	ts := newTestServer(svc)
	defer ts.Close()

	resp := post(t, ts.URL, `{"url":"https://example.com","segments":["a","b","c"]}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var out translator.Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	want := []string{"译:a", "译:b", "译:c"}
	if len(out.Translations) != 3 {
		t.Fatalf("expected 3 translations, got %v", out.Translations)
	}
	for i := range want {
		if out.Translations[i] != want[i] {
			t.Errorf("position %d: got %q, want %q", i, out.Translations[i], want[i])
		}
	}
	if lang, _ := svc.lastLang.Load().(string); lang != "zh-CN" {
		t.Errorf("expected default target language, got %q", lang)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
}

func TestServer_EmptySegments(t *testing.T) {
	svc := &mockService{}
	ts := newTestServer(svc)
	defer ts.Close()

	resp := post(t, ts.URL, `{"url":"https://example.com","segments":[]}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		t.Fatal(err)
	}
	if string(raw["translations"]) != "[]" {
		t.Errorf("expected empty array, got %s", raw["translations"])
	}
	if svc.callCount.Load() != 0 {
		t.Error("backend must not be called for an empty batch")
	}
}

func TestServer_BadJSON(t *testing.T) {
	ts := newTestServer(&mockService{})
	defer ts.Close()

	resp := post(t, ts.URL, `{"segments":`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestServer_UpstreamErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"rate limited", &translator.StatusError{Code: 429}, http.StatusTooManyRequests},
		{"server error", &translator.StatusError{Code: 502}, http.StatusInternalServerError},
		{"protocol", &translator.ProtocolError{Reason: "got 1 translations for 2 segments"}, http.StatusInternalServerError},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockService{translateFunc: func(context.Context, translator.Request) (*translator.Response, error) {
				return nil, tt.err
			}}
			ts := newTestServer(svc)
			defer ts.Close()

			resp := post(t, ts.URL, `{"segments":["a","b"]}`)
			if resp.StatusCode != tt.want {
				t.Errorf("expected %d, got %d", tt.want, resp.StatusCode)
			}
			var body map[string]string
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			if body["error"] == "" {
				t.Error("expected error message in body")
			}
		})
	}
}

func TestServer_Preflight(t *testing.T) {
	ts := newTestServer(&mockService{})
	defer ts.Close()

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+translator.TranslatePath, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("expected 204, got %d", resp.StatusCode)
	}
	if !strings.Contains(resp.Header.Get("Access-Control-Allow-Methods"), "POST") {
		t.Error("preflight should allow POST")
	}
}

func TestServer_Health(t *testing.T) {
	svc := &mockService{}
	ts := newTestServer(svc)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}

	down := newTestServer(&mockService{availableErr: errors.New("no api key")})
	defer down.Close()
	resp, err = http.Get(down.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", resp.StatusCode)
	}
}

func TestServer_Metrics(t *testing.T) {
	ts := newTestServer(&mockService{})
	defer ts.Close()

	post(t, ts.URL, `{"segments":["a"]}`)
	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(body), "bilingua_server_requests_total") {
		t.Error("metrics endpoint should expose server counters")
	}
}
