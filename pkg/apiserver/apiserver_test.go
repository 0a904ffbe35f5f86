package apiserver

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crowdsecurity/go-cs-lib/ptr"

	"github.com/crowdsecurity/sqlitrace/pkg/metrics"
	"github.com/crowdsecurity/sqlitrace/pkg/report"
	"github.com/crowdsecurity/sqlitrace/pkg/sqlisig"
	"github.com/crowdsecurity/sqlitrace/pkg/stconfig"
)

const captureCSV = `Time,Source,Info
10:00:01,192.168.1.10,GET /index.html HTTP/1.1
10:00:03,192.168.1.66,GET /login.php?user=admin' OR '1'='1 HTTP/1.1
10:00:02,192.168.1.66,GET /item.php?id=1 UNION SELECT user FROM users HTTP/1.1
10:00:04,192.168.1.10,GET /item.php?id=2;-- HTTP/1.1
`

func NewAPITest(t *testing.T, cfg *stconfig.Config) *APIServer {
	t.Helper()

	gin.SetMode(gin.TestMode)

	if cfg == nil {
		cfg = stconfig.NewDefaultConfig()
	}

	s, err := NewServer(cfg, sqlisig.MustNew())
	require.NoError(t, err)

	t.Cleanup(s.Close)

	return s
}

// multipartBody builds an upload form. An empty field name sends a form
// without any file part.
func multipartBody(t *testing.T, field string, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)

	if field != "" {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
		h.Set("Content-Type", "application/octet-stream")

		part, err := w.CreatePart(h)
		require.NoError(t, err)

		_, err = part.Write(content)
		require.NoError(t, err)
	} else {
		require.NoError(t, w.WriteField("comment", "nothing to see"))
	}

	require.NoError(t, w.Close())

	return body, w.FormDataContentType()
}

func upload(t *testing.T, s *APIServer, url string, field string, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()

	body, contentType := multipartBody(t, field, filename, content)

	req, err := http.NewRequestWithContext(t.Context(), http.MethodPost, url, body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", contentType)

	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	return w
}

func gzipped(t *testing.T, content []byte) []byte {
	t.Helper()

	buf := bytes.Buffer{}
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write(content)
	require.NoError(t, err)
	require.NoError(t, gz.Close())

	return buf.Bytes()
}

func TestAnalyze(t *testing.T) {
	s := NewAPITest(t, nil)

	jsonl := []byte(`{"Time": "2", "Source": "10.0.0.7", "Info": "1 AND sleep(5)"}
{"Time": "1", "Source": "10.0.0.7", "Info": "1; WAITFOR DELAY '0:0:5'"}
`)

	tests := []struct {
		name     string
		url      string
		filename string
		content  []byte
		expected report.View
	}{
		{
			name:     "csv",
			url:      "/v1/analyze",
			filename: "capture.csv",
			content:  []byte(captureCSV),
			expected: report.View{
				AttackerID:   "192.168.1.66",
				AttemptCount: 2,
				FirstPayload: "GET /item.php?id=1 UNION SELECT user FROM users HTTP/1.1",
				LastPayload:  "GET /login.php?user=admin' OR '1'='1 HTTP/1.1",
			},
		},
		{
			name:     "gzipped csv",
			url:      "/v1/analyze",
			filename: "capture.csv.gz",
			content:  gzipped(t, []byte(captureCSV)),
			expected: report.View{
				AttackerID:   "192.168.1.66",
				AttemptCount: 2,
				FirstPayload: "GET /item.php?id=1 UNION SELECT user FROM users HTTP/1.1",
				LastPayload:  "GET /login.php?user=admin' OR '1'='1 HTTP/1.1",
			},
		},
		{
			name:     "explicit format",
			url:      "/v1/analyze?format=jsonl",
			filename: "capture.txt",
			content:  jsonl,
			expected: report.View{
				AttackerID:           "10.0.0.7",
				AttemptCount:         2,
				FirstPayload:         "1; WAITFOR DELAY '0:0:5'",
				LastPayload:          "1 AND sleep(5)",
				FormattedSymbolCount: 1,
			},
		},
		{
			name:     "nothing suspicious",
			url:      "/v1/analyze",
			filename: "capture.csv",
			content:  []byte("Time,Source,Info\n1,a,GET /\n"),
			expected: report.View{
				AttackerID:   report.NullSentinel,
				FirstPayload: report.NullSentinel,
				LastPayload:  report.NullSentinel,
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := upload(t, s, tc.url, uploadField, tc.filename, tc.content)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())

			var got report.View
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestAnalyzeRejects(t *testing.T) {
	cfg := stconfig.NewDefaultConfig()
	cfg.API.MaxUploadSize = 512
	s := NewAPITest(t, cfg)

	tests := []struct {
		name       string
		url        string
		field      string
		filename   string
		content    []byte
		expectCode int
		expectMsg  string
	}{
		{
			name:       "no file part",
			url:        "/v1/analyze",
			expectCode: http.StatusBadRequest,
			expectMsg:  `no \"file\" file in the request`,
		},
		{
			name:       "wrong field",
			url:        "/v1/analyze",
			field:      "upload",
			filename:   "capture.csv",
			content:    []byte(captureCSV),
			expectCode: http.StatusBadRequest,
			expectMsg:  `no \"file\" file in the request`,
		},
		{
			name:       "empty file name",
			url:        "/v1/analyze",
			field:      uploadField,
			filename:   "",
			content:    []byte(captureCSV),
			expectCode: http.StatusBadRequest,
			expectMsg:  `no \"file\" file in the request`,
		},
		{
			name:       "unknown extension",
			url:        "/v1/analyze",
			field:      uploadField,
			filename:   "capture.pcap",
			content:    []byte(captureCSV),
			expectCode: http.StatusBadRequest,
			expectMsg:  "unable to guess format",
		},
		{
			name:       "unknown format",
			url:        "/v1/analyze?format=xml",
			field:      uploadField,
			filename:   "capture.csv",
			content:    []byte(captureCSV),
			expectCode: http.StatusBadRequest,
			expectMsg:  "unknown format 'xml'",
		},
		{
			name:       "malformed content",
			url:        "/v1/analyze",
			field:      uploadField,
			filename:   "capture.json",
			content:    []byte(`{"Time": "1"}`),
			expectCode: http.StatusBadRequest,
			expectMsg:  "while loading capture.json: unable to parse json",
		},
		{
			name:       "too large",
			url:        "/v1/analyze",
			field:      uploadField,
			filename:   "capture.csv",
			content:    bytes.Repeat([]byte("1,a,b\n"), 200),
			expectCode: http.StatusRequestEntityTooLarge,
			expectMsg:  "upload exceeds 512 bytes",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := upload(t, s, tc.url, tc.field, tc.filename, tc.content)
			assert.Equal(t, tc.expectCode, w.Code)
			assert.Contains(t, w.Body.String(), tc.expectMsg)
		})
	}
}

func TestUnknownPath(t *testing.T) {
	s := NewAPITest(t, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequestWithContext(t.Context(), http.MethodGet, "/test", nil)
	s.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"message":"Page or Method not found"}`, w.Body.String())
}

func TestHealth(t *testing.T) {
	s := NewAPITest(t, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequestWithContext(t.Context(), http.MethodGet, "/health", nil)
	s.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"up"`)
}

func TestMetrics(t *testing.T) {
	s := NewAPITest(t, nil)

	w := upload(t, s, "/v1/analyze", uploadField, "capture.csv", []byte(captureCSV))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req, _ := http.NewRequestWithContext(t.Context(), http.MethodGet, "/metrics", nil)
	s.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `sqlitrace_analyses_total{origin="api"}`)
	assert.Contains(t, w.Body.String(), "sqlitrace_info")

	cfg := stconfig.NewDefaultConfig()
	cfg.API.EnableMetrics = ptr.Of(false)
	s = NewAPITest(t, cfg)

	w = httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGzipResponse(t *testing.T) {
	s := NewAPITest(t, nil)

	body, contentType := multipartBody(t, uploadField, "capture.csv", []byte(captureCSV))

	req, _ := http.NewRequestWithContext(t.Context(), http.MethodPost, "/v1/analyze", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept-Encoding", "gzip")

	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))

	gz, err := gzip.NewReader(w.Body)
	require.NoError(t, err)

	plain, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.Contains(t, string(plain), `"attacker_id":"192.168.1.66"`)
}

func TestRunStopsWithContext(t *testing.T) {
	cfg := stconfig.NewDefaultConfig()
	cfg.API.ListenURI = "127.0.0.1:0"
	s := NewAPITest(t, cfg)

	ctx, cancel := context.WithCancel(t.Context())
	apiReady := make(chan bool, 1)
	done := make(chan error, 1)

	go func() {
		done <- s.Run(ctx, apiReady)
	}()

	select {
	case <-apiReady:
	case err := <-done:
		t.Fatalf("server exited early: %v", err)
	}

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, "http://"+s.URL+"/health", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestNewServerRequiresCatalog(t *testing.T) {
	_, err := NewServer(stconfig.NewDefaultConfig(), nil)
	require.Error(t, err)
}

func TestResultCache(t *testing.T) {
	s := NewAPITest(t, nil)

	before := testutil.ToFloat64(metrics.Analyses.With(prometheus.Labels{"origin": metrics.OriginAPI}))

	for range 3 {
		w := upload(t, s, "/v1/analyze", uploadField, "capture.csv", []byte(captureCSV))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"attacker_id":"192.168.1.66"`)
	}

	// the same content read with another format is another entry
	w := upload(t, s, "/v1/analyze?format=json", uploadField, "capture.csv", []byte(captureCSV))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.InDelta(t, before+1, testutil.ToFloat64(metrics.Analyses.With(prometheus.Labels{"origin": metrics.OriginAPI})), 0)
	assert.Equal(t, 1, s.results.Len())
}

func TestCacheDisabled(t *testing.T) {
	cfg := stconfig.NewDefaultConfig()
	cfg.API.Cache.Size = 0
	s := NewAPITest(t, cfg)

	assert.Nil(t, s.results)

	w := upload(t, s, "/v1/analyze", uploadField, "capture.csv", []byte(captureCSV))
	require.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimit(t *testing.T) {
	cfg := stconfig.NewDefaultConfig()
	cfg.API.RateLimit = 0.001
	cfg.API.RateBurst = 2
	s := NewAPITest(t, cfg)

	codes := []int{}

	for range 3 {
		w := upload(t, s, "/v1/analyze", uploadField, "capture.csv", []byte(captureCSV))
		codes = append(codes, w.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// only the analysis endpoints are limited
	w := httptest.NewRecorder()
	req, _ := http.NewRequestWithContext(t.Context(), http.MethodGet, "/health", nil)
	s.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequestID(t *testing.T) {
	s := NewAPITest(t, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequestWithContext(t.Context(), http.MethodGet, "/health", nil)
	s.Router().ServeHTTP(w, req)
	assert.Len(t, w.Header().Get(requestIDHeader), 36)

	w = httptest.NewRecorder()
	req.Header.Set(requestIDHeader, "abc")
	s.Router().ServeHTTP(w, req)
	assert.Equal(t, "abc", w.Header().Get(requestIDHeader))
}
