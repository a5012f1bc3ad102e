package tracehttp

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestRedact(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		leaked  string
		present string
	}{
		{
			name:    "bearer header",
			in:      "POST /v1 HTTP/1.1\r\nAuthorization: Bearer sk-secret\r\n",
			leaked:  "sk-secret",
			present: "Authorization: [REDACTED]",
		},
		{
			name:    "api key header",
			in:      "X-Api-Key: sk-ant-123\r\n",
			leaked:  "sk-ant-123",
			present: "X-Api-Key: [REDACTED]",
		},
		{
			name:    "goog api key header",
			in:      "X-Goog-Api-Key: AIzaHDR\r\n",
			leaked:  "AIzaHDR",
			present: "X-Goog-Api-Key: [REDACTED]",
		},
		{
			name:    "query key",
			in:      "POST /v1beta/models/gemini-pro:generateContent?key=AIzaXYZ HTTP/1.1",
			leaked:  "AIzaXYZ",
			present: "?key=[REDACTED]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := string(Redact([]byte(tt.in)))
			if strings.Contains(got, tt.leaked) {
				t.Errorf("Redact() = %q, still contains %q", got, tt.leaked)
			}
			if !strings.Contains(got, tt.present) {
				t.Errorf("Redact() = %q, want it to contain %q", got, tt.present)
			}
		})
	}
}

func TestWrapLogsRedactedTraffic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"ok":true}`)
	}))
	defer srv.Close()

	var buf bytes.Buffer
	logger := log.NewWithOptions(&buf, log.Options{Level: log.DebugLevel})

	client := &http.Client{Transport: Wrap(nil, logger)}
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/x?key=topsecret", strings.NewReader("{}"))
	req.Header.Set("Authorization", "Bearer topsecret")

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if string(body) != `{"ok":true}` {
		t.Errorf("body = %q, response body must survive the dump", body)
	}
	out := buf.String()
	if strings.Contains(out, "topsecret") {
		t.Errorf("log leaked secret: %s", out)
	}
	if !strings.Contains(out, "http response") {
		t.Errorf("log missing response entry: %s", out)
	}
}
