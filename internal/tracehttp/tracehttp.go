// Copyright 2019 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tracehttp

import (
	"net/http"
	"net/http/httputil"
	"regexp"

	"github.com/charmbracelet/log"
)

// traceTransport is an http.RoundTripper that logs the request and
// response at debug level while delegating the real work to another
// http.RoundTripper. Credentials are redacted from the dumps.
type traceTransport struct {
	delegate http.RoundTripper
	logger   *log.Logger
}

var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?im)^(Authorization:\s*)(.+)$`),
	regexp.MustCompile(`(?im)^(X-Api-Key:\s*)(.+)$`),
	regexp.MustCompile(`(?im)^(X-Goog-Api-Key:\s*)(.+)$`),
	regexp.MustCompile(`([?&]key=)([^&\s]+)`),
}

// Redact masks credential-bearing headers and query parameters in a dump.
func Redact(dump []byte) []byte {
	for _, re := range secretPatterns {
		dump = re.ReplaceAll(dump, []byte("${1}[REDACTED]"))
	}
	return dump
}

// RoundTrip logs a dump of the request and response while delegating the
// round trip to the delegate.
func (t *traceTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if dump, err := httputil.DumpRequestOut(req, true); err == nil {
		t.logger.Debug("http request", "dump", string(Redact(dump)))
	}

	resp, err := t.delegate.RoundTrip(req)
	if err != nil {
		t.logger.Debug("http transport error", "url", redactURL(req), "err", string(Redact([]byte(err.Error()))))
		return resp, err
	}

	if dump, dumpErr := httputil.DumpResponse(resp, true); dumpErr == nil {
		t.logger.Debug("http response", "status", resp.StatusCode, "dump", string(dump))
	}
	return resp, nil
}

func redactURL(req *http.Request) string {
	return string(Redact([]byte(req.URL.String())))
}

// Wrap returns a RoundTripper that traces through logger. A nil delegate
// uses http.DefaultTransport.
func Wrap(d http.RoundTripper, logger *log.Logger) http.RoundTripper {
	if d == nil {
		d = http.DefaultTransport
	}
	if logger == nil {
		logger = log.Default()
	}
	return &traceTransport{delegate: d, logger: logger}
}
