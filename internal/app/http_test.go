package app

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"redline/api/internal/store"
)

func testServer(st *fakeStore) *HTTPServer {
	service := NewService(st, &fakeUploader{}, nil)
	return NewHTTPServer(service, "*")
}

func doRequest(t *testing.T, handler http.Handler, method, path string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return payload
}

func TestHealthEndpoint(t *testing.T) {
	handler := testServer(&fakeStore{}).Handler()
	rec := doRequest(t, handler, http.MethodGet, "/api/health", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	payload := decodeResponse(t, rec)
	if payload["ok"] != true {
		t.Fatalf("payload: %v", payload)
	}
}

func TestReadyEndpointReportsDatabaseFailure(t *testing.T) {
	st := &fakeStore{
		PingFn: func(ctx context.Context) error {
			return sql.ErrConnDone
		},
	}
	handler := testServer(st).Handler()
	rec := doRequest(t, handler, http.MethodGet, "/api/ready", nil, "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestUploadDocument(t *testing.T) {
	st := &fakeStore{
		InsertDocumentFn: func(ctx context.Context, d store.Document) error {
			return nil
		},
	}
	handler := testServer(st).Handler()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "essay.txt")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte("teh essay text")); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := writer.WriteField("title", "My Essay"); err != nil {
		t.Fatalf("write field: %v", err)
	}
	writer.Close()

	rec := doRequest(t, handler, http.MethodPost, "/api/documents", &buf, writer.FormDataContentType())
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	payload := decodeResponse(t, rec)
	doc, ok := payload["document"].(map[string]any)
	if !ok {
		t.Fatalf("payload: %v", payload)
	}
	if doc["title"] != "My Essay" {
		t.Errorf("title = %v", doc["title"])
	}
	if doc["status"] != "pending" {
		t.Errorf("status = %v", doc["status"])
	}
}

func TestUploadWithoutFileField(t *testing.T) {
	handler := testServer(&fakeStore{}).Handler()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	writer.WriteField("title", "no file")
	writer.Close()

	rec := doRequest(t, handler, http.MethodPost, "/api/documents", &buf, writer.FormDataContentType())
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestJobStatusEndpoint(t *testing.T) {
	st := &fakeStore{
		GetDocumentFn: func(ctx context.Context, id string) (store.Document, error) {
			if id != "doc-42" {
				t.Errorf("id = %q", id)
			}
			return store.Document{ID: id, Status: store.StatusInProgress, CancellationRequested: true}, nil
		},
	}
	handler := testServer(st).Handler()

	rec := doRequest(t, handler, http.MethodGet, "/api/documents/doc-42/job", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	payload := decodeResponse(t, rec)
	if payload["status"] != "in-progress" {
		t.Errorf("status = %v", payload["status"])
	}
	if payload["cancellationRequested"] != true {
		t.Errorf("cancellationRequested = %v", payload["cancellationRequested"])
	}
}

func TestJobStatusUnknownDocumentIs404(t *testing.T) {
	st := &fakeStore{
		GetDocumentFn: func(ctx context.Context, id string) (store.Document, error) {
			return store.Document{}, sql.ErrNoRows
		},
	}
	handler := testServer(st).Handler()

	rec := doRequest(t, handler, http.MethodGet, "/api/documents/missing/job", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestRequestCorrectionEndpoint(t *testing.T) {
	st := &fakeStore{
		ResubmitFn: func(ctx context.Context, id string) (bool, error) {
			return true, nil
		},
	}
	handler := testServer(st).Handler()

	rec := doRequest(t, handler, http.MethodPost, "/api/documents/doc-1/corrections", nil, "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestCancelEndpointConflict(t *testing.T) {
	st := &fakeStore{
		RequestCancellationFn: func(ctx context.Context, id string) (bool, error) {
			return false, nil
		},
		GetDocumentFn: func(ctx context.Context, id string) (store.Document, error) {
			return store.Document{ID: id, Status: store.StatusComplete}, nil
		},
	}
	handler := testServer(st).Handler()

	rec := doRequest(t, handler, http.MethodPost, "/api/documents/doc-1/cancel", nil, "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d", rec.Code)
	}
	payload := decodeResponse(t, rec)
	if payload["code"] != "NOT_ACTIVE" {
		t.Errorf("code = %v", payload["code"])
	}
}

func TestRollbackEndpointValidatesTarget(t *testing.T) {
	st := &fakeStore{
		GetDocumentFn: func(ctx context.Context, id string) (store.Document, error) {
			return store.Document{ID: id, Status: store.StatusComplete, VersionNumber: 1}, nil
		},
	}
	handler := testServer(st).Handler()

	body := bytes.NewBufferString(`{"target":"sideways"}`)
	rec := doRequest(t, handler, http.MethodPost, "/api/documents/doc-1/rollback", body, "application/json")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestUnknownRouteIs404(t *testing.T) {
	handler := testServer(&fakeStore{}).Handler()
	rec := doRequest(t, handler, http.MethodGet, "/api/widgets", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestAccessLogMiddlewareSetsRequestID(t *testing.T) {
	handler := testServer(&fakeStore{}).Handler()
	rec := doRequest(t, handler, http.MethodGet, "/api/health", nil, "")
	if strings.TrimSpace(rec.Header().Get("X-Request-ID")) == "" {
		t.Fatal("missing X-Request-ID header")
	}
}
