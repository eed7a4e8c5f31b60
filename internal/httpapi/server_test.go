package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/growpixel/leadmail/internal/model"
	"github.com/growpixel/leadmail/internal/service"
	"log/slog"
)

const (
	testOrigin     = "https://growpixel.webflow.io"
	testAdminEmail = "info@growpixel.co"
)

type recordedSend struct {
	recipient   string
	subject     string
	attachments []model.Attachment
}

type stubSender struct {
	sends   []recordedSend
	failFor map[string]error
}

func (sender *stubSender) SendEmail(_ context.Context, recipient, subject, _ string, attachments []model.Attachment) error {
	sender.sends = append(sender.sends, recordedSend{
		recipient:   recipient,
		subject:     subject,
		attachments: attachments,
	})
	if sender.failFor != nil {
		if failure, present := sender.failFor[recipient]; present {
			return failure
		}
	}
	return nil
}

func newTestServer(t *testing.T, sender *stubSender) *Server {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	server, serverError := NewServer(Config{
		ListenAddr:    ":0",
		AllowedOrigin: testOrigin,
		LeadService:   service.NewLeadService(sender, logger, testAdminEmail),
		Logger:        logger,
	})
	if serverError != nil {
		t.Fatalf("server construction failed: %v", serverError)
	}
	return server
}

type filePart struct {
	filename    string
	contentType string
	data        []byte
}

func multipartRequest(t *testing.T, fields map[string]string, file *filePart) *http.Request {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for fieldName, fieldValue := range fields {
		if writeError := writer.WriteField(fieldName, fieldValue); writeError != nil {
			t.Fatalf("writing field %s: %v", fieldName, writeError)
		}
	}
	if file != nil {
		partHeader := make(textproto.MIMEHeader)
		partHeader.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, file.filename))
		partHeader.Set("Content-Type", file.contentType)
		partWriter, partError := writer.CreatePart(partHeader)
		if partError != nil {
			t.Fatalf("creating file part: %v", partError)
		}
		if _, writeError := partWriter.Write(file.data); writeError != nil {
			t.Fatalf("writing file part: %v", writeError)
		}
	}
	if closeError := writer.Close(); closeError != nil {
		t.Fatalf("closing multipart writer: %v", closeError)
	}

	request := httptest.NewRequest(http.MethodPost, RouteLead, body)
	request.Header.Set("Content-Type", writer.FormDataContentType())
	return request
}

func validLeadFields() map[string]string {
	return map[string]string{
		"name":          "Alice",
		"email":         "alice@example.com",
		"mainService":   "Web",
		"subService":    "Landing Page",
		"project_brief": "Need a site",
	}
}

func decodeResult(t *testing.T, recorder *httptest.ResponseRecorder) (bool, string) {
	t.Helper()

	var payload struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if decodeError := json.Unmarshal(recorder.Body.Bytes(), &payload); decodeError != nil {
		t.Fatalf("response decode error: %v (body %q)", decodeError, recorder.Body.String())
	}
	return payload.Success, payload.Error
}

func TestSubmitLeadSuccessWithoutFile(t *testing.T) {
	t.Helper()

	sender := &stubSender{}
	server := newTestServer(t, sender)

	recorder := httptest.NewRecorder()
	server.httpServer.Handler.ServeHTTP(recorder, multipartRequest(t, validLeadFields(), nil))

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body %s)", recorder.Code, recorder.Body.String())
	}
	success, _ := decodeResult(t, recorder)
	if !success {
		t.Fatalf("expected success true")
	}
	if len(sender.sends) != 2 {
		t.Fatalf("expected two sends, got %d", len(sender.sends))
	}
	if !strings.Contains(sender.sends[0].subject, "Alice") {
		t.Fatalf("expected admin subject to contain submitter name: %q", sender.sends[0].subject)
	}
	if sender.sends[1].recipient != "alice@example.com" {
		t.Fatalf("expected receipt addressed to submitter, got %q", sender.sends[1].recipient)
	}
	for sendIndex, send := range sender.sends {
		if len(send.attachments) != 0 {
			t.Fatalf("send %d expected no attachments", sendIndex)
		}
	}
}

func TestSubmitLeadMissingRequiredField(t *testing.T) {
	t.Helper()

	sender := &stubSender{}
	server := newTestServer(t, sender)

	fields := validLeadFields()
	delete(fields, "email")

	recorder := httptest.NewRecorder()
	server.httpServer.Handler.ServeHTTP(recorder, multipartRequest(t, fields, nil))

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
	success, errorMessage := decodeResult(t, recorder)
	if success || errorMessage != "Missing required fields" {
		t.Fatalf("unexpected body: success=%v error=%q", success, errorMessage)
	}
	if len(sender.sends) != 0 {
		t.Fatalf("expected transport untouched, got %d sends", len(sender.sends))
	}
}

func TestSubmitLeadRejectsDisallowedFileType(t *testing.T) {
	t.Helper()

	sender := &stubSender{}
	server := newTestServer(t, sender)

	recorder := httptest.NewRecorder()
	request := multipartRequest(t, validLeadFields(), &filePart{
		filename:    "logo.png",
		contentType: "image/png",
		data:        []byte("not-a-pdf"),
	})
	server.httpServer.Handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
	_, errorMessage := decodeResult(t, recorder)
	if !strings.Contains(errorMessage, "Invalid file type") {
		t.Fatalf("expected invalid file type message, got %q", errorMessage)
	}
	if len(sender.sends) != 0 {
		t.Fatalf("expected transport untouched, got %d sends", len(sender.sends))
	}
}

func TestSubmitLeadForwardsValidAttachmentToBothMessages(t *testing.T) {
	t.Helper()

	sender := &stubSender{}
	server := newTestServer(t, sender)

	recorder := httptest.NewRecorder()
	request := multipartRequest(t, validLeadFields(), &filePart{
		filename:    "brief.pdf",
		contentType: "application/pdf",
		data:        []byte("pdf-bytes"),
	})
	server.httpServer.Handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body %s)", recorder.Code, recorder.Body.String())
	}
	if len(sender.sends) != 2 {
		t.Fatalf("expected two sends, got %d", len(sender.sends))
	}
	for sendIndex, send := range sender.sends {
		if len(send.attachments) != 1 {
			t.Fatalf("send %d expected one attachment", sendIndex)
		}
		attachment := send.attachments[0]
		if attachment.Filename != "brief.pdf" || string(attachment.Data) != "pdf-bytes" {
			t.Fatalf("send %d attachment mismatch: %+v", sendIndex, attachment)
		}
	}
}

func TestPreflightRequest(t *testing.T) {
	t.Helper()

	sender := &stubSender{}
	server := newTestServer(t, sender)

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodOptions, RouteLead, nil)
	request.Header.Set("Origin", testOrigin)
	request.Header.Set("Access-Control-Request-Method", http.MethodPost)
	server.httpServer.Handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	if recorder.Body.Len() != 0 {
		t.Fatalf("expected empty preflight body, got %q", recorder.Body.String())
	}
	if allowOrigin := recorder.Header().Get("Access-Control-Allow-Origin"); allowOrigin != testOrigin {
		t.Fatalf("expected allow-origin %q, got %q", testOrigin, allowOrigin)
	}
	if len(sender.sends) != 0 {
		t.Fatalf("expected no pipeline side effects")
	}
}

func TestPlainOptionsRequest(t *testing.T) {
	t.Helper()

	sender := &stubSender{}
	server := newTestServer(t, sender)

	recorder := httptest.NewRecorder()
	server.httpServer.Handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodOptions, RouteLead, nil))

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	if recorder.Body.Len() != 0 {
		t.Fatalf("expected empty body, got %q", recorder.Body.String())
	}
}

func TestSubmitLeadDispatchFailure(t *testing.T) {
	t.Helper()

	sender := &stubSender{failFor: map[string]error{testAdminEmail: errors.New("smtp send failed: connection refused")}}
	server := newTestServer(t, sender)

	recorder := httptest.NewRecorder()
	server.httpServer.Handler.ServeHTTP(recorder, multipartRequest(t, validLeadFields(), nil))

	if recorder.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", recorder.Code)
	}
	success, errorMessage := decodeResult(t, recorder)
	if success || !strings.Contains(errorMessage, "connection refused") {
		t.Fatalf("unexpected body: success=%v error=%q", success, errorMessage)
	}
	if len(sender.sends) != 1 {
		t.Fatalf("expected receipt send skipped after admin failure, got %d", len(sender.sends))
	}
}

func TestSubmitLeadRejectsWrongMethod(t *testing.T) {
	t.Helper()

	sender := &stubSender{}
	server := newTestServer(t, sender)

	recorder := httptest.NewRecorder()
	server.httpServer.Handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, RouteLead, nil))

	if recorder.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", recorder.Code)
	}
	if len(sender.sends) != 0 {
		t.Fatalf("expected no pipeline work for wrong method")
	}
}

func TestSubmitLeadUnparseableBody(t *testing.T) {
	t.Helper()

	sender := &stubSender{}
	server := newTestServer(t, sender)

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, RouteLead, strings.NewReader(`{"name":"Alice"}`))
	request.Header.Set("Content-Type", "application/json")
	server.httpServer.Handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 for undecodable body, got %d", recorder.Code)
	}
	success, errorMessage := decodeResult(t, recorder)
	if success || errorMessage == "" {
		t.Fatalf("expected decoder message in body, got success=%v error=%q", success, errorMessage)
	}
	if len(sender.sends) != 0 {
		t.Fatalf("expected transport untouched")
	}
}

func TestNewServerValidatesConfig(t *testing.T) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	leadService := service.NewLeadService(&stubSender{}, logger, testAdminEmail)

	testCases := []struct {
		name   string
		config Config
	}{
		{"MissingListenAddr", Config{AllowedOrigin: testOrigin, LeadService: leadService, Logger: logger}},
		{"MissingOrigin", Config{ListenAddr: ":0", LeadService: leadService, Logger: logger}},
		{"MissingService", Config{ListenAddr: ":0", AllowedOrigin: testOrigin, Logger: logger}},
		{"MissingLogger", Config{ListenAddr: ":0", AllowedOrigin: testOrigin, LeadService: leadService}},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Helper()

			if _, serverError := NewServer(testCase.config); serverError == nil {
				t.Fatalf("expected construction error")
			}
		})
	}
}
