package esign

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestGetCombinedDocument_Success(t *testing.T) {
	pdf := []byte("%PDF-1.7 fake document body")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wantPath := "/v2.1/accounts/acct-1/envelopes/env-42/documents/combined"
		if r.URL.Path != wantPath {
			t.Errorf("path = %q, want %q", r.URL.Path, wantPath)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer token-abc" {
			t.Errorf("authorization = %q", got)
		}

		w.Header().Set("Content-Type", "application/pdf")
		w.Write(pdf)
	}))
	defer server.Close()

	client := NewDocumentClient(server.URL, "acct-1", 5*time.Second)

	data, err := client.GetCombinedDocument(context.Background(), "token-abc", "env-42")
	if err != nil {
		t.Fatalf("GetCombinedDocument() error = %v", err)
	}
	if string(data) != string(pdf) {
		t.Errorf("document bytes do not match")
	}
}

func TestGetCombinedDocument_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"errorCode":"ENVELOPE_DOES_NOT_EXIST"}`))
	}))
	defer server.Close()

	client := NewDocumentClient(server.URL, "acct-1", 5*time.Second)

	_, err := client.GetCombinedDocument(context.Background(), "token-abc", "missing")
	if err == nil {
		t.Fatal("expected error for 404")
	}
	if !strings.Contains(err.Error(), "404") {
		t.Errorf("error %q should carry the status code", err)
	}
	if !strings.Contains(err.Error(), "ENVELOPE_DOES_NOT_EXIST") {
		t.Errorf("error %q should carry a body excerpt", err)
	}
}

func TestGetCombinedDocument_NilClient(t *testing.T) {
	var client *DocumentClient

	_, err := client.GetCombinedDocument(context.Background(), "token", "env")
	if err == nil {
		t.Fatal("nil client should return an error")
	}
}

func TestGetCombinedDocument_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.Write([]byte("%PDF"))
	}))
	defer server.Close()

	client := NewDocumentClient(server.URL, "acct-1", 5*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := client.GetCombinedDocument(ctx, "token", "env"); err == nil {
		t.Fatal("expected error with cancelled context")
	}
}
