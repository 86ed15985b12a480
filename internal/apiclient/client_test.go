package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClient_Transfer_SendsBearerAndIdempotencyKey(t *testing.T) {
	t.Parallel()

	var (
		gotAuth, gotKey, gotPath string
		gotBody                  TransferRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotKey = r.Header.Get("Idempotency-Key")
		gotPath = r.URL.Path
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &gotBody)
		_, _ = w.Write([]byte(`{"status":"success"}`))
	}))
	defer srv.Close()

	c := New(srv.URL+"/", time.Second)
	err := c.Transfer(context.Background(), "tok", TransferRequest{From: "9000000001", To: "9876543210", Amount: 30}, "k-1")
	if err != nil {
		t.Fatalf("Transfer() error: %v", err)
	}
	if gotPath != "/api/transfer" {
		t.Fatalf("expected /api/transfer, got %q", gotPath)
	}
	if gotAuth != "Bearer tok" {
		t.Fatalf("expected bearer header, got %q", gotAuth)
	}
	if gotKey != "k-1" {
		t.Fatalf("expected idempotency key k-1, got %q", gotKey)
	}
	if gotBody != (TransferRequest{From: "9000000001", To: "9876543210", Amount: 30}) {
		t.Fatalf("unexpected body %+v", gotBody)
	}
}

func TestClient_Transfer_ApplicationError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"status":"error","error":"insufficient funds"}`))
	}))
	defer srv.Close()

	err := New(srv.URL, time.Second).Transfer(context.Background(), "tok", TransferRequest{}, "")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusUnprocessableEntity || apiErr.Message != "insufficient funds" {
		t.Fatalf("unexpected api error %+v", apiErr)
	}
	if IsTransport(err) || Retryable(err) {
		t.Fatalf("business rejection must be final")
	}
}

func TestClient_ErrorEnvelopeWithOKStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"error","error":"no such user"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, time.Second).Login(context.Background(), LoginRequest{Num: "9876543210", Pass: "x"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Message != "no such user" {
		t.Fatalf("expected APIError, got %v", err)
	}
}

func TestClient_TransportErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	}))
	err := New(srv.URL, time.Second).Transfer(context.Background(), "tok", TransferRequest{}, "")
	srv.Close()
	if !IsTransport(err) || !Retryable(err) {
		t.Fatalf("expected transport error, got %v", err)
	}

	err = New(srv.URL, time.Second).Transfer(context.Background(), "tok", TransferRequest{}, "")
	if !IsTransport(err) {
		t.Fatalf("expected transport error after close, got %v", err)
	}
}

func TestClient_RetryableStatuses(t *testing.T) {
	t.Parallel()

	for _, code := range []int{http.StatusUnauthorized, http.StatusConflict, http.StatusTooManyRequests, http.StatusInternalServerError} {
		if !Retryable(&APIError{Status: code}) {
			t.Fatalf("expected %d to be retryable", code)
		}
	}
	for _, code := range []int{http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity} {
		if Retryable(&APIError{Status: code}) {
			t.Fatalf("expected %d to be final", code)
		}
	}
	if Retryable(nil) || IsTransport(nil) {
		t.Fatalf("nil error is neither transport nor retryable")
	}
}

func TestClient_RegisterAndRefetch(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/register", func(w http.ResponseWriter, r *http.Request) {
		var req RegisterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Num != "9876543210" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"status":"error","error":"bad"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"success","token":"jwt"}`))
	})
	mux.HandleFunc("/api/refetch", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer jwt" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"status":"error","error":"unauthorized"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"success","balance":970,"logs":["a","b"]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL, time.Second)
	ctx := context.Background()

	token, err := c.Register(ctx, RegisterRequest{Name: "Asha", Num: "9876543210", Pass: "password1"})
	if err != nil || token != "jwt" {
		t.Fatalf("Register() = %q, %v", token, err)
	}

	st, err := c.Refetch(ctx, token)
	if err != nil {
		t.Fatalf("Refetch() error: %v", err)
	}
	if st.Balance != 970 || len(st.Logs) != 2 {
		t.Fatalf("unexpected statement %+v", st)
	}

	_, err = c.Refetch(ctx, "other")
	if !Retryable(err) || IsTransport(err) {
		t.Fatalf("expected retryable unauthorized api error, got %v", err)
	}
}

func TestClient_RefetchEmptyLogs(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"success","balance":0}`))
	}))
	defer srv.Close()

	st, err := New(srv.URL, time.Second).Refetch(context.Background(), "tok")
	if err != nil {
		t.Fatalf("Refetch() error: %v", err)
	}
	if st.Logs == nil || len(st.Logs) != 0 {
		t.Fatalf("expected empty non-nil logs, got %#v", st.Logs)
	}
}
