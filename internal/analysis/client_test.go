package analysis

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestClientUploadSendsMultipartFileField(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/upload/" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("read form file: %v", err)
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		defer file.Close()
		content, _ := io.ReadAll(file)
		if header.Filename != "equipment.csv" || string(content) != "a,b\n1,2\n" {
			t.Errorf("unexpected upload %q with %q", header.Filename, content)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"success":true,"rows":1,"columns":2,"column_names":["a","b"],"message":"ok"}`)
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", time.Second)
	record, err := client.Upload(context.Background(), "equipment.csv", []byte("a,b\n1,2\n"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if !record.Success || record.Rows != 1 || record.Columns != 2 {
		t.Fatalf("unexpected record %#v", record)
	}
}

func TestClientUploadReportsStatusError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"success":false,"error":"No file uploaded"}`)
	}))
	defer server.Close()

	_, err := NewClient(server.URL, time.Second).Upload(context.Background(), "x.csv", []byte("x"))
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", statusErr.StatusCode)
	}
	if statusErr.Message != "No file uploaded" {
		t.Fatalf("expected service error text, got %q", statusErr.Message)
	}
}

func TestClientUploadRejectsNonObjectPayload(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[1,2,3]`)
	}))
	defer server.Close()

	_, err := NewClient(server.URL, time.Second).Upload(context.Background(), "x.csv", []byte("x"))
	if !errors.Is(err, errUnexpectedPayload) {
		t.Fatalf("expected unexpected payload error, got %v", err)
	}
}

func TestClientUploadTimesOut(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	_, err := NewClient(server.URL, 50*time.Millisecond).Upload(context.Background(), "x.csv", []byte("x"))
	if err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestClientFetchSummariesKeepsServiceOrder(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/summaries/" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = io.WriteString(w, `[
			{"rows":5,"columns":2,"column_names":["a","b"],"uploaded_at":"2026-10-19 10:00"},
			{"rows":3,"columns":1,"column_names":["a"],"uploaded_at":"2026-10-18 10:00"}
		]`)
	}))
	defer server.Close()

	records, err := NewClient(server.URL, time.Second).FetchSummaries(context.Background())
	if err != nil {
		t.Fatalf("fetch summaries: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(records))
	}
	if records[0].Rows != 5 || records[1].UploadedAt != "2026-10-18 10:00" {
		t.Fatalf("unexpected summaries %#v", records)
	}
}

func TestClientFetchSummariesConcurrentCallersGetOwnRecords(t *testing.T) {
	t.Parallel()

	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		time.Sleep(20 * time.Millisecond)
		_, _ = io.WriteString(w, `[{"rows":5,"column_names":["a","b"]}]`)
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	const callers = 4
	results := make([][]string, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			records, err := client.FetchSummaries(context.Background())
			errs[i] = err
			if err == nil && len(records) == 1 {
				records[0].ColumnNames[0] = "changed"
				results[i] = records[0].ColumnNames
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if len(results[i]) != 2 || results[i][1] != "b" {
			t.Fatalf("caller %d: unexpected columns %v", i, results[i])
		}
	}
	if got := requests.Load(); got < 1 || got > callers {
		t.Fatalf("expected between 1 and %d requests, got %d", callers, got)
	}

	records, err := client.FetchSummaries(context.Background())
	if err != nil {
		t.Fatalf("fetch after concurrent callers: %v", err)
	}
	if records[0].ColumnNames[0] != "a" {
		t.Fatalf("expected a fresh decode for a later caller, got %v", records[0].ColumnNames)
	}
}

func TestClientFetchSummariesRejectsObjectPayload(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"rows":1}`)
	}))
	defer server.Close()

	if _, err := NewClient(server.URL, time.Second).FetchSummaries(context.Background()); !errors.Is(err, errUnexpectedPayload) {
		t.Fatalf("expected unexpected payload error, got %v", err)
	}
}

func TestClientPing(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/summary/test/" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = io.WriteString(w, `{"manage":"Backend working!"}`)
	}))
	defer server.Close()

	if err := NewClient(server.URL, time.Second).Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}
