package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cliparr/internal/api"
)

func TestClientStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/status" || r.Method != http.MethodGet {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		json.NewEncoder(w).Encode(api.DaemonStatus{Running: true, PID: 4321})
	}))
	defer ts.Close()

	status, err := api.NewClient(ts.URL).Status(context.Background())
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if !status.Running || status.PID != 4321 {
		t.Fatalf("unexpected status %#v", status)
	}
}

func TestClientJobsSendsFilters(t *testing.T) {
	var query string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		json.NewEncoder(w).Encode(api.JobListResponse{Jobs: []api.Job{{ID: 1, Kind: "match"}}})
	}))
	defer ts.Close()

	list, err := api.NewClient(ts.URL).Jobs(context.Background(), api.JobFilter{
		Kind: "match", State: "failed", ShowID: 3, Limit: 10, Offset: 20,
	})
	if err != nil {
		t.Fatalf("Jobs failed: %v", err)
	}
	if len(list) != 1 || list[0].Kind != "match" {
		t.Fatalf("unexpected jobs %#v", list)
	}
	for _, fragment := range []string{"kind=match", "state=failed", "show=3", "limit=10", "offset=20"} {
		if !strings.Contains(query, fragment) {
			t.Fatalf("query missing %q: %q", fragment, query)
		}
	}
}

func TestClientSegments(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/shows/7/segments" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(api.SegmentListResponse{ShowID: 7, Segments: []api.Segment{{Kind: "intro"}}})
	}))
	defer ts.Close()

	resp, err := api.NewClient(ts.URL).Segments(context.Background(), 7)
	if err != nil {
		t.Fatalf("Segments failed: %v", err)
	}
	if resp.ShowID != 7 || len(resp.Segments) != 1 {
		t.Fatalf("unexpected response %#v", resp)
	}
}

func TestClientScanUsesPost(t *testing.T) {
	var method string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		json.NewEncoder(w).Encode(api.ScanResponse{Requested: true})
	}))
	defer ts.Close()

	if err := api.NewClient(ts.URL).Scan(context.Background()); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if method != http.MethodPost {
		t.Fatalf("scan should POST, used %s", method)
	}
}

func TestClientSurfacesAPIErrors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "unknown job kind \"transcode\""})
	}))
	defer ts.Close()

	_, err := api.NewClient(ts.URL).Jobs(context.Background(), api.JobFilter{Kind: "transcode"})
	if err == nil {
		t.Fatal("expected error for 400 response")
	}
	if !strings.Contains(err.Error(), "unknown job kind") {
		t.Fatalf("error should carry the server message, got %v", err)
	}
}

func TestClientHandlesNonJSONErrorBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer ts.Close()

	_, err := api.NewClient(ts.URL).Status(context.Background())
	if err == nil || !strings.Contains(err.Error(), "bad gateway") {
		t.Fatalf("raw error body should pass through, got %v", err)
	}
}

func TestNewClientNormalizesBareAddress(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(api.DaemonStatus{})
	}))
	defer ts.Close()

	bare := strings.TrimPrefix(ts.URL, "http://")
	if _, err := api.NewClient(bare).Status(context.Background()); err != nil {
		t.Fatalf("bare host:port should work: %v", err)
	}
}

func TestClientRequiresAddress(t *testing.T) {
	if _, err := api.NewClient("").Status(context.Background()); err == nil {
		t.Fatal("empty address should error")
	}
}
