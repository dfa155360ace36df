package apiclient_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"khoj/internal/api"
	"khoj/internal/apiclient"
	"khoj/internal/testsupport"
)

func newClient(t *testing.T, handler http.Handler) *apiclient.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := apiclient.New(server.URL)
	if err != nil {
		t.Fatalf("apiclient.New: %v", err)
	}
	return client
}

func TestNewRequiresAddress(t *testing.T) {
	if _, err := apiclient.New("   "); err == nil {
		t.Fatal("expected error for empty address")
	}
}

func TestCreateCaseSendsMultipart(t *testing.T) {
	var gotName, gotAge string
	var hadPhoto bool
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/cases" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		gotName = r.FormValue("name")
		gotAge = r.FormValue("age")
		_, _, err := r.FormFile("photo")
		hadPhoto = err == nil
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(api.Case{ID: 7, Name: gotName})
	}))

	photo := filepath.Join(t.TempDir(), "ref.png")
	testsupport.WritePNG(t, photo, 64, 64)

	created, err := client.CreateCase(context.Background(), api.NewCaseRequest{Name: "Arjun Kumar", Age: 9}, photo)
	if err != nil {
		t.Fatalf("CreateCase: %v", err)
	}
	if created.ID != 7 || gotName != "Arjun Kumar" || gotAge != "9" || !hadPhoto {
		t.Fatalf("created=%+v name=%q age=%q photo=%v", created, gotName, gotAge, hadPhoto)
	}
}

func TestSearchDecodesResults(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Query string `json:"query"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if body.Query != "red shirt" {
			t.Errorf("query = %q", body.Query)
		}
		json.NewEncoder(w).Encode(api.SearchResponse{Results: []api.SearchResult{
			{Case: api.Case{ID: 1}, Similarity: 0.91},
		}})
	}))

	results, err := client.Search(context.Background(), "red shirt")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Similarity != 0.91 {
		t.Fatalf("results = %+v", results)
	}
}

func TestCloseCaseSendsFoundFlag(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/cases/4/close" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body struct {
			Found bool `json:"found"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if !body.Found {
			t.Error("expected found=true in request body")
		}
		json.NewEncoder(w).Encode(api.Case{ID: 4, Status: "FOUND"})
	}))

	closed, err := client.CloseCase(context.Background(), 4, true)
	if err != nil {
		t.Fatalf("CloseCase: %v", err)
	}
	if closed.Status != "FOUND" {
		t.Fatalf("closed = %+v", closed)
	}
}

func TestErrorPayloadSurfaces(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "case not found"})
	}))

	_, err := client.GetCase(context.Background(), 42)
	if err == nil || !strings.Contains(err.Error(), "case not found") {
		t.Fatalf("err = %v", err)
	}
}

func TestUnreachableDaemon(t *testing.T) {
	client, err := apiclient.New("127.0.0.1:1")
	if err != nil {
		t.Fatalf("apiclient.New: %v", err)
	}
	if err := client.Health(context.Background()); !apiclient.IsDaemonUnavailable(err) {
		t.Fatalf("expected daemon unavailable, got %v", err)
	}
}
