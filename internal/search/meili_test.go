package search

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// meiliStub answers just enough of the Meilisearch API for the client to come
// up healthy, and records the last /multi-search request body.
func meiliStub(captured *[]byte) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/health":
			io.WriteString(w, `{"status":"available"}`)
		case "/multi-search":
			body, _ := io.ReadAll(r.Body)
			*captured = body
			io.WriteString(w, `{"results":[`+
				`{"indexUid":"studyhub_documents","hits":[],"estimatedTotalHits":0},`+
				`{"indexUid":"studyhub_discussions","hits":[],"estimatedTotalHits":0}]}`)
		default:
			io.WriteString(w, `{"taskUid":1,"indexUid":"","status":"enqueued","type":"indexCreation","enqueuedAt":"2026-01-01T00:00:00Z"}`)
		}
	}))
}

func TestSearchScopesBothIndexesToCaller(t *testing.T) {
	var captured []byte
	srv := meiliStub(&captured)
	defer srv.Close()

	m := NewMeili(srv.URL, "")
	defer m.Close()
	if !m.Healthy() {
		t.Fatal("expected stub-backed client to be healthy")
	}

	if _, _, err := m.Search(Query{Text: "osmosis", UserID: "usr-1"}); err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(captured) == 0 {
		t.Fatal("expected a multi-search request")
	}

	var req struct {
		Queries []struct {
			IndexUID string `json:"indexUid"`
			Query    string `json:"q"`
			Filter   any    `json:"filter"`
		} `json:"queries"`
	}
	if err := json.Unmarshal(captured, &req); err != nil {
		t.Fatalf("decode multi-search body: %v", err)
	}
	if len(req.Queries) != 2 {
		t.Fatalf("expected queries against both indexes, got %d", len(req.Queries))
	}

	for _, q := range req.Queries {
		if q.Query != "osmosis" {
			t.Errorf("%s: expected search text %q, got %q", q.IndexUID, "osmosis", q.Query)
		}
		filters, ok := q.Filter.([]any)
		if !ok || len(filters) == 0 {
			t.Fatalf("%s: expected an access filter, got %v", q.IndexUID, q.Filter)
		}
		filter, _ := filters[0].(string)
		for _, clause := range []string{`accessMode = "public"`, `ownerId = "usr-1"`, `allowedUserIds = "usr-1"`} {
			if !strings.Contains(filter, clause) {
				t.Errorf("%s: filter missing %s: %s", q.IndexUID, clause, filter)
			}
		}
	}
}

func TestSearchWithoutUserAppliesNoAccessFilter(t *testing.T) {
	var captured []byte
	srv := meiliStub(&captured)
	defer srv.Close()

	m := NewMeili(srv.URL, "")
	defer m.Close()

	if _, _, err := m.Search(Query{Text: "osmosis", FilterType: ResultDiscussion}); err != nil {
		t.Fatalf("search: %v", err)
	}

	var req struct {
		Queries []struct {
			IndexUID string `json:"indexUid"`
			Filter   any    `json:"filter"`
		} `json:"queries"`
	}
	if err := json.Unmarshal(captured, &req); err != nil {
		t.Fatalf("decode multi-search body: %v", err)
	}
	if len(req.Queries) != 1 || req.Queries[0].IndexUID != idxDiscussions {
		t.Fatalf("expected a single discussions query, got %+v", req.Queries)
	}
	if req.Queries[0].Filter != nil {
		t.Fatalf("expected no filter without a user scope, got %v", req.Queries[0].Filter)
	}
}
