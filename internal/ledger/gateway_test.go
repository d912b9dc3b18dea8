package ledger_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"nexus-go/internal/ledger"
	"nexus-go/internal/nexus"
)

// fakeGateway is a minimal in-process ledger gateway.
type fakeGateway struct {
	mu      sync.Mutex
	records []*nexus.HashRecord
	token   string
}

func (g *fakeGateway) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/records", func(w http.ResponseWriter, r *http.Request) {
		if g.token != "" && r.Header.Get("Authorization") != "Bearer "+g.token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		g.mu.Lock()
		defer g.mu.Unlock()

		switch r.Method {
		case http.MethodPost:
			var rec nexus.HashRecord
			if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			g.records = append(g.records, &rec)
			w.WriteHeader(http.StatusCreated)
		case http.MethodGet:
			q := r.URL.Query()
			out := []*nexus.HashRecord{}
			for _, rec := range g.records {
				if v := q.Get("kind"); v != "" && string(rec.Kind) != v {
					continue
				}
				if v := q.Get("owner"); v != "" && rec.Owner != v {
					continue
				}
				if v := q.Get("original_id"); v != "" && rec.OriginalID != v {
					continue
				}
				out = append(out, rec)
			}
			json.NewEncoder(w).Encode(out)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/v1/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func TestGatewayLedger_AppendAndQuery(t *testing.T) {
	gw := &fakeGateway{}
	srv := httptest.NewServer(gw.handler())
	defer srv.Close()

	l := ledger.NewGatewayLedger(srv.URL, "")
	ctx := context.Background()
	at := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	rec := &nexus.HashRecord{
		ID:         "r-1",
		Kind:       nexus.KindContact,
		OriginalID: "c-1",
		Owner:      "alice",
		Digest:     "deadbeef",
		CreatedAt:  at,
		Verified:   true,
	}
	if err := l.Append(ctx, rec); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	got, err := l.Query(ctx, nexus.LedgerFilter{
		Kind:       nexus.KindContact,
		Owner:      "alice",
		OriginalID: "c-1",
	})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Query() returned %d records, want 1", len(got))
	}
	if got[0].Digest != "deadbeef" || !got[0].CreatedAt.Equal(at) {
		t.Errorf("record = %+v, want the appended one back", got[0])
	}

	got, err = l.Query(ctx, nexus.LedgerFilter{Owner: "bob"})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Query() returned %d records for another owner, want 0", len(got))
	}
}

func TestGatewayLedger_BearerToken(t *testing.T) {
	gw := &fakeGateway{token: "secret"}
	srv := httptest.NewServer(gw.handler())
	defer srv.Close()

	ctx := context.Background()
	rec := &nexus.HashRecord{ID: "r-1", Kind: nexus.KindContact, CreatedAt: time.Now()}

	t.Run("with token", func(t *testing.T) {
		l := ledger.NewGatewayLedger(srv.URL, "secret")
		if err := l.Append(ctx, rec); err != nil {
			t.Errorf("Append() error = %v", err)
		}
	})

	t.Run("without token", func(t *testing.T) {
		l := ledger.NewGatewayLedger(srv.URL, "")
		if err := l.Append(ctx, rec); !errors.Is(err, nexus.ErrStorageUnavailable) {
			t.Errorf("Append() error = %v, want ErrStorageUnavailable", err)
		}
	})
}

func TestGatewayLedger_Ping(t *testing.T) {
	gw := &fakeGateway{}
	srv := httptest.NewServer(gw.handler())

	l := ledger.NewGatewayLedger(srv.URL, "")
	if err := l.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}

	srv.Close()
	if err := l.Ping(context.Background()); !errors.Is(err, nexus.ErrStorageUnavailable) {
		t.Errorf("Ping() error = %v after shutdown, want ErrStorageUnavailable", err)
	}
}
