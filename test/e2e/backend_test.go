//go:build e2e
// +build e2e

package e2e_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/ammerola/medboard/internal/core/domain"
	"github.com/ammerola/medboard/test/helpers"
)

const diseaseAnswer = `## Possible Diagnoses
1. Influenza - most consistent with fever and body aches
2. Common cold - milder presentation

## Recovery Timeline
1. Acute phase (days 1-3): rest and fluids
2. Recovery phase (days 4-7): gradual return to activity

References:
1. CDC Influenza Guidelines`

// fakeBackend serves the inventory and RAG endpoints from memory
type fakeBackend struct {
	mu        sync.Mutex
	items     []domain.InventoryItem
	uploads   map[string]int
	resets    int
	inventory int
}

func newFakeBackend(count int) *fakeBackend {
	return &fakeBackend{
		items:   helpers.CreateTestInventoryItems(count),
		uploads: map[string]int{},
	}
}

func (b *fakeBackend) server() *httptest.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/inventory", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.inventory++
		writeJSON(w, http.StatusOK, b.items)
	})
	mux.HandleFunc("GET /api/inventory/expiring", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		writeJSON(w, http.StatusOK, b.items[:1])
	})
	mux.HandleFunc("GET /api/activity", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []domain.ActivityEntry{{
			ID: 1, Timestamp: "2024-03-05 09:00", Action: "restock", ItemName: "Item 001", QuantityChange: 10,
		}})
	})
	mux.HandleFunc("POST /update_inventory", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID       int64 `json:"id"`
			Quantity int   `json:"quantity"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "bad body"})
			return
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		for i := range b.items {
			if b.items[i].ID == req.ID {
				b.items[i].Quantity = req.Quantity
				b.items[i].Status = domain.StatusForQuantity(req.Quantity)
				writeJSON(w, http.StatusOK, map[string]any{"success": true})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": "item not found"})
	})
	mux.HandleFunc("POST /api/medical-query", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"result": diseaseAnswer})
	})
	mux.HandleFunc("POST /api/query", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"result": "Wash hands before and after patient contact."})
	})
	mux.HandleFunc("POST /upload", func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "No file part"})
			return
		}
		defer file.Close()
		n, _ := io.Copy(io.Discard, file)
		b.mu.Lock()
		b.uploads[header.Filename] = int(n)
		b.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]string{"message": "File uploaded successfully"})
	})
	mux.HandleFunc("POST /reset", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.resets++
		b.uploads = map[string]int{}
		b.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]string{"message": "Database cleared successfully"})
	})

	return httptest.NewServer(mux)
}

func (b *fakeBackend) uploaded(name string) (int, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n, ok := b.uploads[name]
	return n, ok
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
