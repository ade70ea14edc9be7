// internal/core/ports/backend.go
package ports

import (
	"context"
	"io"

	"github.com/ammerola/medboard/internal/core/domain"
)

// BackendClient talks to the inventory and RAG backend
type BackendClient interface {
	FetchInventory(ctx context.Context) ([]domain.InventoryItem, error)
	FetchExpiring(ctx context.Context) ([]domain.InventoryItem, error)
	FetchActivity(ctx context.Context) ([]domain.ActivityEntry, error)
	UpdateQuantity(ctx context.Context, id int64, quantity int) error

	// Query sends a general question to /api/query and returns the answer text.
	Query(ctx context.Context, query string) (string, error)
	// MedicalQuery sends a clinical request to /api/medical-query.
	MedicalQuery(ctx context.Context, req domain.QueryRequest) (string, error)
	Estimate(ctx context.Context, req domain.EstimateRequest) (*domain.EstimateResult, error)

	UploadDocument(ctx context.Context, filename string, r io.Reader) error
	ResetDocuments(ctx context.Context) error
}

// Backend endpoints used for query submission.
const (
	EndpointQuery        = "/api/query"
	EndpointMedicalQuery = "/api/medical-query"
)

// EndpointFor returns the backend endpoint that serves queries of type qt.
func EndpointFor(qt domain.QueryType) string {
	if qt.IsMedical() {
		return EndpointMedicalQuery
	}
	return EndpointQuery
}
