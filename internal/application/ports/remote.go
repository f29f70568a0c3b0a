package ports

import (
	"context"

	"github.com/jbctechsolutions/yardsync/internal/domain/yard"
)

// RemoteStorePort defines the interface to the shared remote document
// host. Writes are guarded by the content hash returned from the last
// read: a mismatch means another client wrote in between.
type RemoteStorePort interface {
	// Fetch retrieves the current document and its content hash.
	// A missing document yields an empty document and an empty hash.
	Fetch(ctx context.Context) (*yard.Document, string, error)

	// Write stores the document, conditioned on hash matching the
	// remote content. It returns the new content hash on success.
	Write(ctx context.Context, doc *yard.Document, hash string) (string, error)

	// TestConnection verifies the remote store is reachable with the
	// configured credentials. It does not mutate anything.
	TestConnection(ctx context.Context) error
}
