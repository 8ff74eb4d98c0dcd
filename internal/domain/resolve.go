package domain

import (
	"context"
	"log/slog"
)

// HandleResolver resolves a repository DID to the handles known for it,
// most preferred first.
type HandleResolver interface {
	ResolveHandle(ctx context.Context, did string) ([]string, error)
}

// ResolveAuthor returns the display identity for a repo DID. If resolver is
// nil, resolution fails, or no handle is known, the raw DID is returned so
// a post never loses its author attribution (graceful degradation).
func ResolveAuthor(ctx context.Context, resolver HandleResolver, did string, logger *slog.Logger) string {
	if resolver == nil {
		return did
	}

	handles, err := resolver.ResolveHandle(ctx, did)
	if err != nil {
		logger.Warn("handle resolution failed",
			"did", did,
			"error", err,
		)
		return did
	}
	if len(handles) == 0 {
		return did
	}
	return handles[0]
}
