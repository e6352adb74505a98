package ports

import "context"

type revisionKey struct{}

// WithRevision attaches a save revision id to ctx. Adapters that can carry
// metadata (HTTP headers, log fields) forward it to the backend.
func WithRevision(ctx context.Context, revision string) context.Context {
	return context.WithValue(ctx, revisionKey{}, revision)
}

// RevisionFrom returns the save revision attached to ctx, if any.
func RevisionFrom(ctx context.Context) (string, bool) {
	rev, ok := ctx.Value(revisionKey{}).(string)
	return rev, ok && rev != ""
}
