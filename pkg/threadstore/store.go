// Package threadstore maps Slack user ids to assistant conversation thread
// ids. The mapping is the sole source of truth for "does this user have an
// open conversation": at most one live thread id per user, created lazily on
// first contact and removed only by explicit deletion.
package threadstore

import "context"

// Store is the user→thread mapping contract. Persistence is an injected
// strategy: the file-backed store lives here, the DynamoDB-backed one in
// pkg/dynamodb. Concurrent Set calls for the same user are last-writer-wins;
// per-user serialization is intentionally not provided.
type Store interface {
	// Get returns the thread id for a user, and whether one exists.
	Get(ctx context.Context, userID string) (string, bool, error)
	// Set records the mapping, overwriting any existing thread id for the
	// user, and persists synchronously before returning.
	Set(ctx context.Context, userID, threadID string) error
	// Has reports whether a mapping exists for the user.
	Has(ctx context.Context, userID string) (bool, error)
	// Delete removes the mapping for a user. Deleting an absent user is not
	// an error.
	Delete(ctx context.Context, userID string) error
	// Clear removes all mappings.
	Clear(ctx context.Context) error
	// Size returns the number of mapped users.
	Size(ctx context.Context) (int, error)
	// All returns a read-only snapshot of the full mapping.
	All(ctx context.Context) (map[string]string, error)
}
