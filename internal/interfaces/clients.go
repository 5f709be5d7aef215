package interfaces

import "context"

// FeedClient fetches the raw regulator NAV dump.
type FeedClient interface {
	// FetchNAVAll returns the full NAVAll text body.
	FetchNAVAll(ctx context.Context) (string, error)
}
