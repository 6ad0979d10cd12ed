package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrFetch marks transport failures or non-success responses from a
	// document source. Never fatal: the poll cycle retries next interval.
	ErrFetch = errors.New("document fetch failed")

	// ErrParse marks a fetched document whose gross structure could not be
	// located. Same retry policy as ErrFetch.
	ErrParse = errors.New("document structure not recognized")

	// ErrDateParse marks an article whose category carries no extractable
	// publish date. The article is skipped for all communities.
	ErrDateParse = errors.New("no publish date in category")

	// ErrNotFound marks a chat message that no longer exists. Unpin and
	// fetch treat it as a no-op.
	ErrNotFound = errors.New("message not found")
)

// DeliveryError wraps a chat-platform or store failure with the community
// and feed type it was isolated to.
type DeliveryError struct {
	Community string
	Type      FeedType
	Step      string
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver %s to community %s: %s: %v", e.Type, e.Community, e.Step, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}
