package delivery

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aurzen/unearthedarcana/internal/domain"
	"github.com/aurzen/unearthedarcana/internal/ports"
)

const (
	articleSeparator   = "\n⸱\n"
	messageLengthLimit = 1900

	archivedMarker = "📁 "
)

// DigestStrategy rolls a community's pinned digest forward after an
// article has been announced. Strategies are selected per feed type; a
// community with no discuss channel configured is a silent no-op.
type DigestStrategy interface {
	Rotate(ctx context.Context, community, channelID string, article domain.ArticleRecord) error
}

// digestState reads and writes the rolling message pointers for one
// (community, type) pair.
type digestState struct {
	store     ports.ConfigStore
	community string
	feedType  domain.FeedType
}

func (s digestState) current(ctx context.Context) (string, error) {
	id, _, err := s.store.Get(ctx, s.community, stateKey(s.feedType, keyDigestCurrent))
	return id, err
}

func (s digestState) old(ctx context.Context) (string, error) {
	id, _, err := s.store.Get(ctx, s.community, stateKey(s.feedType, keyDigestOld))
	return id, err
}

func (s digestState) setCurrent(ctx context.Context, id string) error {
	return s.store.Set(ctx, s.community, stateKey(s.feedType, keyDigestCurrent), id)
}

func (s digestState) setOld(ctx context.Context, id string) error {
	return s.store.Set(ctx, s.community, stateKey(s.feedType, keyDigestOld), id)
}

// AppendBounded keeps a single pinned digest message and appends each new
// article as a block, evicting the oldest blocks once the rebuilt content
// would exceed the length limit. The newest block always survives.
type AppendBounded struct {
	store    ports.ConfigStore
	platform ports.ChatPlatform
}

var _ DigestStrategy = (*AppendBounded)(nil)

// NewAppendBounded builds the append-bounded strategy.
func NewAppendBounded(store ports.ConfigStore, platform ports.ChatPlatform) *AppendBounded {
	return &AppendBounded{store: store, platform: platform}
}

// Rotate appends the article to the digest and re-pins it.
func (a *AppendBounded) Rotate(ctx context.Context, community, channelID string, article domain.ArticleRecord) error {
	state := digestState{store: a.store, community: community, feedType: article.Type}

	block := formatBlock(article)
	blocks := []string{block}

	previous, err := state.current(ctx)
	if err != nil {
		return fmt.Errorf("read digest pointer: %w", err)
	}

	if previous != "" {
		msg, err := a.platform.FetchMessage(ctx, channelID, previous)
		switch {
		case err == nil:
			blocks = append(strings.Split(msg.Content, articleSeparator), block)
		case errors.Is(err, domain.ErrNotFound):
			// Someone deleted the digest; start over with just this block.
			previous = ""
		default:
			return fmt.Errorf("fetch digest message: %w", err)
		}
	}

	blocks = evictOldest(blocks, messageLengthLimit)

	if previous != "" {
		if err := a.platform.Unpin(ctx, channelID, previous); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("unpin previous digest: %w", err)
		}
	}

	id, err := a.platform.Send(ctx, channelID, strings.Join(blocks, articleSeparator), nil)
	if err != nil {
		return fmt.Errorf("send digest: %w", err)
	}
	if err := a.platform.Pin(ctx, channelID, id); err != nil {
		return fmt.Errorf("pin digest: %w", err)
	}

	return state.setCurrent(ctx, id)
}

// evictOldest drops leading blocks until the joined content fits the
// limit. The final (newest) block is kept even when it alone is over.
func evictOldest(blocks []string, limit int) []string {
	for len(blocks) > 1 && joinedLength(blocks) > limit {
		blocks = blocks[1:]
	}
	return blocks
}

func joinedLength(blocks []string) int {
	total := len(articleSeparator) * (len(blocks) - 1)
	for _, b := range blocks {
		total += len(b)
	}
	return total
}

// CurrentOldSwap keeps two rolling messages: the freshly pinned "current"
// article and the previous one, edited in place into an archived style
// instead of being deleted. On each delivery the previous current becomes
// old and the previous old is unpinned.
type CurrentOldSwap struct {
	store    ports.ConfigStore
	platform ports.ChatPlatform
}

var _ DigestStrategy = (*CurrentOldSwap)(nil)

// NewCurrentOldSwap builds the current/old rotation strategy.
func NewCurrentOldSwap(store ports.ConfigStore, platform ports.ChatPlatform) *CurrentOldSwap {
	return &CurrentOldSwap{store: store, platform: platform}
}

// Rotate shifts current to old and pins a new current message.
func (c *CurrentOldSwap) Rotate(ctx context.Context, community, channelID string, article domain.ArticleRecord) error {
	state := digestState{store: c.store, community: community, feedType: article.Type}

	oldID, err := state.old(ctx)
	if err != nil {
		return fmt.Errorf("read old digest pointer: %w", err)
	}
	if oldID != "" {
		if err := c.platform.Unpin(ctx, channelID, oldID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("unpin old digest: %w", err)
		}
	}

	currentID, err := state.current(ctx)
	if err != nil {
		return fmt.Errorf("read digest pointer: %w", err)
	}
	if currentID != "" {
		msg, err := c.platform.FetchMessage(ctx, channelID, currentID)
		switch {
		case err == nil:
			if err := c.platform.Edit(ctx, channelID, currentID, archiveContent(msg.Content)); err != nil {
				return fmt.Errorf("archive current digest: %w", err)
			}
		case errors.Is(err, domain.ErrNotFound):
			currentID = ""
		default:
			return fmt.Errorf("fetch current digest: %w", err)
		}
	}

	id, err := c.platform.Send(ctx, channelID, formatBlock(article), nil)
	if err != nil {
		return fmt.Errorf("send digest: %w", err)
	}
	if err := c.platform.Pin(ctx, channelID, id); err != nil {
		return fmt.Errorf("pin digest: %w", err)
	}

	if err := state.setOld(ctx, currentID); err != nil {
		return fmt.Errorf("store old digest pointer: %w", err)
	}
	return state.setCurrent(ctx, id)
}

func archiveContent(content string) string {
	if strings.HasPrefix(content, archivedMarker) {
		return content
	}
	return archivedMarker + content
}
