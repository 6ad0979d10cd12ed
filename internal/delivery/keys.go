package delivery

import "github.com/aurzen/unearthedarcana/internal/domain"

// Config store key leaves, scoped under "{type}/".
const (
	keyLastPost       = "last_post"
	keyNewsChannel    = "news_channel"
	keyDiscussChannel = "discuss_channel"
	keyRole           = "role"
	keyDigestCurrent  = "discuss_message_current"
	keyDigestOld      = "discuss_message_old"
)

func stateKey(feedType domain.FeedType, leaf string) string {
	return string(feedType) + "/" + leaf
}
