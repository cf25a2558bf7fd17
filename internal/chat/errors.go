package chat

import "errors"

// Failure classes for a message exchange. Callers match with errors.Is; only
// ErrOrphanedSession is a retryable condition (the client may provision a new
// session and resend once).
var (
	ErrUpstream           = errors.New("model request failed")
	ErrEmptyReply         = errors.New("model returned an empty reply")
	ErrStorage            = errors.New("chat storage unavailable")
	ErrOrphanedSession    = errors.New("chat session no longer exists")
	ErrSessionUnavailable = errors.New("could not provision a chat session")
)
