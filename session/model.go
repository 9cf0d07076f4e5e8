package session

// Session ties a browser cookie to a signed-in customer. Times are unix
// seconds.
type Session struct {
	SessionID string
	UserID    int64
	Staff     bool

	CreatedAt int64
	ExpiresAt int64
}
