package main

// Identity is the capability a session principal provides to the
// handlers: a stable id and an authenticated-or-not predicate.
type Identity interface {
	ID() int
	Authenticated() bool
}

// User represents a registered user.
type User struct {
	UserID   int
	Username string
	Email    string
	PwHash   string
}

func (u *User) ID() int { return u.UserID }

// Authenticated reports whether the receiver is a real, resolved user.
// Safe on a nil receiver so a missing session satisfies Identity too.
func (u *User) Authenticated() bool { return u != nil }

// signedIn reports whether the given principal may act as a logged-in user.
func signedIn(id Identity) bool {
	return id != nil && id.Authenticated()
}

// Tweet is a short text message owned by exactly one user.
type Tweet struct {
	TweetID int
	Text    string
	UserID  int
}

// Hashtag is a shared label; one row exists per distinct text.
type Hashtag struct {
	HashtagID int
	Text      string
}

// UserTweetCount pairs a username with the number of tweets it owns.
type UserTweetCount struct {
	Username   string
	TweetCount int
}
