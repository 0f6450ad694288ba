package profile

import "sync"

// Auth holds the signed-in user of this profile. Conversation actions
// require it; they fail fast when nobody is signed in.
type Auth struct {
	mu     sync.RWMutex
	userID string
}

// NewAuth creates an Auth, optionally pre-signed-in.
func NewAuth(userID string) *Auth {
	return &Auth{userID: userID}
}

// SignIn records the active user id.
func (a *Auth) SignIn(userID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.userID = userID
}

// SignOut clears the active user.
func (a *Auth) SignOut() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.userID = ""
}

// UserID returns the signed-in user id; ok is false when signed out.
func (a *Auth) UserID() (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.userID, a.userID != ""
}
