// Package session tracks live login sessions and routes notification events
// to the callback sink each session registered at login.
package session

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/ybecker/catalogd/internal/logger"
	"github.com/ybecker/catalogd/pkg/notify"
)

// ErrNoSession is returned by Send when the named user has no live session.
var ErrNoSession = fmt.Errorf("no active session for user")

// session pairs a username with the callback sink registered at login.
type session struct {
	username string
	sink     notify.Sink
}

// Registry is the in-memory index of live sessions.
//
// It maintains two indices that are always mutated together under one lock:
// a forward index from token to session, and a reverse index from username
// to token. The reverse index means a second login by the same user replaces
// the first session's reachability: the old token stays valid for requests,
// but notifications flow to the most recent login.
//
// Sessions live only in memory. A restart drops all of them; clients log in
// again. Tokens are random non-zero 64-bit values, so zero can serve as the
// login-failure sentinel on the wire.
//
// Thread safety: all methods are safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	byToken map[uint64]*session
	byUser  map[string]uint64
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{
		byToken: make(map[uint64]*session),
		byUser:  make(map[string]uint64),
	}
}

// Add registers a new session for username with the given sink and returns
// its token.
//
// The token is drawn from crypto/rand and regenerated until it is non-zero
// and unused by any live session. Collisions are effectively impossible in a
// 64-bit space but the check is cheap and makes the non-zero guarantee
// explicit.
func (r *Registry) Add(username string, sink notify.Sink) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	var token uint64
	for {
		token = randomToken()
		if token == 0 {
			continue
		}
		if _, taken := r.byToken[token]; !taken {
			break
		}
	}

	if _, loggedIn := r.byUser[username]; loggedIn {
		// Second login by the same user: the newest session wins the
		// reverse index. The old token remains in the forward index so
		// outstanding requests keep working.
		logger.Debug("User %s logged in again, notifications move to new session (old token retained)", username)
	}

	r.byToken[token] = &session{username: username, sink: sink}
	r.byUser[username] = token

	return token
}

// Remove drops the session for token. Unknown tokens are a no-op, making
// logout idempotent.
//
// The reverse index entry is removed only if it still points at this token,
// so logging out an old session does not disconnect a newer one.
func (r *Registry) Remove(token uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.byToken[token]
	if !ok {
		return
	}

	delete(r.byToken, token)
	if r.byUser[sess.username] == token {
		delete(r.byUser, sess.username)
	}
}

// Lookup resolves a token to its username.
func (r *Registry) Lookup(token uint64) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, ok := r.byToken[token]
	if !ok {
		return "", false
	}
	return sess.username, true
}

// Active reports whether the named user currently has a session.
func (r *Registry) Active(username string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.byUser[username]
	return ok
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.byToken)
}

// Send delivers an event to the named user's session sink.
//
// The sink is resolved under a read lock but the delivery itself happens
// outside any lock: a slow or blocked sink must not stall logins, logouts,
// or other deliveries. Returns ErrNoSession if the user has no session.
//
// A delivery failure never evicts the session. The user may reconnect, and
// until then failed sends are simply reported to the caller to log.
func (r *Registry) Send(username string, event notify.Event) error {
	r.mu.RLock()
	token, ok := r.byUser[username]
	var sink notify.Sink
	if ok {
		sink = r.byToken[token].sink
	}
	r.mu.RUnlock()

	if !ok {
		return ErrNoSession
	}

	if err := sink.Send(event); err != nil {
		return fmt.Errorf("deliver %s to %s: %w", event.Kind, username, err)
	}
	return nil
}

// randomToken returns 8 bytes of crypto/rand as a uint64. May be zero;
// callers filter.
func randomToken() uint64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand never fails on supported platforms; if it somehow
		// does, an unusable token is worse than a panic.
		panic(fmt.Sprintf("session: reading random token: %v", err))
	}
	return binary.BigEndian.Uint64(buf[:])
}
