// Package coordinator implements the request-dispatch surface of the catalog
// service. Every remote call lands here: the coordinator validates the session
// token, delegates to the catalog and session registry, and pushes owner
// notifications for operations that touch another user's record.
//
// Business outcomes are values, never faults: a failed login is token 0, an
// unknown token makes the call a silent no-op, and a missing record is an
// absent result. Only infrastructure failures travel as errors.
package coordinator

import (
	"context"
	"errors"
	"fmt"

	"github.com/ybecker/catalogd/internal/logger"
	"github.com/ybecker/catalogd/internal/ratelimiter"
	"github.com/ybecker/catalogd/pkg/catalog"
	"github.com/ybecker/catalogd/pkg/notify"
	"github.com/ybecker/catalogd/pkg/session"
	"github.com/ybecker/catalogd/pkg/store"
)

// Coordinator sequences authentication, catalog operations, and notification
// fan-out. Safe for concurrent use.
type Coordinator struct {
	accounts store.AccountStore
	catalog  *catalog.Catalog
	sessions *session.Registry

	// loginLimiter throttles login attempts to slow down password guessing.
	loginLimiter *ratelimiter.RateLimiter
}

// New creates a Coordinator over the given stores and session registry.
// Login rate limiting is disabled until SetLoginLimit is called.
func New(accounts store.AccountStore, cat *catalog.Catalog, sessions *session.Registry) *Coordinator {
	if accounts == nil || cat == nil || sessions == nil {
		panic("coordinator dependencies cannot be nil")
	}
	return &Coordinator{
		accounts:     accounts,
		catalog:      cat,
		sessions:     sessions,
		loginLimiter: ratelimiter.New(0, 0),
	}
}

// SetLoginLimit caps login attempts at requestsPerSecond sustained with the
// given burst. Zero disables the limit. Throttled attempts fail like bad
// credentials (token 0).
func (c *Coordinator) SetLoginLimit(requestsPerSecond, burst uint) {
	c.loginLimiter = ratelimiter.New(requestsPerSecond, burst)
}

// Register reserves username with the given password.
//
// Returns true if the username was previously unused and is now taken, false
// if it already exists. Registration never creates a session.
func (c *Coordinator) Register(ctx context.Context, username, password string) (bool, error) {
	exists, err := c.accounts.Exists(ctx, username)
	if err != nil {
		return false, fmt.Errorf("checking account %s: %w", username, err)
	}
	if exists {
		return false, nil
	}

	if err := c.accounts.CreateAccount(ctx, username, password); err != nil {
		if store.IsAlreadyExists(err) {
			// Lost a race with a concurrent registration of the same name.
			return false, nil
		}
		return false, fmt.Errorf("creating account %s: %w", username, err)
	}

	logger.Info("Registered new user %s", username)
	return true, nil
}

// Login verifies the credentials and, on success, creates a session bound to
// the given callback sink and returns its token.
//
// Every failure returns the sentinel token 0: unknown username, wrong
// password, throttled attempt, and store trouble alike. Callers cannot tell
// them apart and are not supposed to; the server log carries the detail.
func (c *Coordinator) Login(ctx context.Context, username, password string, sink notify.Sink) uint64 {
	if !c.loginLimiter.Allow() {
		logger.Warn("Login attempt for %s rejected by rate limit", username)
		return 0
	}

	stored, err := c.accounts.GetPassword(ctx, username)
	if err != nil {
		if store.IsNotFound(err) {
			logger.Debug("Login failed: unknown user %s", username)
		} else {
			logger.Error("Login failed for %s: %v", username, err)
		}
		return 0
	}

	if stored != password {
		logger.Debug("Login failed: wrong password for %s", username)
		return 0
	}

	token := c.sessions.Add(username, sink)
	logger.Info("User %s logged in", username)
	return token
}

// Logout removes the session for token. Idempotent: an unknown or stale token
// is a no-op.
func (c *Coordinator) Logout(token uint64) {
	if username, ok := c.sessions.Lookup(token); ok {
		logger.Info("User %s logged out", username)
	}
	c.sessions.Remove(token)
}

// List returns every record in the catalog. There is no ownership filtering
// and, matching the observed surface, no session token either: the listing is
// globally visible.
func (c *Coordinator) List(ctx context.Context) ([]store.FileRecord, error) {
	return c.catalog.ListRecords(ctx)
}

// Open returns the record for filename, or nil when the token is invalid or
// the record is absent.
//
// When the requester is not the owner, the owner's session (if any) receives
// an OPEN notification. Notification failure never affects the result.
func (c *Coordinator) Open(ctx context.Context, filename string, token uint64) (*store.FileRecord, error) {
	requester, ok := c.sessions.Lookup(token)
	if !ok {
		return nil, nil
	}

	record, err := c.catalog.FindRecord(ctx, filename)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", filename, err)
	}
	if record == nil {
		return nil, nil
	}

	c.notifyOwner(record.Owner, requester, notify.KindOpened)
	return record, nil
}

// Upload adds a record owned by the session's user.
//
// An invalid token makes the call a no-op. Store failures, duplicate
// filenames included, degrade gracefully: they are logged and the caller gets
// no error. Uploads are never notified.
func (c *Coordinator) Upload(ctx context.Context, token uint64, filename string, size int64, permission store.Permission) {
	owner, ok := c.sessions.Lookup(token)
	if !ok {
		return
	}

	record := catalog.MakeRecord(filename, size, owner, permission)
	if err := c.catalog.AddRecord(ctx, record); err != nil {
		if store.IsAlreadyExists(err) {
			logger.Warn("Upload of %s by %s rejected: filename taken", filename, owner)
		} else {
			logger.Error("Upload of %s by %s failed: %v", filename, owner, err)
		}
		return
	}

	logger.Debug("User %s uploaded %s (%d bytes, %s)", owner, filename, size, permission)
}

// Delete removes filename on behalf of the session holding token.
//
// An invalid token makes the call a no-op. Authorization lives in the
// catalog: the requester must own the record or the record must be shared
// READ_WRITE. When a non-owner deletes a record, the owner's session (if any)
// receives a DELETE notification.
func (c *Coordinator) Delete(ctx context.Context, filename string, token uint64) error {
	requester, ok := c.sessions.Lookup(token)
	if !ok {
		return nil
	}

	// The owner has to be read before the delete destroys the record.
	record, err := c.catalog.FindRecord(ctx, filename)
	if err != nil {
		return fmt.Errorf("deleting %s: %w", filename, err)
	}
	if record == nil {
		return nil
	}

	deleted, err := c.catalog.DeleteRecord(ctx, filename, requester)
	if err != nil {
		return fmt.Errorf("deleting %s: %w", filename, err)
	}
	if !deleted {
		logger.Debug("Delete of %s by %s denied or already gone", filename, requester)
		return nil
	}

	logger.Debug("User %s deleted %s", requester, filename)
	c.notifyOwner(record.Owner, requester, notify.KindDeleted)
	return nil
}

// Update overwrites the size of filename on behalf of the session holding
// token.
//
// An invalid token or an absent record makes the call a no-op. Authorization
// lives here, not in the catalog: the requester must own the record or the
// record must be shared READ_WRITE, otherwise nothing is mutated.
//
// The UPDATE notification fires whenever the requester is not the owner,
// even when authorization blocked the mutation. That matches the behavior of
// the service this one replaces, and clients depend on the owner learning
// about the attempt, so it stays.
func (c *Coordinator) Update(ctx context.Context, filename string, newSize int64, token uint64) error {
	requester, ok := c.sessions.Lookup(token)
	if !ok {
		return nil
	}

	record, err := c.catalog.FindRecord(ctx, filename)
	if err != nil {
		return fmt.Errorf("updating %s: %w", filename, err)
	}
	if record == nil {
		return nil
	}

	authorized := record.Permission == store.PermissionReadWrite || requester == record.Owner
	if authorized {
		if err := c.catalog.UpdateRecord(ctx, filename, newSize); err != nil {
			return fmt.Errorf("updating %s: %w", filename, err)
		}
		logger.Debug("User %s updated %s to %d bytes", requester, filename, newSize)
	} else {
		logger.Debug("Update of %s by %s denied", filename, requester)
	}

	c.notifyOwner(record.Owner, requester, notify.KindUpdated)
	return nil
}

// notifyOwner pushes an event to the owner's active session, if the actor is
// someone else and such a session exists. Delivery problems are logged and
// otherwise ignored; they never affect the triggering call.
func (c *Coordinator) notifyOwner(owner, actor string, kind notify.Kind) {
	if owner == actor {
		return
	}

	err := c.sessions.Send(owner, notify.Event{Kind: kind, Actor: actor})
	if err == nil {
		return
	}
	if errors.Is(err, session.ErrNoSession) {
		logger.Debug("Owner %s not logged in, %s event dropped", owner, kind)
		return
	}
	logger.Warn("Failed to notify %s: %v", owner, err)
}
