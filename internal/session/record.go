// Package session is the local session store: the per-machine record of
// whether a tab is logged in, as whom, when it was last active and whether it
// was locked while hidden.
//
// Every guard process on the machine shares the same database file, the way
// browser tabs share local storage. A change written by one process is seen
// by the others the next time they load the record; nothing is broadcast.
// The record is stored in cleartext.
package session

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/bankguard/internal/common"
)

// Record is the session as the local store sees it.
type Record struct {
	LoggedIn      bool
	UserID        *string
	LastActiveAt  *time.Time
	LockedLocally bool
}

// Validate checks that a locked flag or a user id never exists without a
// login.
func (r Record) Validate() error {
	if r.LockedLocally && !r.LoggedIn {
		return fmt.Errorf("%w: locked session must be logged in", common.ErrValidation)
	}
	if r.UserID != nil && !r.LoggedIn {
		return fmt.Errorf("%w: user id without login", common.ErrValidation)
	}
	return nil
}

// User returns the user id or "" when there is none.
func (r Record) User() string {
	if r.UserID == nil {
		return ""
	}
	return *r.UserID
}

// LoggedInAs builds a fresh logged-in record for id, active at now.
func LoggedInAs(id string, now time.Time) Record {
	return Record{LoggedIn: true, UserID: &id, LastActiveAt: &now}
}

// Keys names the storage keys of one surface. The two surfaces never share
// a key, so an admin login, timeout or unlock leaves a customer session (and
// its screen lock) untouched. An empty Locked means the surface has no
// screen lock.
type Keys struct {
	Session    string
	UserID     string
	LastActive string
	Locked     string
}

var (
	UserKeys = Keys{
		Session:    "session",
		UserID:     "user_id",
		LastActive: "last_active_time",
		Locked:     "screen_locked",
	}
	AdminKeys = Keys{
		Session:    "adminSession",
		UserID:     "adminEmail",
		LastActive: "admin_last_active_time",
	}
)

func (k Keys) all() []string {
	out := make([]string, 0, 4)
	for _, key := range []string{k.Session, k.UserID, k.LastActive, k.Locked} {
		if key != "" {
			out = append(out, key)
		}
	}
	return out
}
