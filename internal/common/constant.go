package common

import "time"

// AdminRowID is the fixed id of the single admin configuration row.
const AdminRowID = 1

const (
	// InactivityTimeout is the rolling idle limit before a forced logout.
	InactivityTimeout = 30 * time.Minute

	// HiddenGracePeriod is how long a tab may stay hidden before it locks.
	HiddenGracePeriod = 10 * time.Second

	// MaxPINAttempts is the number of consecutive wrong PINs that restricts
	// the account.
	MaxPINAttempts = 5

	// DefaultPollInterval is the period of the remote status pull.
	DefaultPollInterval = 15 * time.Second
)
