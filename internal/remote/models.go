// Package remote is the guard's view of the bank's data backend: the single
// admin configuration row, the customer account rows and the change feed
// that announces updates to both.
package remote

import (
	"crypto/subtle"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// AdminStatus mirrors the admin configuration row.
type AdminStatus struct {
	SiteVisible       bool
	AgreementAccepted bool
	ContactEmail      string
	ContactAddress    string
	HistoryCredit     Credit
}

// AccountStatus mirrors the parts of an account row the guard reads.
type AccountStatus struct {
	UUID   string
	Active ActiveFlag
	PIN    string
}

// Restricted reports whether access must be revoked.
func (a AccountStatus) Restricted() bool {
	return a.Active.Restricted()
}

// CheckPIN compares pin with the stored PIN in constant time.
func (a AccountStatus) CheckPIN(pin string) bool {
	if a.PIN == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(strings.TrimSpace(pin)), []byte(a.PIN)) == 1
}

// Account is a full customer row as created by the admin console.
type Account struct {
	ID        int64
	UUID      string
	Email     string
	FirstName string
	LastName  string
	PIN       string
	Active    bool
}

// deactivatedSentinel is the string some rows carry instead of false.
const deactivatedSentinel = "deactivated"

// ActiveFlag is the account's active column. Rows written by older tooling
// may carry the string "deactivated" instead of a boolean; it means the same
// as false.
type ActiveFlag struct {
	value      bool
	restricted bool
	raw        string
}

// Active returns a flag for a plain boolean.
func Active(v bool) ActiveFlag {
	return ActiveFlag{value: v, restricted: !v, raw: strconv.FormatBool(v)}
}

// Restricted is true for false and for the "deactivated" sentinel. Any other
// value, including NULL, leaves the account usable.
func (f ActiveFlag) Restricted() bool { return f.restricted }

func (f ActiveFlag) String() string {
	if f.raw == "" {
		return "null"
	}
	return f.raw
}

func (f *ActiveFlag) setString(s string) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "false", "f", "0", deactivatedSentinel:
		*f = ActiveFlag{restricted: true, raw: s}
	case "true", "t", "1":
		*f = ActiveFlag{value: true, raw: s}
	default:
		*f = ActiveFlag{raw: s}
	}
}

// Scan implements sql.Scanner.
func (f *ActiveFlag) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*f = ActiveFlag{}
	case bool:
		*f = Active(v)
	case string:
		f.setString(v)
	case []byte:
		f.setString(string(v))
	default:
		return fmt.Errorf("active flag: unsupported type %T", src)
	}
	return nil
}

// Value implements driver.Valuer. The column is text; the sentinel is
// written back as "false".
func (f ActiveFlag) Value() (driver.Value, error) {
	return strconv.FormatBool(!f.restricted), nil
}

// UnmarshalJSON accepts true, false, null or a string.
func (f *ActiveFlag) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	if v == nil {
		*f = ActiveFlag{}
		return nil
	}
	switch t := v.(type) {
	case bool, string:
		return f.Scan(t)
	default:
		return fmt.Errorf("active flag: unsupported JSON %s", string(b))
	}
}

// Credit is the admin's history credit: a numeric budget, or any
// non-numeric value meaning unlimited.
type Credit struct {
	amount    float64
	unlimited bool
	raw       string
}

// ParseCredit interprets raw as a budget or as the unlimited sentinel.
func ParseCredit(raw string) Credit {
	raw = strings.TrimSpace(raw)
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return Credit{unlimited: true, raw: raw}
	}
	return Credit{amount: n, raw: raw}
}

// Unlimited reports whether no budget applies.
func (c Credit) Unlimited() bool { return c.unlimited }

// Budget returns the numeric budget; ok is false when unlimited.
func (c Credit) Budget() (float64, bool) { return c.amount, !c.unlimited }

func (c Credit) String() string { return c.raw }

// Scan implements sql.Scanner.
func (c *Credit) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*c = ParseCredit("")
	case string:
		*c = ParseCredit(v)
	case []byte:
		*c = ParseCredit(string(v))
	case int64:
		*c = Credit{amount: float64(v), raw: strconv.FormatInt(v, 10)}
	case float64:
		*c = Credit{amount: v, raw: strconv.FormatFloat(v, 'f', -1, 64)}
	default:
		return fmt.Errorf("history credit: unsupported type %T", src)
	}
	return nil
}

// UnmarshalJSON accepts a number or a string.
func (c *Credit) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	return c.Scan(v)
}
