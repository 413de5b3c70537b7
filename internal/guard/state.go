package guard

import (
	"fmt"
	"strings"

	"github.com/dmitrijs2005/bankguard/internal/common"
)

// State is the guard's verdict on whether the tab may show account data.
type State int

const (
	LoggedOut State = iota
	Active
	AwaitingAgreement
	Locked
	Restricted
	SiteDown
)

func (s State) String() string {
	switch s {
	case LoggedOut:
		return "LOGGED_OUT"
	case Active:
		return "ACTIVE"
	case AwaitingAgreement:
		return "AWAITING_AGREEMENT"
	case Locked:
		return "LOCKED"
	case Restricted:
		return "RESTRICTED"
	case SiteDown:
		return "SITE_DOWN"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// hasSession reports whether s is backed by a live local session.
func (s State) hasSession() bool {
	return s == Active || s == AwaitingAgreement || s == Locked
}

// Surface is the kind of page the guard protects.
type Surface int

const (
	UserSurface Surface = iota
	AdminSurface
)

func (s Surface) String() string {
	if s == AdminSurface {
		return "admin"
	}
	return "user"
}

// ParseSurface accepts "user" or "admin".
func ParseSurface(v string) (Surface, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "user", "":
		return UserSurface, nil
	case "admin":
		return AdminSurface, nil
	default:
		return 0, fmt.Errorf("%w: unknown surface %q", common.ErrValidation, v)
	}
}
