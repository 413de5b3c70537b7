package monitor

import (
	"fmt"
	"strings"

	"github.com/dmitrijs2005/bankguard/internal/common"
)

// Kind is a user interaction that counts as activity.
type Kind string

const (
	PointerDown Kind = "pointerdown"
	PointerMove Kind = "pointermove"
	KeyPress    Kind = "keypress"
	Scroll      Kind = "scroll"
	TouchStart  Kind = "touchstart"
)

// Kinds lists every accepted interaction kind.
var Kinds = []Kind{PointerDown, PointerMove, KeyPress, Scroll, TouchStart}

// ParseKind accepts the kind names case-insensitively. "mousedown" and
// "mousemove" are accepted as aliases of the pointer kinds.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case PointerDown, PointerMove, KeyPress, Scroll, TouchStart:
		return k, nil
	case "mousedown":
		return PointerDown, nil
	case "mousemove":
		return PointerMove, nil
	default:
		return "", fmt.Errorf("%w: unknown interaction %q", common.ErrValidation, s)
	}
}
