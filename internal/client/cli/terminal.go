package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/dmitrijs2005/bankguard/internal/guard"
)

// Terminal renders guard output as plain text. It is safe for concurrent
// use: the guard calls it from its loop while the REPL prints its own lines.
type Terminal struct {
	mu       sync.Mutex
	w        io.Writer
	location string
	open     map[guard.PromptKind]guard.Prompt
	footer   [2]string
}

func NewTerminal(w io.Writer) *Terminal {
	return &Terminal{w: w, open: make(map[guard.PromptKind]guard.Prompt)}
}

// Println writes one line under the terminal lock.
func (t *Terminal) Println(a ...any) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fmt.Fprintln(t.w, a...)
}

func (t *Terminal) Redirect(location string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.location = location
	fmt.Fprintf(t.w, "[navigate] %s\n", location)
}

func (t *Terminal) Reload() {
	t.mu.Lock()
	defer t.mu.Unlock()
	clear(t.open)
	fmt.Fprintln(t.w, "[reload]")
}

func (t *Terminal) ShowPrompt(p guard.Prompt) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.open[p.Kind] = p

	fmt.Fprintf(t.w, "\n=== %s ===\n", p.Title)
	if p.Body != "" {
		fmt.Fprintln(t.w, p.Body)
	}
	if hint := promptHint(p); hint != "" {
		fmt.Fprintln(t.w, hint)
	}
}

func (t *Terminal) DismissPrompt(kind guard.PromptKind) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.open, kind)
}

func (t *Terminal) ShowValidation(kind guard.PromptKind, msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.w, "! %s\n", msg)
}

// ShowFooter prints the contact details when they change.
func (t *Terminal) ShowFooter(email, address string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.footer == [2]string{email, address} {
		return
	}
	t.footer = [2]string{email, address}

	var parts []string
	if email != "" {
		parts = append(parts, "Email: "+email)
	}
	if address != "" {
		parts = append(parts, "Address: "+address)
	}
	if len(parts) > 0 {
		fmt.Fprintf(t.w, "-- %s --\n", strings.Join(parts, " | "))
	}
}

// Location is the last page the guard navigated to.
func (t *Terminal) Location() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.location
}

// OpenPrompts lists the prompts currently on screen.
func (t *Terminal) OpenPrompts() []guard.PromptKind {
	t.mu.Lock()
	defer t.mu.Unlock()
	kinds := make([]guard.PromptKind, 0, len(t.open))
	for k := range t.open {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

func promptHint(p guard.Prompt) string {
	switch p.Kind {
	case guard.PromptLock:
		return fmt.Sprintf("(pin = %s, logout = %s)", p.Confirm, p.Cancel)
	case guard.PromptAgreement:
		return fmt.Sprintf("(agree = %s)", p.Confirm)
	case guard.PromptRestricted:
		return fmt.Sprintf("(ack = %s)", p.Confirm)
	}
	return ""
}
