package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	Tap(ctx context.Context, kind string) error
	Hide(ctx context.Context) error
	Show(ctx context.Context) error
	PIN(ctx context.Context, pin string) error
	Agree(ctx context.Context) error
	Ack(ctx context.Context) error
	Login(ctx context.Context, who string) error
	Logout(ctx context.Context) error
	Status(ctx context.Context) error
}

const helpText = `Available commands:
  tap [kind]          user interaction (pointerdown, pointermove, keypress, scroll, touchstart)
  hide | show         tab goes to background / foreground
  pin [value]         unlock the locked session
  agree               accept the legal agreement
  ack                 acknowledge the restriction notice
  login <uuid|email>  sign in
  logout              end the session
  status              show the guard state
  exit | quit         leave the program`

// runREPL starts a read–eval–print loop over the guard.
//
// It reads a line from the provided scanner, parses the first token as the
// command, and dispatches to methods on 'a'. The loop exits on scanner EOF,
// on context cancellation, or when the user types "exit" or "quit".
//
// Errors returned by command handlers are printed and the loop continues.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		if ctx.Err() != nil {
			return
		}
		printlnFn(fmt.Sprintf("bank %s> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var err error
		switch cmd {
		case "help":
			printlnFn(helpText)

		case "tap":
			kind := ""
			if len(args) > 0 {
				kind = args[0]
			}
			err = a.Tap(ctx, kind)

		case "hide":
			err = a.Hide(ctx)

		case "show":
			err = a.Show(ctx)

		case "pin":
			pin := ""
			if len(args) > 0 {
				pin = args[0]
			}
			err = a.PIN(ctx, pin)

		case "agree":
			err = a.Agree(ctx)

		case "ack":
			err = a.Ack(ctx)

		case "login":
			if len(args) == 0 {
				printlnFn("Usage: login <uuid|email>")
				continue
			}
			err = a.Login(ctx, args[0])

		case "logout":
			err = a.Logout(ctx)

		case "status":
			err = a.Status(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			printlnFn("error:", err)
		}
	}
}
