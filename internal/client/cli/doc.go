// Package cli is the terminal front end of one guarded tab.
//
// It wires configuration, the local session store, the bank database, the
// change feed and the poller around a guard.Guard, renders the guard's
// prompts and redirects as text (Terminal), and turns typed commands into
// browser events: "tap" for pointer and key input, "hide"/"show" for tab
// visibility, "pin", "agree" and "ack" for the modal prompts, and "login"
// in place of the site's login page.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
