package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

type command func(ctx context.Context, args []string) error

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context, args []string) error
	Login(ctx context.Context, args []string) error
	Logout(ctx context.Context, args []string) error
	List(ctx context.Context, args []string) error
	Show(ctx context.Context, args []string) error
	Add(ctx context.Context, args []string) error
	Edit(ctx context.Context, args []string) error
	Delete(ctx context.Context, args []string) error
	Pay(ctx context.Context, args []string) error
	Payments(ctx context.Context, args []string) error
	Categories(ctx context.Context, args []string) error
	AddCategory(ctx context.Context, args []string) error
	Summary(ctx context.Context, args []string) error
	Reminders(ctx context.Context, args []string) error
	Sync(ctx context.Context, args []string) error
	Status(ctx context.Context, args []string) error
}

const (
	helpLoggedOut = "Available commands: register, login, status, exit"
	helpLoggedIn  = "Available commands: (l)ist, show <id>, add, edit <id>, delete <id>, pay <id>, payments <id>, " +
		"categories, addcategory, summary, reminders [days], sync, status, logout, exit"
)

// runREPL starts a simple read–eval–print loop for the SubMan CLI.
//
// It reads a line from the provided scanner, parses the first token as the
// command and passes the remaining tokens to the handler. Commands that need
// a session are refused until the user logs in. The loop exits on scanner EOF
// or when the user types "exit" or "quit".
//
// Errors returned by command handlers are ignored here; handlers print their
// own messages.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	public := map[string]command{
		"register": a.Register,
		"login":    a.Login,
		"status":   a.Status,
	}
	private := map[string]command{
		"l":           a.List,
		"list":        a.List,
		"show":        a.Show,
		"add":         a.Add,
		"edit":        a.Edit,
		"delete":      a.Delete,
		"pay":         a.Pay,
		"payments":    a.Payments,
		"categories":  a.Categories,
		"addcategory": a.AddCategory,
		"summary":     a.Summary,
		"reminders":   a.Reminders,
		"sync":        a.Sync,
		"logout":      a.Logout,
	}

	for {
		printlnFn(fmt.Sprintf("subman %s > ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := strings.ToLower(parts[0]), parts[1:]

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn(helpLoggedIn)
			} else {
				printlnFn(helpLoggedOut)
			}
			continue
		case "exit", "quit":
			printlnFn("Bye!")
			return
		}

		if fn, ok := public[cmd]; ok {
			_ = fn(ctx, args)
			continue
		}
		if fn, ok := private[cmd]; ok {
			if !a.isLoggedIn() {
				printlnFn("Please log in first")
				continue
			}
			_ = fn(ctx, args)
			continue
		}
		printlnFn("Unknown command:", cmd)
	}
}
