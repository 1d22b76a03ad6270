package cli

import (
	"bufio"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeExec struct {
	loggedIn bool

	calls []string
	args  map[string][]string
}

func (f *fakeExec) record(name string, args []string) error {
	f.calls = append(f.calls, name)
	if f.args == nil {
		f.args = map[string][]string{}
	}
	f.args[name] = args
	return nil
}

func (f *fakeExec) isLoggedIn() bool { return f.loggedIn }
func (f *fakeExec) Register(_ context.Context, a []string) error {
	return f.record("register", a)
}
func (f *fakeExec) Login(_ context.Context, a []string) error {
	f.loggedIn = true
	return f.record("login", a)
}
func (f *fakeExec) Logout(_ context.Context, a []string) error {
	f.loggedIn = false
	return f.record("logout", a)
}
func (f *fakeExec) List(_ context.Context, a []string) error   { return f.record("list", a) }
func (f *fakeExec) Show(_ context.Context, a []string) error   { return f.record("show", a) }
func (f *fakeExec) Add(_ context.Context, a []string) error    { return f.record("add", a) }
func (f *fakeExec) Edit(_ context.Context, a []string) error   { return f.record("edit", a) }
func (f *fakeExec) Delete(_ context.Context, a []string) error { return f.record("delete", a) }
func (f *fakeExec) Pay(_ context.Context, a []string) error    { return f.record("pay", a) }
func (f *fakeExec) Payments(_ context.Context, a []string) error {
	return f.record("payments", a)
}
func (f *fakeExec) Categories(_ context.Context, a []string) error {
	return f.record("categories", a)
}
func (f *fakeExec) AddCategory(_ context.Context, a []string) error {
	return f.record("addcategory", a)
}
func (f *fakeExec) Summary(_ context.Context, a []string) error { return f.record("summary", a) }
func (f *fakeExec) Reminders(_ context.Context, a []string) error {
	return f.record("reminders", a)
}
func (f *fakeExec) Sync(_ context.Context, a []string) error   { return f.record("sync", a) }
func (f *fakeExec) Status(_ context.Context, a []string) error { return f.record("status", a) }

func runLines(exec *fakeExec, lines ...string) {
	sc := bufio.NewScanner(strings.NewReader(strings.Join(lines, "\n")))
	runREPL(context.Background(), exec, func() string { return "status" }, sc)
}

func TestRunREPL_LoginFlowAndCommands(t *testing.T) {
	out := captureOutput(t)

	exec := &fakeExec{}
	runLines(exec,
		"help",
		"list",
		"login",
		"help",
		"add",
		"l",
		"show 123",
		"edit 123",
		"pay 123",
		"payments 123",
		"delete 123",
		"categories",
		"addcategory Cloud storage",
		"summary",
		"reminders 30",
		"sync",
		"status",
		"foobar",
		"logout",
		"exit",
		"list",
	)

	assert.Equal(t, []string{
		"login", "add", "list", "show", "edit", "pay", "payments", "delete",
		"categories", "addcategory", "summary", "reminders", "sync", "status", "logout",
	}, exec.calls)
	assert.Equal(t, []string{"123"}, exec.args["show"])
	assert.Equal(t, []string{"Cloud", "storage"}, exec.args["addcategory"])
	assert.Equal(t, []string{"30"}, exec.args["reminders"])

	printed := out()
	assert.Contains(t, printed, helpLoggedOut)
	assert.Contains(t, printed, helpLoggedIn)
	assert.Contains(t, printed, "Please log in first")
	assert.Contains(t, printed, "Unknown command: foobar")
	assert.Contains(t, printed, "Bye!")
}

func TestRunREPL_RefusesPrivateCommandsWhenLoggedOut(t *testing.T) {
	out := captureOutput(t)

	exec := &fakeExec{}
	runLines(exec, "add", "sync", "status", "register", "QUIT")

	assert.Equal(t, []string{"status", "register"}, exec.calls)
	assert.Equal(t, 2, strings.Count(out(), "Please log in first"))
}

func TestRunREPL_StopsOnEOF(t *testing.T) {
	captureOutput(t)

	exec := &fakeExec{loggedIn: true}
	runLines(exec, "", "   ", "list")

	assert.Equal(t, []string{"list"}, exec.calls)
}
