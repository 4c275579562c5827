package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/callcenter-console/internal/console"
	"github.com/callcenter-console/internal/gateway"
	"github.com/callcenter-console/internal/i18n"
	"github.com/callcenter-console/internal/models"
)

const helpText = `Commands:
  login <username>                sign in (asks for the password)
  logout                          sign out
  go <section>                    dashboard, calls, employees, reports, clients, settings
  show                            render the current section
  users | calls | stats           render one view directly
  refresh                         refetch users and calls now
  useradd                         create an employee (asks for the fields)
  edit <id> <field> <value>       field: username, name, role, status, ext
  delete <id>                     delete an employee (asks for confirmation)
  dial <number>                   place a call
  end <id> [notes]                end an active call
  whoami                          show the signed-in user
  help                            this text
  quit                            exit`

// repl drives a Console from line-oriented input. Notifications queued by
// commands and by the poll loop are printed before every prompt.
type repl struct {
	c     *console.Console
	queue *console.Queue
	text  *i18n.Printer
	in    *bufio.Scanner
	out   io.Writer
	// secret reads a line without echoing it; nil falls back to ask.
	secret func(prompt string) string
}

func newREPL(c *console.Console, queue *console.Queue, in *bufio.Scanner, out io.Writer) *repl {
	return &repl{c: c, queue: queue, text: c.Printer(), in: in, out: out}
}

func (r *repl) askSecret(prompt string) string {
	if r.secret == nil {
		return r.ask(prompt)
	}
	return r.secret(prompt)
}

func (r *repl) run(ctx context.Context) {
	for {
		r.flush()
		fmt.Fprint(r.out, "> ")
		if !r.in.Scan() {
			fmt.Fprintln(r.out)
			return
		}
		if !r.exec(ctx, r.in.Text()) {
			r.flush()
			return
		}
	}
}

// exec runs one command line and reports whether to keep going.
func (r *repl) exec(ctx context.Context, line string) bool {
	args := strings.Fields(line)
	if len(args) == 0 {
		return true
	}

	var err error
	switch cmd, rest := args[0], args[1:]; cmd {
	case "quit", "exit":
		return false
	case "help":
		fmt.Fprintln(r.out, helpText)
	case "login":
		if len(rest) != 1 {
			err = errUsage("login <username>")
			break
		}
		err = r.c.Login(ctx, rest[0], r.askSecret(r.text.Sprintf(i18n.LabelPassword)+": "))
	case "logout":
		r.c.Logout()
	case "whoami":
		r.whoami()
	case "go":
		if len(rest) != 1 {
			err = errUsage("go <section>")
			break
		}
		if err = r.c.Navigate(console.Section(rest[0])); err == nil {
			r.show()
		}
	case "show":
		r.show()
	case "users":
		r.renderUsers(r.c.Snapshot())
	case "calls":
		r.renderCalls(r.c.Snapshot(), 0)
	case "stats":
		r.renderOverview(r.c.Snapshot())
	case "refresh":
		err = r.c.Refresh(ctx)
	case "useradd":
		err = r.userAdd(ctx)
	case "edit":
		err = r.edit(ctx, rest)
	case "delete":
		err = r.delete(ctx, rest)
	case "dial":
		if len(rest) != 1 {
			err = errUsage("dial <number>")
			break
		}
		if err = r.c.OpenDial(); err == nil {
			r.c.SetDialBuffer(rest[0])
			err = r.c.InitiateCall(ctx)
		}
		r.c.CloseDialog()
	case "end":
		err = r.end(ctx, rest)
	default:
		err = fmt.Errorf("unknown command %q, try help", cmd)
	}
	r.report(err)
	return true
}

type usageError string

func errUsage(s string) error      { return usageError(s) }
func (e usageError) Error() string { return "usage: " + string(e) }

// report prints errors the console did not already turn into notifications.
func (r *repl) report(err error) {
	if err == nil {
		return
	}
	var verr *console.ValidationError
	if errors.As(err, &verr) || errors.Is(err, console.ErrNotConfirmed) {
		return
	}
	if _, ok := gateway.KindOf(err); ok {
		return
	}
	fmt.Fprintln(r.out, err)
}

func (r *repl) flush() {
	for _, n := range r.queue.Drain() {
		marker := "*"
		switch n.Level {
		case console.LevelSuccess:
			marker = "+"
		case console.LevelError:
			marker = "!"
		}
		fmt.Fprintf(r.out, "%s %s\n", marker, n.Text)
	}
}

func (r *repl) ask(prompt string) string {
	fmt.Fprint(r.out, prompt)
	if !r.in.Scan() {
		return ""
	}
	return strings.TrimSpace(r.in.Text())
}

func (r *repl) userAdd(ctx context.Context) error {
	if err := r.c.OpenCreateUser(); err != nil {
		return err
	}
	d := console.NewUserDraft{
		Username:       r.ask(r.text.Sprintf(i18n.LabelUsername) + ": "),
		Password:       r.askSecret(r.text.Sprintf(i18n.LabelPassword) + ": "),
		FullName:       r.ask(r.text.Sprintf(i18n.LabelFullName) + ": "),
		Role:           models.Role(r.ask(r.text.Sprintf(i18n.LabelRole) + " [operator]: ")),
		PhoneExtension: r.ask(r.text.Sprintf(i18n.LabelExtension) + ": "),
	}
	r.c.SetNewUserDraft(d)
	err := r.c.CreateUser(ctx)
	if err != nil {
		r.c.CloseDialog()
	}
	return err
}

func (r *repl) edit(ctx context.Context, args []string) error {
	if len(args) < 3 {
		return errUsage("edit <id> <field> <value>")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return errUsage("edit <id> <field> <value>")
	}
	if err := r.c.OpenEditUser(id); err != nil {
		return err
	}
	defer r.c.CloseDialog()

	u := *r.c.Snapshot().EditUser
	value := strings.Join(args[2:], " ")
	switch args[1] {
	case "username":
		u.Username = value
	case "name":
		u.FullName = value
	case "role":
		u.Role = models.Role(value)
	case "status":
		u.Status = models.UserStatus(value)
	case "ext":
		u.PhoneExtension = value
	default:
		return fmt.Errorf("unknown field %q", args[1])
	}
	if err := r.c.SetEditUserDraft(u); err != nil {
		return err
	}
	return r.c.UpdateUser(ctx)
}

func (r *repl) delete(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage("delete <id>")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return errUsage("delete <id>")
	}
	return r.c.DeleteUser(ctx, id, console.ConfirmFunc(func(prompt string) bool {
		switch strings.ToLower(r.ask(prompt + " [y/N]: ")) {
		case "y", "yes", "д", "да":
			return true
		}
		return false
	}))
}

func (r *repl) end(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errUsage("end <id> [notes]")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return errUsage("end <id> [notes]")
	}
	return r.c.EndCall(ctx, id, strings.Join(args[1:], " "))
}

func (r *repl) whoami() {
	snap := r.c.Snapshot()
	if snap.CurrentUser == nil {
		fmt.Fprintln(r.out, snap.State)
		return
	}
	u := snap.CurrentUser
	fmt.Fprintf(r.out, "%s (%s), %s\n", u.FullName, u.Username, r.text.Role(u.Role))
}

func (r *repl) show() {
	snap := r.c.Snapshot()
	if snap.State != console.LoggedIn {
		fmt.Fprintln(r.out, console.ErrNotLoggedIn)
		return
	}
	fmt.Fprintf(r.out, "== %s ==\n", r.text.Section(string(snap.Section)))
	switch snap.Section {
	case console.SectionDashboard:
		r.renderOverview(snap)
		r.renderCalls(snap, 5)
	case console.SectionCalls:
		r.renderCalls(snap, 0)
	case console.SectionEmployees:
		r.renderUsers(snap)
	}
}

func (r *repl) renderOverview(snap console.Snapshot) {
	o := snap.Overview()
	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s:\t%d\n", r.text.Sprintf(i18n.LabelActiveCalls), o.ActiveCalls)
	fmt.Fprintf(w, "%s:\t%d\n", r.text.Sprintf(i18n.LabelQueuedCalls), o.QueuedCalls)
	fmt.Fprintf(w, "%s:\t%d\n", r.text.Sprintf(i18n.LabelCompletedCalls), o.CompletedCalls)
	fmt.Fprintf(w, "%s:\t%d / %d\n", r.text.Sprintf(i18n.LabelOperatorsOnline), o.OperatorsOnline, o.OperatorsTotal)
	fmt.Fprintf(w, "%s:\t%s\n", r.text.Sprintf(i18n.LabelAvgDuration), formatSeconds(int(o.AvgDuration.Seconds())))
	w.Flush()
}

func (r *repl) renderUsers(snap console.Snapshot) {
	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
		r.text.Sprintf(i18n.LabelID), r.text.Sprintf(i18n.LabelUsername), r.text.Sprintf(i18n.LabelFullName),
		r.text.Sprintf(i18n.LabelRole), r.text.Sprintf(i18n.LabelStatus), r.text.Sprintf(i18n.LabelExtension))
	for _, u := range snap.Users {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			u.ID, u.Username, u.FullName, r.text.Role(u.Role), r.text.UserStatus(u.Status), u.PhoneExtension)
	}
	w.Flush()
}

// renderCalls prints at most limit calls; zero prints all of them.
func (r *repl) renderCalls(snap console.Snapshot, limit int) {
	calls := snap.Calls
	if limit > 0 && len(calls) > limit {
		calls = calls[:limit]
	}
	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
		r.text.Sprintf(i18n.LabelID), r.text.Sprintf(i18n.LabelNumber), r.text.Sprintf(i18n.LabelOperator),
		r.text.Sprintf(i18n.LabelStatus), r.text.Sprintf(i18n.LabelDuration), r.text.Sprintf(i18n.LabelStarted),
		r.text.Sprintf(i18n.LabelNotes))
	for _, call := range calls {
		operator := r.text.Sprintf(i18n.MsgUnassigned)
		if call.OperatorName != nil {
			operator = *call.OperatorName
		}
		started := "-"
		if !call.StartedAt.IsZero() {
			started = call.StartedAt.Local().Format("02.01 15:04:05")
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			call.ID, call.CallerNumber, operator, r.text.CallStatus(call.Status),
			formatSeconds(call.Duration), started, call.Notes)
	}
	w.Flush()
}

func formatSeconds(s int) string {
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}
