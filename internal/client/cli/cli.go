// Package cli реализует команды trackerctl поверх собранного клиента.
package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"tracker/internal/client/app"
	"tracker/internal/client/domain"
	"tracker/internal/client/ports/api"
	"tracker/pkg/logger"
)

// Константы команд.
const (
	CmdLogin    = "login"
	CmdRegister = "register"
	CmdLogout   = "logout"
	CmdWhoami   = "whoami"
	CmdGet      = "get"
	CmdWatch    = "watch"

	EnvPassword = "TRACKER_PASSWORD"

	LogWatchTick   = "watch poll failed"
	LogCommandDone = "command finished"
)

// Ошибки команд.
var (
	ErrUsage           = errors.New("usage")
	ErrNotLoggedIn     = errors.New("not logged in")
	ErrMissingArgument = errors.New("missing required argument")
)

// Usage - краткая справка.
const Usage = `usage: trackerctl <command> [flags]

commands:
  login -email E [-password P] [-remember]   sign in; -remember keeps the session across runs
  register -first F -last L -email E [-password P] [-slack ID]
  logout                                     forget stored credentials
  whoami                                     print the current user
  get PATH                                   authenticated GET, prints JSON
  watch [-interval D] PATH                   poll PATH until interrupted

The password may also be given in ` + EnvPassword + `.
`

// Runner выполняет команды.
type Runner struct {
	client *app.Client
	out    io.Writer
}

// NewRunner создает исполнителя команд, печатающего результат в out.
func NewRunner(client *app.Client, out io.Writer) *Runner {
	return &Runner{client: client, out: out}
}

// Run инициализирует сессию и выполняет команду args[0].
func (r *Runner) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return ErrUsage
	}
	if err := r.client.Initialize(ctx); err != nil {
		return err
	}

	cmd, rest := args[0], args[1:]
	ctx = logger.ContextWith(ctx, zap.String("command", cmd))

	var err error
	switch cmd {
	case CmdLogin:
		err = r.login(ctx, rest)
	case CmdRegister:
		err = r.register(ctx, rest)
	case CmdLogout:
		err = r.client.Session.Logout(ctx)
	case CmdWhoami:
		err = r.whoami()
	case CmdGet:
		err = r.get(ctx, rest)
	case CmdWatch:
		err = r.watch(ctx, rest)
	default:
		return fmt.Errorf("%w: unknown command %q", ErrUsage, cmd)
	}

	logger.Log(ctx).Debug(ctx, LogCommandDone, zap.Error(err))
	return err
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func password(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv(EnvPassword)
}

func (r *Runner) login(ctx context.Context, args []string) error {
	fs := newFlagSet(CmdLogin)
	email := fs.String("email", "", "account email")
	pass := fs.String("password", "", "account password")
	remember := fs.Bool("remember", false, "keep the session across runs")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	}
	if *email == "" || password(*pass) == "" {
		return fmt.Errorf("%w: -email and -password", ErrMissingArgument)
	}

	session, err := r.client.Session.Login(ctx, *email, password(*pass), *remember)
	if err != nil {
		return err
	}
	return r.printSession(session)
}

func (r *Runner) register(ctx context.Context, args []string) error {
	fs := newFlagSet(CmdRegister)
	first := fs.String("first", "", "first name")
	last := fs.String("last", "", "last name")
	email := fs.String("email", "", "account email")
	pass := fs.String("password", "", "account password")
	slack := fs.String("slack", "", "slack user id")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	}
	if *first == "" || *last == "" || *email == "" || password(*pass) == "" {
		return fmt.Errorf("%w: -first, -last, -email and -password", ErrMissingArgument)
	}

	session, err := r.client.Session.Register(ctx, api.RegisterRequest{
		FirstName:   *first,
		LastName:    *last,
		Email:       *email,
		Password:    password(*pass),
		SlackUserID: *slack,
	})
	if err != nil {
		return err
	}
	return r.printSession(session)
}

func (r *Runner) whoami() error {
	session := r.client.Session.Snapshot()
	if !session.IsAuthenticated {
		return ErrNotLoggedIn
	}
	return r.printSession(session)
}

func (r *Runner) get(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: get PATH", ErrUsage)
	}
	return r.fetch(ctx, args[0])
}

func (r *Runner) watch(ctx context.Context, args []string) error {
	fs := newFlagSet(CmdWatch)
	interval := fs.Duration("interval", 30*time.Second, "poll interval")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	}
	if fs.NArg() != 1 || *interval <= 0 {
		return fmt.Errorf("%w: watch [-interval D] PATH", ErrUsage)
	}
	path := fs.Arg(0)

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	for {
		if err := r.fetch(ctx, path); err != nil {
			if errors.Is(err, domain.ErrRefreshRejected) || errors.Is(err, domain.ErrNoRefreshToken) {
				return err
			}
			logger.Log(ctx).Warn(ctx, LogWatchTick, zap.String("path", path), zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (r *Runner) fetch(ctx context.Context, path string) error {
	raw, err := r.client.Resources.Get(ctx, path)
	if err != nil {
		return err
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		pretty.Reset()
		pretty.Write(raw)
	}
	pretty.WriteByte('\n')
	_, err = r.out.Write(pretty.Bytes())
	return err
}

type sessionView struct {
	Authenticated bool                `json:"authenticated"`
	StorageMode   string              `json:"storageMode"`
	User          *domain.UserProfile `json:"user,omitempty"`
}

func (r *Runner) printSession(s domain.Session) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(sessionView{
		Authenticated: s.IsAuthenticated,
		StorageMode:   s.StorageMode.String(),
		User:          s.User,
	})
}

// Navigator печатает подсказку о повторном входе после истечения сессии.
type Navigator struct {
	w io.Writer
}

// NewNavigator создает Navigator, пишущий в w.
func NewNavigator(w io.Writer) *Navigator {
	return &Navigator{w: w}
}

// RedirectToLogin реализует session.Navigator.
func (n *Navigator) RedirectToLogin(_ context.Context, cause error) {
	_, _ = fmt.Fprintf(n.w, "session expired (%v): run `trackerctl login` again\n", cause)
}
