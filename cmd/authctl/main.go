// Command authctl administers the credential store directly: it creates
// users, ends sessions and removes expired refresh tokens.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/NordCoder/Gatekeeper/internal/bootstrap"
	config "github.com/NordCoder/Gatekeeper/internal/config/auth-server"
	domainauth "github.com/NordCoder/Gatekeeper/internal/domain/auth"
	"github.com/NordCoder/Gatekeeper/internal/obs"
	"github.com/NordCoder/Gatekeeper/internal/outbox"
	authsvc "github.com/NordCoder/Gatekeeper/internal/services/auth-server/auth"
	"github.com/NordCoder/Gatekeeper/internal/services/auth-server/sweeper"
	"go.uber.org/zap"
	"golang.org/x/term"
)

const usage = `usage: authctl [-config path] <command> [flags]

commands:
  create-user -username NAME [-role ROLE]   prompts for the password
  logout-all  -user-id ID                   ends every session of a user
  sweep                                     deletes expired refresh tokens
`

var errUsage = errors.New("invalid usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, promptPassword); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
		}
		fmt.Fprintln(os.Stderr, "authctl:", err)
		os.Exit(1)
	}
}

type app struct {
	cfg          *config.Config
	log          *zap.Logger
	store        *bootstrap.Store
	out          io.Writer
	readPassword func(prompt string) (string, error)
}

func run(ctx context.Context, args []string, out io.Writer, readPassword func(string) (string, error)) error {
	global := flag.NewFlagSet("authctl", flag.ContinueOnError)
	global.SetOutput(io.Discard)
	configPath := global.String("config", "config/auth-server.yaml", "path to the YAML config file")
	if err := global.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if global.NArg() == 0 {
		return errUsage
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	logger, err := obs.NewLogger(cfg.AsLoggerConfig())
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	store, err := bootstrap.OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	a := &app{cfg: cfg, log: obs.Component(logger, "authctl"), store: store, out: out, readPassword: readPassword}

	cmd, rest := global.Arg(0), global.Args()[1:]
	switch cmd {
	case "create-user":
		return a.createUser(ctx, rest)
	case "logout-all":
		return a.logoutAll(ctx, rest)
	case "sweep":
		return a.sweep(ctx)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func (a *app) createUser(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("create-user", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	username := fs.String("username", "", "login name")
	role := fs.String("role", "user", "role of the new user")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if *username == "" {
		return fmt.Errorf("%w: -username is required", errUsage)
	}

	pw, err := a.readPassword("Password: ")
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}

	sm, err := a.sessions()
	if err != nil {
		return err
	}
	id, err := sm.Register(ctx, *username, pw, *role)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "created user %q (id %d, role %s)\n", *username, id, *role)
	return nil
}

func (a *app) logoutAll(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("logout-all", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	userID := fs.Int64("user-id", 0, "user whose sessions end")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if *userID <= 0 {
		return fmt.Errorf("%w: -user-id is required", errUsage)
	}

	sm, err := a.sessions()
	if err != nil {
		return err
	}
	if err := sm.LogoutAll(ctx, *userID); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "ended all sessions of user %d\n", *userID)
	return nil
}

func (a *app) sweep(ctx context.Context) error {
	n, err := sweeper.NewUC(a.store.Tokens, nil).Sweep(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "deleted %d expired refresh tokens\n", n)
	return nil
}

// sessions builds a session manager. Events are queued in the outbox when the
// server would publish them, so the running server delivers them.
func (a *app) sessions() (*authsvc.SessionManager, error) {
	signer, _, err := bootstrap.Keys(a.cfg)
	if err != nil {
		return nil, err
	}
	var events domainauth.SessionEvents = domainauth.NopEvents{}
	if a.cfg.Kafka.Enable && a.store.Outbox != nil {
		events = outbox.NewEmitter(a.store.Outbox)
	}
	return bootstrap.SessionManager(a.cfg, a.store, signer, events, a.log)
}

func promptPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
