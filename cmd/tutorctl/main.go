// Command tutorctl talks to the TutorHub API from a terminal. Credentials
// are kept in a token file, so a login survives between invocations.
//
//	tutorctl [-api URL] [-store FILE] login -email E -password P
//	tutorctl whoami
//	tutorctl call [-X METHOD] [-d JSON] PATH
//	tutorctl earnings [-period week|month]
//	tutorctl gigs list|get|create|update|delete
//	tutorctl tutors list|get|sessions
//	tutorctl sessions list|create|verify
//	tutorctl users list|approve|activate|deactivate
//	tutorctl logout
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tutorhub-portal/internal/client"
	"tutorhub-portal/internal/config"
	"tutorhub-portal/internal/earnings"
	"tutorhub-portal/internal/logger"
	"tutorhub-portal/internal/service"
	"tutorhub-portal/internal/session"
	"tutorhub-portal/internal/tokenstore"
)

var (
	errUsage       = errors.New("usage: tutorctl [-api URL] [-store FILE] <login|logout|whoami|call|earnings|gigs|tutors|sessions|users> [args]")
	errNotLoggedIn = errors.New("not logged in, run tutorctl login first")
)

func main() {
	config.LoadDotEnv()
	logger.New(os.Stderr, envOr("LOG_LEVEL", "warn"))

	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("tutorctl", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	apiURL := fs.String("api", envOr("API_BASE_URL", "http://localhost:8000/api"), "backend API base URL")
	storePath := fs.String("store", defaultStorePath(), "token file")
	timeout := fs.Duration("timeout", 30*time.Second, "per-request timeout")
	if err := fs.Parse(args); err != nil || fs.NArg() == 0 {
		return errUsage
	}

	store, err := tokenstore.NewFile(*storePath)
	if err != nil {
		return err
	}

	c := client.New(*apiURL, store, client.WithTimeout(*timeout))
	mgr := session.New(client.NewCoordinator(c, store))

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "login":
		return login(ctx, mgr, rest, out)
	case "logout":
		mgr.Restore(ctx)
		mgr.Logout(ctx)
		fmt.Fprintln(out, "logged out")
		return nil
	case "whoami":
		return whoami(ctx, mgr, out)
	case "call":
		return call(ctx, mgr, rest, out)
	case "earnings":
		return summarize(ctx, mgr, rest, out)
	}
	if resource, ok := resources[cmd]; ok {
		return runResource(ctx, mgr, resource, rest, out)
	}
	return fmt.Errorf("unknown command %q: %w", cmd, errUsage)
}

func login(ctx context.Context, mgr *session.Manager, args []string, out io.Writer) error {
	fs := newFlagSet("login")
	email := fs.String("email", "", "account email")
	password := fs.String("password", os.Getenv("TUTORCTL_PASSWORD"), "account password")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	state, err := mgr.Login(ctx, *email, *password)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "logged in as %s (%s)\n", state.User.Email, state.User.UserType)
	return nil
}

func whoami(ctx context.Context, mgr *session.Manager, out io.Writer) error {
	if err := mgr.Init(ctx); err != nil {
		return err
	}

	state := mgr.State()
	view := map[string]any{
		"user":               state.User,
		"tutor_id":           nil,
		"formatted_tutor_id": mgr.FormattedTutorID(),
	}
	if id, ok := mgr.TutorID(); ok {
		view["tutor_id"] = id
	}
	return printJSON(out, view)
}

func call(ctx context.Context, mgr *session.Manager, args []string, out io.Writer) error {
	fs := newFlagSet("call")
	method := fs.String("X", http.MethodGet, "HTTP method")
	data := fs.String("d", "", "JSON request body")
	if err := fs.Parse(args); err != nil || fs.NArg() != 1 {
		return errUsage
	}

	opts := client.RequestOptions{Method: strings.ToUpper(*method)}
	if *data != "" {
		if !json.Valid([]byte(*data)) {
			return fmt.Errorf("request body is not valid JSON")
		}
		opts.Body = json.RawMessage(*data)
	}

	if !mgr.Restore(ctx) {
		return errNotLoggedIn
	}

	res := mgr.API().Execute(ctx, fs.Arg(0), opts)
	if res.Err != nil {
		return res.Err
	}
	if len(res.Body) == 0 {
		fmt.Fprintf(out, "%d\n", res.Status)
		return nil
	}
	var pretty any
	if err := json.Unmarshal(res.Body, &pretty); err != nil {
		_, err = out.Write(append(res.Body, '\n'))
		return err
	}
	return printJSON(out, pretty)
}

func summarize(ctx context.Context, mgr *session.Manager, args []string, out io.Writer) error {
	fs := newFlagSet("earnings")
	rawPeriod := fs.String("period", "week", "week or month")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	period, err := earnings.ParsePeriod(*rawPeriod)
	if err != nil {
		return err
	}

	if !mgr.Restore(ctx) {
		return errNotLoggedIn
	}

	var tutorID int64
	if mgr.IsTutor() {
		tutorID, _ = mgr.TutorID()
	}
	verified := true
	sessions, err := service.NewSessionService(mgr.API()).List(ctx, service.SessionFilter{TutorID: tutorID, Verified: &verified})
	if err != nil {
		return err
	}
	gigs, err := service.NewGigService(mgr.API()).List(ctx, tutorID)
	if err != nil {
		return err
	}

	state := mgr.State()
	rate := earnings.FallbackRate(state.Tutor, state.TutorProfile)
	return printJSON(out, earnings.Summarize(sessions, gigs, period, rate))
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func defaultStorePath() string {
	if p := os.Getenv("TUTORCTL_STORE"); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		slog.Debug("no user config dir, using working directory", "error", err)
		return ".tutorctl.json"
	}
	return filepath.Join(dir, "tutorctl", "tokens.json")
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
