package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strconv"
	"time"

	"tutorhub-portal/internal/model"
	"tutorhub-portal/internal/service"
	"tutorhub-portal/internal/session"
)

// resourceCmd runs one "<resource> <action> [args]" invocation.
type resourceCmd func(ctx context.Context, mgr *session.Manager, action string, args []string, out io.Writer) error

var resources = map[string]resourceCmd{
	"gigs":     gigsCmd,
	"tutors":   tutorsCmd,
	"users":    usersCmd,
	"sessions": sessionsCmd,
}

func runResource(ctx context.Context, mgr *session.Manager, cmd resourceCmd, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	if !mgr.Restore(ctx) {
		return errNotLoggedIn
	}
	return cmd(ctx, mgr, args[0], args[1:], out)
}

func gigsCmd(ctx context.Context, mgr *session.Manager, action string, args []string, out io.Writer) error {
	gigs := service.NewGigService(mgr.API())

	switch action {
	case "list":
		fs := newFlagSet("gigs list")
		tutorID := fs.Int64("tutor", 0, "only gigs of this tutor")
		if err := fs.Parse(args); err != nil {
			return errUsage
		}
		list, err := gigs.List(ctx, *tutorID)
		if err != nil {
			return err
		}
		return printJSON(out, list)

	case "get":
		id, err := idArg(args)
		if err != nil {
			return err
		}
		g, err := gigs.Get(ctx, id)
		if err != nil {
			return err
		}
		return printJSON(out, g)

	case "create":
		fs := newFlagSet("gigs create")
		var g model.Gig
		fs.StringVar(&g.Title, "title", "", "gig title")
		fs.StringVar(&g.Subject, "subject", "", "subject")
		fs.Float64Var(&g.HourlyRate, "rate", 0, "hourly rate")
		if err := fs.Parse(args); err != nil {
			return errUsage
		}
		created, err := gigs.Create(ctx, g)
		if err != nil {
			return err
		}
		return printJSON(out, created)

	case "update":
		id, err := idArg(args)
		if err != nil {
			return err
		}
		g, err := gigs.Get(ctx, id)
		if err != nil {
			return err
		}
		fs := newFlagSet("gigs update")
		fs.StringVar(&g.Title, "title", g.Title, "gig title")
		fs.StringVar(&g.Subject, "subject", g.Subject, "subject")
		fs.Float64Var(&g.HourlyRate, "rate", g.HourlyRate, "hourly rate")
		fs.StringVar(&g.Status, "status", g.Status, "gig status")
		if err := fs.Parse(args[1:]); err != nil {
			return errUsage
		}
		updated, err := gigs.Update(ctx, g)
		if err != nil {
			return err
		}
		return printJSON(out, updated)

	case "delete":
		id, err := idArg(args)
		if err != nil {
			return err
		}
		if err := gigs.Delete(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(out, "deleted gig %d\n", id)
		return nil
	}
	return fmt.Errorf("unknown gigs action %q: %w", action, errUsage)
}

func tutorsCmd(ctx context.Context, mgr *session.Manager, action string, args []string, out io.Writer) error {
	tutors := service.NewTutorService(mgr.API())

	switch action {
	case "list":
		list, err := tutors.List(ctx)
		if err != nil {
			return err
		}
		return printJSON(out, list)

	case "get", "sessions":
		id, err := idArg(args)
		if err != nil {
			return err
		}
		if action == "get" {
			t, err := tutors.Get(ctx, id)
			if err != nil {
				return err
			}
			return printJSON(out, t)
		}
		list, err := tutors.Sessions(ctx, id)
		if err != nil {
			return err
		}
		return printJSON(out, list)
	}
	return fmt.Errorf("unknown tutors action %q: %w", action, errUsage)
}

func usersCmd(ctx context.Context, mgr *session.Manager, action string, args []string, out io.Writer) error {
	admin := service.NewAdminService(mgr.API())

	if action == "list" {
		users, err := admin.ListUsers(ctx)
		if err != nil {
			return err
		}
		return printJSON(out, users)
	}

	id, err := idArg(args)
	if err != nil {
		return err
	}
	var user model.User
	switch action {
	case "approve":
		user, err = admin.ApproveTutor(ctx, id)
	case "activate":
		user, err = admin.SetActive(ctx, id, true)
	case "deactivate":
		user, err = admin.SetActive(ctx, id, false)
	default:
		return fmt.Errorf("unknown users action %q: %w", action, errUsage)
	}
	if err != nil {
		return err
	}
	return printJSON(out, user)
}

func sessionsCmd(ctx context.Context, mgr *session.Manager, action string, args []string, out io.Writer) error {
	sessions := service.NewSessionService(mgr.API())

	switch action {
	case "list":
		fs := newFlagSet("sessions list")
		tutorID := fs.Int64("tutor", 0, "only sessions of this tutor")
		verified := fs.String("verified", "", "true or false")
		if err := fs.Parse(args); err != nil {
			return errUsage
		}
		filter := service.SessionFilter{TutorID: *tutorID}
		if *verified != "" {
			v, err := strconv.ParseBool(*verified)
			if err != nil {
				return fmt.Errorf("%w: -verified must be true or false", model.ErrInvalidInput)
			}
			filter.Verified = &v
		}
		list, err := sessions.List(ctx, filter)
		if err != nil {
			return err
		}
		return printJSON(out, list)

	case "create":
		fs := newFlagSet("sessions create")
		var ts model.TutoringSession
		fs.Int64Var(&ts.GigID, "gig", 0, "gig id")
		fs.Float64Var(&ts.Hours, "hours", 0, "length in hours")
		date := fs.String("date", "", "start time, RFC 3339 (default now)")
		if err := fs.Parse(args); err != nil {
			return errUsage
		}
		ts.Date = time.Now().UTC()
		if *date != "" {
			parsed, err := time.Parse(time.RFC3339, *date)
			if err != nil {
				return fmt.Errorf("%w: -date must be RFC 3339", model.ErrInvalidInput)
			}
			ts.Date = parsed
		}
		created, err := sessions.Create(ctx, ts)
		if err != nil {
			return err
		}
		return printJSON(out, created)

	case "verify":
		id, err := idArg(args)
		if err != nil {
			return err
		}
		verified, err := sessions.Verify(ctx, id)
		if err != nil {
			return err
		}
		return printJSON(out, verified)
	}
	return fmt.Errorf("unknown sessions action %q: %w", action, errUsage)
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func idArg(args []string) (int64, error) {
	if len(args) == 0 {
		return 0, errUsage
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: id must be a positive number, got %q", model.ErrInvalidInput, args[0])
	}
	return id, nil
}
