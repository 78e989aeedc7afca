package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/jacentio/conference/conference"
	"github.com/jacentio/conference/model"
	"github.com/jacentio/conference/query"
)

type runFunc func(ctx context.Context, svc *conference.Service, fs *flag.FlagSet, args []string) (any, error)

type command struct {
	name  string
	usage string
	run   runFunc
}

var commands = []command{
	{
		name:  "profile",
		usage: "profile",
		run:   runProfile,
	},
	{
		name:  "save-profile",
		usage: "save-profile [-display-name NAME] [-tee-shirt SIZE]",
		run:   runSaveProfile,
	},
	{
		name:  "create-conference",
		usage: "create-conference -name NAME [conference flags]",
		run:   runCreateConference,
	},
	{
		name:  "update-conference",
		usage: "update-conference [conference flags] KEY",
		run:   runUpdateConference,
	},
	{
		name:  "conference",
		usage: "conference KEY",
		run: withKey(func(ctx context.Context, svc *conference.Service, key string) (any, error) {
			return svc.GetConference(ctx, key)
		}),
	},
	{
		name:  "conferences-created",
		usage: "conferences-created",
		run: noArgs(func(ctx context.Context, svc *conference.Service) (any, error) {
			return svc.ConferencesCreated(ctx)
		}),
	},
	{
		name:  "query",
		usage: "query [-filter FIELD:OPERATOR:VALUE]...",
		run:   runQuery,
	},
	{
		name:  "attending",
		usage: "attending",
		run: noArgs(func(ctx context.Context, svc *conference.Service) (any, error) {
			return svc.ConferencesToAttend(ctx)
		}),
	},
	{
		name:  "register",
		usage: "register KEY",
		run: withKey(func(ctx context.Context, svc *conference.Service, key string) (any, error) {
			return svc.Register(ctx, key)
		}),
	},
	{
		name:  "unregister",
		usage: "unregister KEY",
		run: withKey(func(ctx context.Context, svc *conference.Service, key string) (any, error) {
			return svc.Unregister(ctx, key)
		}),
	},
	{
		name:  "create-session",
		usage: "create-session -name NAME -speaker NAME [session flags] CONFERENCE_KEY",
		run:   runCreateSession,
	},
	{
		name:  "sessions",
		usage: "sessions [-type TYPE] CONFERENCE_KEY",
		run:   runSessions,
	},
	{
		name:  "speaker-sessions",
		usage: "speaker-sessions NAME",
		run: withKey(func(ctx context.Context, svc *conference.Service, name string) (any, error) {
			return svc.SessionsBySpeaker(ctx, name)
		}),
	},
	{
		name:  "wishlist-add",
		usage: "wishlist-add SESSION_KEY",
		run: withKey(func(ctx context.Context, svc *conference.Service, key string) (any, error) {
			return svc.AddSessionToWishlist(ctx, key)
		}),
	},
	{
		name:  "wishlist-remove",
		usage: "wishlist-remove SESSION_KEY",
		run: withKey(func(ctx context.Context, svc *conference.Service, key string) (any, error) {
			return svc.RemoveSessionFromWishlist(ctx, key)
		}),
	},
	{
		name:  "wishlist",
		usage: "wishlist",
		run: noArgs(func(ctx context.Context, svc *conference.Service) (any, error) {
			return svc.SessionsInWishlist(ctx)
		}),
	},
	{
		name:  "announcement",
		usage: "announcement",
		run: noArgs(func(ctx context.Context, svc *conference.Service) (any, error) {
			return svc.Announcement(ctx)
		}),
	},
}

// execute runs the command named by args[0] and writes its result to out as
// JSON.
func execute(ctx context.Context, svc *conference.Service, args []string, out io.Writer) error {
	for _, cmd := range commands {
		if cmd.name != args[0] {
			continue
		}
		fs := flag.NewFlagSet(cmd.name, flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		result, err := cmd.run(ctx, svc, fs, args[1:])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	return fmt.Errorf("unknown command %q, run conferencectl help", args[0])
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: conferencectl <command> [flags] [args]")
	fmt.Fprintln(w, "\ncommands:")
	for _, cmd := range commands {
		fmt.Fprintf(w, "  %s\n", cmd.usage)
	}
}

func noArgs(fn func(ctx context.Context, svc *conference.Service) (any, error)) runFunc {
	return func(ctx context.Context, svc *conference.Service, fs *flag.FlagSet, args []string) (any, error) {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		if fs.NArg() != 0 {
			return nil, fmt.Errorf("%s: unexpected arguments %q", fs.Name(), fs.Args())
		}
		return fn(ctx, svc)
	}
}

func withKey(fn func(ctx context.Context, svc *conference.Service, key string) (any, error)) runFunc {
	return func(ctx context.Context, svc *conference.Service, fs *flag.FlagSet, args []string) (any, error) {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		key, err := oneArg(fs)
		if err != nil {
			return nil, err
		}
		return fn(ctx, svc, key)
	}
}

func oneArg(fs *flag.FlagSet) (string, error) {
	if fs.NArg() != 1 {
		return "", fmt.Errorf("%s: expected exactly one argument, got %d", fs.Name(), fs.NArg())
	}
	return fs.Arg(0), nil
}

func runProfile(ctx context.Context, svc *conference.Service, fs *flag.FlagSet, args []string) (any, error) {
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	p, err := svc.GetProfile(ctx)
	if err != nil {
		return nil, err
	}
	return p.View(), nil
}

func runSaveProfile(ctx context.Context, svc *conference.Service, fs *flag.FlagSet, args []string) (any, error) {
	var form model.ProfileMiniForm
	fs.StringVar(&form.DisplayName, "display-name", "", "display name")
	fs.StringVar(&form.TeeShirtSize, "tee-shirt", "", "tee shirt size, e.g. M_M")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	p, err := svc.SaveProfile(ctx, form)
	if err != nil {
		return nil, err
	}
	return p.View(), nil
}

func runCreateConference(ctx context.Context, svc *conference.Service, fs *flag.FlagSet, args []string) (any, error) {
	form, err := conferenceForm(fs, args)
	if err != nil {
		return nil, err
	}
	return svc.CreateConference(ctx, form)
}

func runUpdateConference(ctx context.Context, svc *conference.Service, fs *flag.FlagSet, args []string) (any, error) {
	form, err := conferenceForm(fs, args)
	if err != nil {
		return nil, err
	}
	key, err := oneArg(fs)
	if err != nil {
		return nil, err
	}
	return svc.UpdateConference(ctx, key, form)
}

// conferenceForm parses the conference flags. -max is only applied when it
// was given, so that an update can leave the capacity alone.
func conferenceForm(fs *flag.FlagSet, args []string) (model.ConferenceForm, error) {
	var (
		form     model.ConferenceForm
		topics   string
		capacity int
	)
	fs.StringVar(&form.Name, "name", "", "conference name")
	fs.StringVar(&form.Description, "description", "", "description")
	fs.StringVar(&form.City, "city", "", "city")
	fs.StringVar(&topics, "topics", "", "comma separated topics")
	fs.StringVar(&form.StartDate, "start", "", "start date, YYYY-MM-DD")
	fs.StringVar(&form.EndDate, "end", "", "end date, YYYY-MM-DD")
	fs.IntVar(&capacity, "max", 0, "maximum attendees")
	if err := fs.Parse(args); err != nil {
		return form, err
	}
	if topics != "" {
		for _, t := range strings.Split(topics, ",") {
			if t = strings.TrimSpace(t); t != "" {
				form.Topics = append(form.Topics, t)
			}
		}
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "max" {
			form.MaxAttendees = &capacity
		}
	})
	return form, nil
}

// filterList collects repeated -filter FIELD:OPERATOR:VALUE flags.
type filterList []query.Filter

func (l *filterList) String() string {
	parts := make([]string, len(*l))
	for i, f := range *l {
		parts[i] = f.Field + ":" + f.Operator + ":" + f.Value
	}
	return strings.Join(parts, ",")
}

func (l *filterList) Set(s string) error {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 {
		return fmt.Errorf("filter %q is not FIELD:OPERATOR:VALUE", s)
	}
	*l = append(*l, query.Filter{Field: parts[0], Operator: parts[1], Value: parts[2]})
	return nil
}

func runQuery(ctx context.Context, svc *conference.Service, fs *flag.FlagSet, args []string) (any, error) {
	var filters filterList
	fs.Var(&filters, "filter", "FIELD:OPERATOR:VALUE, repeatable")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return svc.QueryConferences(ctx, filters)
}

func runCreateSession(ctx context.Context, svc *conference.Service, fs *flag.FlagSet, args []string) (any, error) {
	var form model.SessionForm
	fs.StringVar(&form.Name, "name", "", "session name")
	fs.StringVar(&form.SpeakerDisplayName, "speaker", "", "speaker display name")
	fs.StringVar(&form.Highlights, "highlights", "", "highlights")
	fs.StringVar(&form.Duration, "duration", "", "duration, HH:MM")
	fs.StringVar(&form.TypeOfSession, "type", "", "session type, e.g. KEYNOTE")
	fs.StringVar(&form.Date, "date", "", "date, YYYY-MM-DD")
	fs.StringVar(&form.StartTime, "start", "", "start time, HH:MM")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	key, err := oneArg(fs)
	if err != nil {
		return nil, err
	}
	return svc.CreateSession(ctx, key, form)
}

func runSessions(ctx context.Context, svc *conference.Service, fs *flag.FlagSet, args []string) (any, error) {
	typeOfSession := fs.String("type", "", "only sessions of this type")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	key, err := oneArg(fs)
	if err != nil {
		return nil, err
	}
	if *typeOfSession != "" {
		return svc.ConferenceSessionsByType(ctx, key, *typeOfSession)
	}
	return svc.ConferenceSessions(ctx, key)
}
