package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"text/tabwriter"

	"github.com/sde1000/quicktill-sub001/internal/app"
	"github.com/sde1000/quicktill-sub001/internal/dto"
	"github.com/sde1000/quicktill-sub001/internal/infra"
	"github.com/sde1000/quicktill-sub001/internal/repository"
	"github.com/sde1000/quicktill-sub001/internal/worker"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

var reallyFlag = &cli.BoolFlag{Name: "really", Usage: "proceed even though the database holds sessions or stock"}

// ── Users ────────────────────────────────────────────────────────────────────

var addUserCmd = &cli.Command{
	Name:      "adduser",
	Usage:     "add a user, typically the first superuser of a new site",
	ArgsUsage: "FULLNAME SHORTNAME",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "superuser", Usage: "the user passes every permission check"},
		&cli.StringFlag{Name: "password", Usage: "login password"},
		&cli.StringSliceFlag{Name: "token", Usage: "user token (repeatable)"},
		&cli.StringSliceFlag{Name: "permission", Usage: "permission to grant (repeatable)"},
		&cli.StringSliceFlag{Name: "group", Usage: "group to join (repeatable)"},
	},
	Action: withApp(func(ctx context.Context, c *cli.Context, a *app.App) error {
		if c.NArg() != 2 {
			return cli.Exit("adduser needs FULLNAME and SHORTNAME", 1)
		}
		req := dto.CreateUserRequest{
			FullName:    c.Args().Get(0),
			ShortName:   c.Args().Get(1),
			Superuser:   c.Bool("superuser"),
			Permissions: c.StringSlice("permission"),
			Groups:      c.StringSlice("group"),
		}
		if c.IsSet("password") {
			pw := c.String("password")
			req.Password = &pw
		}
		u, err := a.Users.CreateUser(ctx, req)
		if err != nil {
			return err
		}
		for _, tok := range c.StringSlice("token") {
			if _, err := a.Users.AddToken(ctx, u.ID, dto.AddTokenRequest{Token: tok, Description: "added by adduser"}); err != nil {
				return err
			}
		}
		fmt.Fprintf(c.App.Writer, "User %d (%s) added\n", u.ID, u.FullName)
		return nil
	}),
}

var listUsersCmd = &cli.Command{
	Name:  "listusers",
	Usage: "list users",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "all", Usage: "include disabled users"},
	},
	Action: withApp(func(ctx context.Context, c *cli.Context, a *app.App) error {
		users, err := a.Users.ListUsers(ctx, c.Bool("all"))
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tSHORT\tFLAGS\tTOKENS")
		for _, u := range users {
			var flags []string
			if !u.Enabled {
				flags = append(flags, "disabled")
			}
			if u.Superuser {
				flags = append(flags, "superuser")
			}
			if u.HasPassword {
				flags = append(flags, "password")
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", u.ID, u.FullName, u.ShortName,
				strings.Join(flags, ","), strings.Join(u.Tokens, " "))
		}
		return w.Flush()
	}),
}

var showUserTokenCmd = &cli.Command{
	Name:      "show-usertoken",
	Usage:     "show who a user token belongs to and when it was last used",
	ArgsUsage: "TOKEN",
	Action: withApp(func(ctx context.Context, c *cli.Context, a *app.App) error {
		if c.NArg() != 1 {
			return cli.Exit("show-usertoken needs TOKEN", 1)
		}
		t, err := a.Users.ShowToken(ctx, c.Args().First())
		if err != nil {
			return err
		}
		out := c.App.Writer
		fmt.Fprintf(out, "Token:       %s\n", t.Token)
		fmt.Fprintf(out, "Description: %s\n", t.Description)
		if t.UserID != nil {
			fmt.Fprintf(out, "User:        %d (%s)\n", *t.UserID, t.UserName)
		} else {
			fmt.Fprintln(out, "User:        none")
		}
		if t.LastSeen != nil {
			fmt.Fprintf(out, "Last seen:   %s\n", t.LastSeen.Format("2006-01-02 15:04:05"))
		}
		if t.LastSuccessfulLogin != nil {
			fmt.Fprintf(out, "Last login:  %s\n", t.LastSuccessfulLogin.Format("2006-01-02 15:04:05"))
		}
		return nil
	}),
}

var anonymiseUsersCmd = &cli.Command{
	Name:  "anonymise-users",
	Usage: "remove names, passwords and tokens of disabled users",
	Flags: []cli.Flag{reallyFlag},
	Action: withApp(func(ctx context.Context, c *cli.Context, a *app.App) error {
		if !c.Bool("really") {
			return cli.Exit("this cannot be undone; run again with --really", 1)
		}
		n, err := a.Users.Anonymise(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "%d users anonymised\n", n)
		return nil
	}),
}

// ── Site configuration ───────────────────────────────────────────────────────

var configCmd = &cli.Command{
	Name:  "config",
	Usage: "show or change site configuration",
	Subcommands: []*cli.Command{
		{
			Name:  "list",
			Usage: "show every item",
			Action: withApp(func(ctx context.Context, c *cli.Context, a *app.App) error {
				items, err := a.Site.List(ctx)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
				for _, it := range items {
					mark := ""
					if it.Overridden {
						mark = " (overridden)"
					}
					fmt.Fprintf(w, "%s\t%s%s\t%s\n", it.Key, it.Value, mark, it.Description)
				}
				return w.Flush()
			}),
		},
		{
			Name:      "get",
			ArgsUsage: "KEY",
			Action: withApp(func(ctx context.Context, c *cli.Context, a *app.App) error {
				if c.NArg() != 1 {
					return cli.Exit("config get needs KEY", 1)
				}
				it, err := a.Site.Get(ctx, c.Args().First())
				if err != nil {
					return err
				}
				fmt.Fprintln(c.App.Writer, it.Value)
				return nil
			}),
		},
		{
			Name:      "set",
			ArgsUsage: "KEY VALUE",
			Action: withApp(func(ctx context.Context, c *cli.Context, a *app.App) error {
				if c.NArg() != 2 {
					return cli.Exit("config set needs KEY and VALUE", 1)
				}
				it, err := a.Site.Set(ctx, c.Args().Get(0), c.Args().Get(1))
				if err != nil {
					return err
				}
				fmt.Fprintf(c.App.Writer, "%s = %s\n", it.Key, it.Value)
				return nil
			}),
		},
	},
}

// ── Database ─────────────────────────────────────────────────────────────────

var dbShellCmd = &cli.Command{
	Name:  "dbshell",
	Usage: "run psql against the till database",
	Action: withApp(func(ctx context.Context, c *cli.Context, a *app.App) error {
		cmd := exec.CommandContext(ctx, "psql", a.Cfg.DatabaseURL)
		cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
		return cmd.Run()
	}),
}

var syncDBCmd = &cli.Command{
	Name:  "syncdb",
	Usage: "create missing tables and constraints, and load the permission catalogue",
	Action: withApp(func(ctx context.Context, c *cli.Context, a *app.App) error {
		if err := a.Prepare(ctx); err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, "Database is up to date")
		return nil
	}),
}

var flushDBCmd = &cli.Command{
	Name:  "flushdb",
	Usage: "drop every table",
	Flags: []cli.Flag{reallyFlag},
	Action: withApp(func(ctx context.Context, c *cli.Context, a *app.App) error {
		if err := requireReally(ctx, c, a); err != nil {
			return err
		}
		if err := infra.Flush(ctx, a.DB); err != nil {
			return err
		}
		log.Warn().Msg("database flushed")
		fmt.Fprintln(c.App.Writer, "All tables dropped")
		return nil
	}),
}

var checkDBCmd = &cli.Command{
	Name:  "checkdb",
	Usage: "check the stock and takings invariants",
	Action: withApp(func(ctx context.Context, c *cli.Context, a *app.App) error {
		violations, err := repository.CheckIntegrity(ctx, a.DB)
		if err != nil {
			return err
		}
		for _, v := range violations {
			fmt.Fprintf(c.App.Writer, "%s: %s\n", v.Check, v.Detail)
		}
		if len(violations) > 0 {
			return cli.Exit(fmt.Sprintf("%d problems found", len(violations)), 1)
		}
		fmt.Fprintln(c.App.Writer, "No problems found")
		return nil
	}),
}

// ── Takings jobs ────────────────────────────────────────────────────────────

var failedJobsCmd = &cli.Command{
	Name:  "failedjobs",
	Usage: "list takings exports and reports the till gave up on",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "queue", Value: "export", Usage: "export or report"},
		&cli.Int64Flag{Name: "limit", Value: 20, Usage: "most recent failures to show"},
	},
	Action: withApp(func(ctx context.Context, c *cli.Context, a *app.App) error {
		if a.RDB == nil {
			return cli.Exit("failed jobs are kept in redis; run without --no-redis", 1)
		}
		var queue string
		switch c.String("queue") {
		case "export":
			queue = worker.QueueTakingsExport
		case "report":
			queue = worker.QueueTakingsReport
		default:
			return cli.Exit("--queue must be export or report", 1)
		}
		jobs, err := worker.NewFailedJobs(a.RDB).List(ctx, queue, c.Int64("limit"))
		if err != nil {
			return err
		}
		if len(jobs) == 0 {
			fmt.Fprintln(c.App.Writer, "Nothing has failed")
			return nil
		}
		w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "FAILED AT\tSESSION\tATTEMPTS\tREASON")
		for _, j := range jobs {
			fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", j.FailedAt.Local().Format("2006-01-02 15:04"), j.SessionID, j.Attempts, j.Reason)
		}
		return w.Flush()
	}),
}

// requireReally refuses a destructive command on a database in use
// unless --really was given.
func requireReally(ctx context.Context, c *cli.Context, a *app.App) error {
	if c.Bool("really") {
		return nil
	}
	empty, err := infra.IsEmpty(ctx, a.DB)
	if err != nil {
		return err
	}
	if !empty {
		return cli.Exit("the database holds sessions or stock; run again with --really", 1)
	}
	return nil
}
