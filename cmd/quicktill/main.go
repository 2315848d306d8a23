// quicktill is the administrative command-line tool. It talks to the
// database directly and so acts with superuser rights.
package main

import (
	"context"
	"os"

	"github.com/sde1000/quicktill-sub001/internal/app"
	"github.com/sde1000/quicktill-sub001/internal/config"
	"github.com/sde1000/quicktill-sub001/internal/infra"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func main() {
	cliApp := &cli.App{
		Name:  "quicktill",
		Usage: "administer a till database",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "no-redis", Usage: "do not connect to redis (other terminals are not told about changes)"},
			&cli.BoolFlag{Name: "debug", Usage: "log at debug level"},
		},
		Before: func(c *cli.Context) error {
			env := "production"
			if c.Bool("debug") {
				env = "development"
			}
			app.SetupLogging(env)
			return nil
		},
		Commands: []*cli.Command{
			addUserCmd,
			listUsersCmd,
			showUserTokenCmd,
			anonymiseUsersCmd,
			configCmd,
			dbShellCmd,
			syncDBCmd,
			flushDBCmd,
			checkDBCmd,
			failedJobsCmd,
		},
	}
	if err := cliApp.Run(os.Args); err != nil {
		log.Error().Err(err).Msg("quicktill failed")
		os.Exit(1)
	}
}

// open builds the services for one command. Redis is optional.
func open(c *cli.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, cli.Exit("failed to load config: "+err.Error(), 1)
	}
	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		return nil, cli.Exit("cannot connect to the database: "+err.Error(), 1)
	}
	var rdb *redis.Client
	if !c.Bool("no-redis") {
		rdb, err = infra.NewRedis(cfg.RedisURL)
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable; continuing without it")
			rdb = nil
		}
	}
	return app.New(cfg, db, rdb)
}

// withApp runs fn with the wired services and the command's context.
func withApp(fn func(ctx context.Context, c *cli.Context, a *app.App) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		a, err := open(c)
		if err != nil {
			return err
		}
		if err := fn(c.Context, c, a); err != nil {
			if _, ok := err.(cli.ExitCoder); ok {
				return err
			}
			return cli.Exit(err.Error(), 1)
		}
		return nil
	}
}
