// seedsite loads the vocabulary a new pub needs before its first
// delivery (units, stock units, VAT bands, departments, payment methods)
// and creates a superuser.
// Usage: seedsite [--admin NAME] [--password PW]
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sde1000/quicktill-sub001/internal/app"
	"github.com/sde1000/quicktill-sub001/internal/apperr"
	"github.com/sde1000/quicktill-sub001/internal/config"
	"github.com/sde1000/quicktill-sub001/internal/dto"
	"github.com/sde1000/quicktill-sub001/internal/infra"
	"github.com/sde1000/quicktill-sub001/internal/repository"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"
)

func main() {
	cliApp := &cli.App{
		Name:  "seedsite",
		Usage: "load the starting vocabulary of a new site",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "admin", Value: "Site Manager", Usage: "full name of the superuser to create"},
			&cli.StringFlag{Name: "password", Usage: "superuser password (empty: token login only)"},
		},
		Action: run,
	}
	if err := cliApp.Run(os.Args); err != nil {
		log.Error().Err(err).Msg("seeding failed")
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	app.SetupLogging(cfg.Env)

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	a, err := app.New(cfg, db, nil)
	if err != nil {
		return fmt.Errorf("build services: %w", err)
	}

	ctx, cancel := context.WithTimeout(c.Context, time.Minute)
	defer cancel()
	if err := a.Prepare(ctx); err != nil {
		return fmt.Errorf("prepare database: %w", err)
	}
	if err := seed(ctx, a, c.String("admin"), c.String("password")); err != nil {
		return err
	}
	fmt.Println("Site seeded")
	return nil
}

func seed(ctx context.Context, a *app.App, admin, password string) error {
	d := decimal.RequireFromString
	cat := a.Catalogue

	units := []dto.CreateUnitRequest{
		{ID: "pt", Description: "Pints", BaseName: "pint", BaseNamePlural: "pints", ItemName: "pint", ItemNamePlural: "pints", UnitsPerItem: d("1")},
		{ID: "ml", Description: "Millilitres", BaseName: "ml", BaseNamePlural: "ml", ItemName: "bottle", ItemNamePlural: "bottles", UnitsPerItem: d("1")},
		{ID: "25ml", Description: "Spirit measures", BaseName: "25ml", BaseNamePlural: "25ml", ItemName: "bottle", ItemNamePlural: "bottles", UnitsPerItem: d("28")},
		{ID: "item", Description: "Items", BaseName: "item", BaseNamePlural: "items", ItemName: "item", ItemNamePlural: "items", UnitsPerItem: d("1")},
	}
	for _, u := range units {
		if _, err := cat.CreateUnit(ctx, u); skip(err, "unit", u.ID) != nil {
			return err
		}
	}

	stockUnits := []dto.CreateStockUnitRequest{
		{Name: "Firkin", UnitID: "pt", Size: d("72")},
		{Name: "Kilderkin", UnitID: "pt", Size: d("144")},
		{Name: "50l keg", UnitID: "pt", Size: d("88")},
		{Name: "70cl bottle", UnitID: "25ml", Size: d("1")},
		{Name: "750ml bottle", UnitID: "ml", Size: d("750")},
		{Name: "Single item", UnitID: "item", Size: d("1")},
		{Name: "Case of 24", UnitID: "item", Size: d("24")},
	}
	for _, su := range stockUnits {
		if _, err := cat.CreateStockUnit(ctx, su); skip(err, "stock unit", su.Name) != nil {
			return err
		}
	}

	bands := []dto.VatBandRequest{
		{Band: "A", Description: "Standard rate", Rate: d("20")},
		{Band: "Z", Description: "Zero rate", Rate: d("0")},
	}
	for _, b := range bands {
		if _, err := cat.CreateVatBand(ctx, b); skip(err, "VAT band", b.Band) != nil {
			return err
		}
	}

	depts := []dto.DepartmentRequest{
		{ID: 1, Description: "Real Ale", VatBand: "A"},
		{ID: 2, Description: "Keg", VatBand: "A"},
		{ID: 3, Description: "Real Cider", VatBand: "A"},
		{ID: 4, Description: "Spirits", VatBand: "A"},
		{ID: 5, Description: "Wine", VatBand: "A"},
		{ID: 6, Description: "Soft drinks", VatBand: "A"},
		{ID: 7, Description: "Snacks", VatBand: "A"},
		{ID: 8, Description: "Misc", VatBand: "Z"},
	}
	for _, dep := range depts {
		if _, err := cat.CreateDepartment(ctx, dep); skip(err, "department", dep.Description) != nil {
			return err
		}
	}

	payTypes := []dto.PayTypeRequest{
		{ID: "CASH", Description: "Cash", Order: 10, ChangeGiven: true},
		{ID: "CARD", Description: "Card", Order: 20},
	}
	for _, pt := range payTypes {
		if _, err := cat.CreatePayType(ctx, pt); skip(err, "payment method", pt.ID) != nil {
			return err
		}
	}

	users, err := a.Users.ListUsers(ctx, true)
	if err != nil {
		return err
	}
	if len(users) > 0 {
		log.Info().Msg("users already exist; not adding a superuser")
		return nil
	}
	req := dto.CreateUserRequest{FullName: admin, ShortName: "manager", Superuser: true}
	if password != "" {
		req.Password = &password
	}
	u, err := a.Users.CreateUser(ctx, req)
	if err != nil {
		return err
	}
	log.Info().Int64("user_id", u.ID).Str("name", u.FullName).Msg("superuser created")
	return nil
}

// skip turns "already exists" into a log line so seeding can be re-run.
func skip(err error, what, name string) error {
	if err == nil {
		return nil
	}
	if repository.IsDuplicate(err) || apperr.KindOf(err) == apperr.KindConflict {
		log.Info().Str(what, name).Msg("already present")
		return nil
	}
	return err
}
