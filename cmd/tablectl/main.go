package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/coder/quartz"
	log "github.com/sirupsen/logrus"

	configs "github.com/avvvet/pokerclub-services/configs"
	"github.com/avvvet/pokerclub-services/internal/tablesvc/config"
	"github.com/avvvet/pokerclub-services/internal/tablesvc/db"
	"github.com/avvvet/pokerclub-services/internal/tablesvc/service"
	"github.com/avvvet/pokerclub-services/internal/tablesvc/store"
)

var cli struct {
	Debug    bool   `help:"enable debug logging"`
	Database string `help:"postgres url, defaults to DATABASE_URL" env:"DATABASE_URL"`

	Migrate MigrateCmd `cmd:"" help:"apply or roll back the schema"`
	Invite  InviteCmd  `cmd:"" help:"manage invite tokens"`
	Hands   HandsCmd   `cmd:"" help:"inspect hand history"`
	Tables  TablesCmd  `cmd:"" help:"inspect stored tables"`
}

type MigrateCmd struct {
	Down bool `help:"roll back every migration"`
}

type InviteCmd struct {
	Create  InviteCreateCmd  `cmd:"" help:"issue an invite for a table"`
	Resolve InviteResolveCmd `cmd:"" help:"show an invite without consuming it"`
}

type InviteCreateCmd struct {
	TableID string        `arg:"" help:"table id"`
	Expires time.Duration `help:"lifetime, 0 never expires" default:"168h"`
	MaxUses int           `help:"number of joins allowed" default:"100"`
}

type InviteResolveCmd struct {
	Token string `arg:"" help:"invite token"`
}

type HandsCmd struct {
	List    HandsListCmd    `cmd:"" help:"list a table's hands, newest first"`
	Actions HandsActionsCmd `cmd:"" help:"list a hand's actions in play order"`
}

type HandsListCmd struct {
	TableID string `arg:"" help:"table id"`
	Limit   int    `help:"page size" default:"50"`
	Offset  int    `help:"rows to skip" default:"0"`
}

type HandsActionsCmd struct {
	HandID int64 `arg:"" help:"hand id"`
}

type TablesCmd struct {
	List TablesListCmd `cmd:"" help:"list every table with its players"`
}

type TablesListCmd struct{}

// app carries what every command needs once flags are parsed.
type app struct {
	ctx context.Context
	cfg config.Config
	out io.Writer
}

func main() {
	setupLogger(false)
	configs.LoadEnv("tablectl")

	ctx := kong.Parse(&cli,
		kong.Name("tablectl"),
		kong.Description("Operator tooling for the table service"),
		kong.UsageOnError(),
	)

	setupLogger(cli.Debug)

	cfg := config.Load()
	if cli.Database != "" {
		cfg.DBUrl = cli.Database
	}

	a := &app{ctx: context.Background(), cfg: cfg, out: os.Stdout}
	if err := ctx.Run(a); err != nil {
		fmt.Fprintf(os.Stderr, "tablectl: %v\n", err)
		os.Exit(1)
	}
}

func setupLogger(debug bool) {
	log.SetOutput(os.Stderr)
	log.SetFormatter(&log.TextFormatter{})
	if debug {
		log.SetLevel(log.DebugLevel)
		return
	}
	log.SetLevel(log.WarnLevel)
}

func (cmd *MigrateCmd) Run(a *app) error {
	if cmd.Down {
		return db.MigrateDown(a.cfg.DBUrl)
	}
	return db.Migrate(a.cfg.DBUrl)
}

func (cmd *InviteCreateCmd) Run(a *app) error {
	return a.withStores(func(s stores) error {
		secs := int64(cmd.Expires / time.Second)
		maxUses := cmd.MaxUses
		created, err := s.invites.Create(a.ctx, service.CreateInvite{
			TableID:          cmd.TableID,
			ExpiresInSeconds: &secs,
			MaxUses:          &maxUses,
		})
		if err != nil {
			return err
		}
		return a.print(created)
	})
}

func (cmd *InviteResolveCmd) Run(a *app) error {
	return a.withStores(func(s stores) error {
		res, err := s.invites.Resolve(a.ctx, cmd.Token)
		if err != nil {
			return err
		}
		return a.print(res)
	})
}

func (cmd *HandsListCmd) Run(a *app) error {
	return a.withStores(func(s stores) error {
		hands, err := s.hands.ListHands(a.ctx, cmd.TableID, cmd.Limit, cmd.Offset)
		if err != nil {
			return err
		}
		return a.print(hands)
	})
}

func (cmd *HandsActionsCmd) Run(a *app) error {
	return a.withStores(func(s stores) error {
		actions, err := s.hands.ListActions(a.ctx, cmd.HandID)
		if err != nil {
			return err
		}
		return a.print(actions)
	})
}

func (cmd *TablesListCmd) Run(a *app) error {
	return a.withStores(func(s stores) error {
		tables, err := s.tables.LoadAll(a.ctx)
		if err != nil {
			return err
		}
		return a.print(tables)
	})
}

type stores struct {
	tables  *service.TableService
	hands   *service.HandService
	invites *service.InviteService
}

func (a *app) withStores(fn func(stores) error) error {
	pool, err := db.Connect(a.ctx, a.cfg.DBUrl, 2)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer db.Close(pool)

	tableStore := store.NewTableStore(pool)
	return fn(stores{
		tables: service.NewTableService(tableStore),
		hands:  service.NewHandService(store.NewHandStore(pool)),
		invites: service.NewInviteService(store.NewInviteStore(pool, quartz.NewReal()), tableStore,
			a.cfg.DefaultInviteTTL, a.cfg.DefaultInviteMaxUses, a.cfg.PublicWSURL),
	})
}

func (a *app) print(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
