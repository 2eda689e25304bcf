// Command zalogactl inspects a zaloga database from the command line.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/erazemk/zaloga/internal/bootstrap"
	"github.com/erazemk/zaloga/internal/config"
	"github.com/erazemk/zaloga/internal/db"
	"github.com/erazemk/zaloga/internal/model"
	"github.com/erazemk/zaloga/internal/stock"
	"github.com/erazemk/zaloga/internal/store"
)

const usage = `Usage: zalogactl <command> [flags]

Commands:
  init        create the schema and the first admin account
  stock       show stock levels, for every owner or one (-owner)
  history     show the ledger entries of one item
  proposals   list transfer proposals (-status, -owner)

Common flags:
  -c, -config <path>   YAML config file
  -d, -db <dsn>        database DSN (overrides config and ZALOGA_DB_DSN)
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "init":
		err = cmdInit(os.Args[2:], os.Stdout)
	case "stock":
		err = cmdStock(os.Args[2:], os.Stdout)
	case "history":
		err = cmdHistory(os.Args[2:], os.Stdout)
	case "proposals":
		err = cmdProposals(os.Args[2:], os.Stdout)
	case "-h", "-help", "help":
		fmt.Fprint(os.Stdout, usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n%s", os.Args[1], usage)
		os.Exit(1)
	}
	if err != nil && err != flag.ErrHelp {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// command holds the flags every subcommand accepts.
type command struct {
	fs         *flag.FlagSet
	configPath string
	dsn        string
}

func newCommand(name string) *command {
	c := &command{fs: flag.NewFlagSet(name, flag.ContinueOnError)}
	c.fs.StringVar(&c.configPath, "config", "", "YAML config file")
	c.fs.StringVar(&c.configPath, "c", "", "YAML config file")
	c.fs.StringVar(&c.dsn, "db", "", "database DSN")
	c.fs.StringVar(&c.dsn, "d", "", "database DSN")
	return c
}

// open parses args and opens the configured database.
func (c *command) open(args []string) (*db.DB, *config.Config, error) {
	if err := c.fs.Parse(args); err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, nil, err
	}
	cfg.ApplyEnv(os.Getenv)
	if c.dsn != "" {
		cfg.Database.DSN = c.dsn
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	database, err := bootstrap.Open(cfg)
	if err != nil {
		return nil, nil, err
	}
	return database, cfg, nil
}

func engine(database *db.DB) *stock.Engine {
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	return stock.New(database, &store.Catalog{DB: database}, stock.WithLogger(quiet))
}

func cmdInit(args []string, out io.Writer) error {
	c := newCommand("init")
	var username string
	c.fs.StringVar(&username, "user", "", "admin username (default from config)")
	c.fs.StringVar(&username, "u", "", "admin username (default from config)")

	database, cfg, err := c.open(args)
	if err != nil {
		return err
	}
	defer database.Close()

	if username == "" {
		username = cfg.Admin.Username
	}
	password, created, err := bootstrap.EnsureAdmin(context.Background(), database, username)
	if err != nil {
		return err
	}
	if !created {
		return fmt.Errorf("database %s already has users", cfg.Database.DSN)
	}

	fmt.Fprintf(out, "Database ready: %s\n", cfg.Database.DSN)
	fmt.Fprintln(out, "Schema initialized.")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Admin account created:")
	fmt.Fprintf(out, "  Username: %s\n", username)
	fmt.Fprintf(out, "  Password: %s\n", password)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Save this password, it cannot be recovered.")
	return nil
}

func cmdStock(args []string, out io.Writer) error {
	c := newCommand("stock")
	var ownerID int64
	c.fs.Int64Var(&ownerID, "owner", 0, "only show this owner")

	database, _, err := c.open(args)
	if err != nil {
		return err
	}
	defer database.Close()

	ctx := context.Background()
	var levels []model.StockLevel
	if ownerID > 0 {
		levels, err = store.StockByOwner(ctx, database, ownerID)
	} else {
		levels, err = store.ListStock(ctx, database)
	}
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "OWNER\tTYPE\tDEFINITION\tSTATUS\tQUANTITY\tRESERVED")
	for _, l := range levels {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d %s\t%d\n",
			l.OwnerName, l.OwnerType, l.Name, l.Status, l.Quantity, l.Unit, l.Reserved)
	}
	return tw.Flush()
}

func cmdHistory(args []string, out io.Writer) error {
	c := newCommand("history")
	database, _, err := c.open(args)
	if err != nil {
		return err
	}
	defer database.Close()

	if c.fs.NArg() != 1 {
		return fmt.Errorf("usage: zalogactl history [flags] <item-id>")
	}

	entries, err := engine(database).ItemHistory(context.Background(), c.fs.Arg(0))
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tACTION\tFROM\tTO\tDELTA\tACTOR\tPROPOSAL\tNOTES")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%+d\t%d\t%s\t%s\n",
			e.CreatedAt.Format("2006-01-02 15:04:05"), e.Action, ownerRef(e.FromOwnerID), ownerRef(e.ToOwnerID),
			e.QuantityDelta, e.ActorID, e.ProposalID, e.Notes)
	}
	return tw.Flush()
}

func cmdProposals(args []string, out io.Writer) error {
	c := newCommand("proposals")
	var status string
	var ownerID int64
	c.fs.StringVar(&status, "status", "", "only proposals in this status")
	c.fs.Int64Var(&ownerID, "owner", 0, "only proposals from or to this owner")

	database, _, err := c.open(args)
	if err != nil {
		return err
	}
	defer database.Close()

	proposals, err := engine(database).ListProposals(context.Background(), store.ProposalFilter{
		Status:  model.ProposalStatus(status),
		OwnerID: ownerID,
	})
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSCOPE\tFROM\tTO\tSTATUS\tLINES\tCREATED")
	for _, p := range proposals {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%d\t%s\n",
			p.ID, p.ScopeType, p.FromOwnerID, p.ToOwnerID, p.Status, len(p.Lines),
			p.CreatedAt.Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

func ownerRef(id *int64) string {
	if id == nil {
		return "-"
	}
	return fmt.Sprint(*id)
}
