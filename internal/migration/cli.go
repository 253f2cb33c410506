package migration

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
)

// ErrUnknownCommand is returned by Run for an unrecognized subcommand
var ErrUnknownCommand = errors.New("unknown migrate command")

// Usage lists the subcommands accepted by Run
const Usage = `Migrate commands:
  up              Apply all pending migrations
  down            Roll back the last migration
  down-all        Roll back every migration
  steps <n>       Apply (n>0) or roll back (n<0) n migrations
  goto <version>  Migrate to a specific version
  force <version> Set the version without running migrations
  version         Show the current version
  status          List migrations and whether they are applied
  info            Show a migration summary`

// CLI renders migrator operations as text for `pageflow migrate`.
type CLI struct {
	migrator Migrator
	output   io.Writer
}

// NewCLI writes to stdout until SetOutput is called.
func NewCLI(migrator Migrator) *CLI {
	return &CLI{migrator: migrator, output: os.Stdout}
}

func (c *CLI) SetOutput(w io.Writer) {
	c.output = w
}

// Run dispatches a migrate subcommand, e.g. []string{"steps", "-1"}
func (c *CLI) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: missing subcommand", ErrUnknownCommand)
	}
	cmd := args[0]

	switch cmd {
	case "up":
		return c.change(ctx, "Applying pending migrations", c.migrator.Up)
	case "down":
		return c.change(ctx, "Rolling back the last migration", c.migrator.Down)
	case "down-all":
		return c.change(ctx, "Rolling back all migrations", c.migrator.DownAll)
	case "version":
		return c.printVersion(ctx)
	case "status":
		return c.printStatus(ctx)
	case "info":
		return c.printInfo(ctx)
	case "steps", "goto", "force":
	default:
		return fmt.Errorf("%w: %s", ErrUnknownCommand, cmd)
	}

	// 以下子命令都需要一个整数参数
	if len(args) < 2 {
		return fmt.Errorf("%s requires an argument", cmd)
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("%s: invalid number %q", cmd, args[1])
	}

	switch cmd {
	case "steps":
		if n == 0 {
			return errors.New("steps: n must not be zero")
		}
		return c.change(ctx, fmt.Sprintf("Moving %+d migration(s)", n), func(ctx context.Context) error {
			return c.migrator.Steps(ctx, n)
		})
	case "goto":
		if n < 0 {
			return errors.New("goto: version must not be negative")
		}
		return c.change(ctx, fmt.Sprintf("Migrating to version %d", n), func(ctx context.Context) error {
			return c.migrator.Goto(ctx, uint(n))
		})
	default:
		return c.change(ctx, fmt.Sprintf("Forcing version %d", n), func(ctx context.Context) error {
			return c.migrator.Force(ctx, n)
		})
	}
}

// change runs a version-changing operation and reports the resulting version.
func (c *CLI) change(ctx context.Context, what string, fn func(context.Context) error) error {
	fmt.Fprintf(c.output, "%s...\n", what)
	if err := fn(ctx); err != nil {
		return err
	}
	version, dirty, err := c.migrator.Version(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.output, "Done. Current version: %d%s\n", version, dirtySuffix(dirty))
	return nil
}

func (c *CLI) printVersion(ctx context.Context) error {
	version, dirty, err := c.migrator.Version(ctx)
	if err != nil {
		return err
	}
	if version == 0 {
		fmt.Fprintln(c.output, "No migrations applied yet.")
		return nil
	}
	fmt.Fprintf(c.output, "Current version: %d%s\n", version, dirtySuffix(dirty))
	return nil
}

func (c *CLI) printStatus(ctx context.Context) error {
	statuses, err := c.migrator.Status(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(c.output, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tNAME\tSTATUS")
	applied := 0
	for _, s := range statuses {
		state := "pending"
		switch {
		case s.Dirty:
			state = "dirty"
		case s.Applied:
			state = "applied"
		}
		if s.Applied {
			applied++
		}
		fmt.Fprintf(w, "%06d\t%s\t%s\n", s.Version, s.Name, state)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(c.output, "\nTotal: %d, Applied: %d, Pending: %d\n", len(statuses), applied, len(statuses)-applied)
	return nil
}

func (c *CLI) printInfo(ctx context.Context) error {
	info, err := c.migrator.Info(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(c.output, 0, 0, 1, ' ', 0)
	fmt.Fprintf(w, "Current Version:\t%d\n", info.CurrentVersion)
	fmt.Fprintf(w, "Dirty:\t%v\n", info.Dirty)
	fmt.Fprintf(w, "Total Migrations:\t%d\n", info.TotalMigrations)
	fmt.Fprintf(w, "Applied Migrations:\t%d\n", info.AppliedMigrations)
	fmt.Fprintf(w, "Pending Migrations:\t%d\n", info.PendingMigrations)
	return w.Flush()
}

func dirtySuffix(dirty bool) string {
	if dirty {
		return " (dirty)"
	}
	return ""
}
