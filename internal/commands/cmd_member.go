package commands

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"
	"unicode/utf8"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/cueline/internal/app"
	"github.com/colonyops/cueline/internal/core/roster"
	"github.com/colonyops/cueline/internal/data/stores"
)

type MemberCmd struct {
	flags *Flags
	app   *app.App
}

// NewMemberCmd creates a new member command
func NewMemberCmd(flags *Flags, a *app.App) *MemberCmd {
	return &MemberCmd{flags: flags, app: a}
}

// Register adds the member command to the application
func (cmd *MemberCmd) Register(root *cli.Command) *cli.Command {
	root.Commands = append(root.Commands, &cli.Command{
		Name:      "member",
		Usage:     "Manage the roster",
		UsageText: "cueline member <add|ls|unlink> [args]",
		Commands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Add a member to the roster",
				UsageText: "cueline member add <name>",
				Action:    cmd.add,
			},
			{
				Name:      "ls",
				Usage:     "List active members",
				Action:    cmd.ls,
			},
			{
				Name:      "unlink",
				Usage:     "Remove a member's chat account link",
				UsageText: "cueline member unlink <name>",
				Action:    cmd.unlink,
			},
		},
	})

	return root
}

func (cmd *MemberCmd) add(ctx context.Context, c *cli.Command) error {
	name := strings.TrimSpace(c.Args().First())
	if name == "" {
		return fmt.Errorf("member name is required")
	}
	if utf8.RuneCountInString(name) > roster.MaxNameLength {
		return fmt.Errorf("member name exceeds %d characters", roster.MaxNameLength)
	}

	m, err := cmd.app.Members.Create(ctx, roster.Member{
		Name:      name,
		Active:    true,
		CreatedAt: time.Now(),
	})
	if err != nil {
		if stores.IsUniqueViolation(err) {
			return fmt.Errorf("member %q already exists", name)
		}
		return fmt.Errorf("create member: %w", err)
	}

	fmt.Printf("Added member %s (id %d)\n", m.Name, m.ID)
	return nil
}

func (cmd *MemberCmd) ls(ctx context.Context, c *cli.Command) error {
	members, err := cmd.app.Members.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list members: %w", err)
	}

	if len(members) == 0 {
		fmt.Fprintln(os.Stderr, "No members found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tLINKED")
	for _, m := range members {
		linked := "no"
		if m.Linked() {
			linked = "yes"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\n", m.ID, m.Name, linked)
	}
	return w.Flush()
}

func (cmd *MemberCmd) unlink(ctx context.Context, c *cli.Command) error {
	name := strings.TrimSpace(c.Args().First())
	if name == "" {
		return fmt.Errorf("member name is required")
	}

	m, err := cmd.app.Members.GetByName(ctx, name)
	if err != nil {
		return fmt.Errorf("find member: %w", err)
	}
	if err := cmd.app.Members.SetLineUserID(ctx, m.ID, ""); err != nil {
		return fmt.Errorf("unlink member: %w", err)
	}

	fmt.Printf("Unlinked %s\n", m.Name)
	return nil
}
