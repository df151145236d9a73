package commands

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/cueline/internal/app"
	"github.com/colonyops/cueline/internal/tui"
)

type WatchCmd struct {
	flags *Flags
	app   *app.App

	// flags
	url string
}

// NewWatchCmd creates a new watch command
func NewWatchCmd(flags *Flags, a *app.App) *WatchCmd {
	return &WatchCmd{flags: flags, app: a}
}

// Register adds the watch command to the application
func (cmd *WatchCmd) Register(root *cli.Command) *cli.Command {
	root.Commands = append(root.Commands, &cli.Command{
		Name:      "watch",
		Usage:     "Watch the live run-sheet in the terminal",
		UsageText: "cueline watch [--url http://host:port]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "url",
				Usage:       "base URL of a running cueline server",
				Sources:     cli.EnvVars("CUELINE_URL"),
				Destination: &cmd.url,
			},
		},
		Action: cmd.run,
	})

	return root
}

func (cmd *WatchCmd) run(ctx context.Context, c *cli.Command) error {
	base := cmd.url
	if base == "" {
		addr := cmd.flags.Config.Server.Addr
		if strings.HasPrefix(addr, ":") {
			addr = "localhost" + addr
		}
		base = "http://" + addr
	}

	model := tui.NewModel(strings.TrimRight(base, "/") + "/api/stream")

	program := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("run viewer: %w", err)
	}
	return nil
}
