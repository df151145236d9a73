// Package tui implements the live run-sheet viewer: a terminal client that
// renders the event stream the server pushes to observers.
package tui

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/colonyops/cueline/internal/core/schedule"
)

const reconnectDelay = 2 * time.Second

type stateMsg schedule.StateSnapshot

type listMsg []schedule.SlotView

type connectedMsg struct{}

type disconnectedMsg struct{ err error }

type streamEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// streamClient reads the server-sent event stream and converts frames into
// tea messages. It reconnects on its own until ctx is canceled.
type streamClient struct {
	url    string
	events chan tea.Msg
}

func newStreamClient(url string) *streamClient {
	return &streamClient{url: url, events: make(chan tea.Msg, 16)}
}

// start consumes the stream in the background.
func (c *streamClient) start(ctx context.Context) {
	go func() {
		for {
			err := c.consume(ctx)
			if ctx.Err() != nil {
				return
			}
			c.emit(ctx, disconnectedMsg{err: err})

			select {
			case <-ctx.Done():
				return
			case <-time.After(reconnectDelay):
			}
		}
	}()
}

func (c *streamClient) consume(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stream status %d", resp.StatusCode)
	}

	c.emit(ctx, connectedMsg{})

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}

		var ev streamEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			continue
		}

		switch ev.Type {
		case "state-updated":
			var snap schedule.StateSnapshot
			if err := json.Unmarshal(ev.Data, &snap); err == nil {
				c.emit(ctx, stateMsg(snap))
			}
		case "list-updated":
			var slots []schedule.SlotView
			if err := json.Unmarshal(ev.Data, &slots); err == nil {
				c.emit(ctx, listMsg(slots))
			}
		}
	}
	return scanner.Err()
}

func (c *streamClient) emit(ctx context.Context, msg tea.Msg) {
	select {
	case c.events <- msg:
	case <-ctx.Done():
	}
}

// waitForEvent blocks on the next stream message.
func (c *streamClient) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		return <-c.events
	}
}
