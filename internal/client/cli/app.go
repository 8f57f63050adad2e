package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/photomagic/internal/client/client"
	"github.com/dmitrijs2005/photomagic/internal/client/config"
)

var ErrUsage = errors.New("usage: photomagic [flags] submit <fileId> | status <taskId> | wait <taskId>")

// API is the part of client.Client the commands use.
type API interface {
	Submit(ctx context.Context, fileID string) (*client.Submitted, error)
	Status(ctx context.Context, taskID string) (*client.Task, error)
	Wait(ctx context.Context, taskID string, interval time.Duration) (*client.Task, error)
}

type App struct {
	config *config.Config
	api    API
	out    io.Writer
}

// NewApp builds the API client from c. An empty token is asked for on the
// terminal.
func NewApp(c *config.Config, out io.Writer) (*App, error) {
	if c.Token == "" {
		tok, err := GetToken(out)
		if err != nil {
			return nil, err
		}
		c.Token = tok
	}
	api, err := client.New(c.ServerURL, c.Token, nil)
	if err != nil {
		return nil, err
	}
	return &App{config: c, api: api, out: out}, nil
}

// Run executes one command.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return ErrUsage
	}
	cmd, id := args[0], args[1]

	switch cmd {
	case "submit":
		s, err := a.api.Submit(ctx, id)
		if err != nil {
			return err
		}
		return a.print(s)
	case "status":
		t, err := a.api.Status(ctx, id)
		if err != nil {
			return err
		}
		return a.print(t)
	case "wait":
		ctx, cancel := context.WithTimeout(ctx, a.config.WaitTimeout)
		defer cancel()
		t, err := a.api.Wait(ctx, id, a.config.PollInterval)
		if t != nil {
			if perr := a.print(t); perr != nil {
				return perr
			}
		}
		return err
	default:
		return fmt.Errorf("unknown command %q: %w", cmd, ErrUsage)
	}
}

func (a *App) print(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
