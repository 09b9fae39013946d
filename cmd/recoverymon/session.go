package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/adit-codes/vyuhathon-final-health-monitoring/tui"
)

type SessionCmd struct {
	Show SessionShowCmd `cmd:"" help:"Print one session."`
	List SessionListCmd `cmd:"" help:"List stored sessions."`
}

type SessionShowCmd struct {
	ID   string `arg:"" help:"Session id."`
	JSON bool   `name:"json" help:"Print the raw snapshot as JSON."`
}

func (c *SessionShowCmd) Run(rt *runtime) error {
	snap, err := rt.controller.Snapshot(context.Background(), c.ID)
	if err != nil {
		return err
	}
	if c.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}
	fmt.Print(tui.Summary(snap, time.Now()))
	return nil
}

type SessionListCmd struct{}

func (c *SessionListCmd) Run(rt *runtime) error {
	records, err := rt.sessions.List(context.Background())
	if err != nil {
		return err
	}
	now := time.Now()
	for _, rec := range records {
		fmt.Printf("%s  %-7s  %-14s  v%d  %s\n", rec.ID, rec.Role, rec.Step, rec.Version, humanize.RelTime(rec.UpdatedAt, now, "ago", "from now"))
	}
	fmt.Printf("%s session(s)\n", humanize.Comma(int64(len(records))))
	return nil
}

type PurgeCmd struct {
	OlderThan time.Duration `name:"older-than" help:"Idle age to purge, defaults to SESSION_TTL."`
}

func (c *PurgeCmd) Run(rt *runtime) error {
	idle := c.OlderThan
	if idle <= 0 {
		idle = rt.sessions.TTL()
	}
	if idle <= 0 {
		return fmt.Errorf("no idle age given and SESSION_TTL is 0")
	}
	n, err := rt.sessions.PurgeIdle(context.Background(), idle)
	if err != nil {
		return err
	}
	fmt.Printf("purged %d session(s) idle for more than %s\n", n, idle)
	return nil
}
