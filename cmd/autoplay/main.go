// Command autoplay plays memory game rounds through the REST API with a
// perfect-memory strategy. It is handy for load testing a server and for
// checking that best scores are recorded.
package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"
	"github.com/wricardo/mcp-training/memorygame/game/engine"
	"github.com/wricardo/mcp-training/memorygame/game/service"
	"k8s.io/klog/v2"
)

const sessionFile = ".session"

// Player drives rounds for one session.
type Player struct {
	client *Client
	memory *Memory
	poll   time.Duration
	// wait blocks while a mismatched pair flips back.
	wait     func(context.Context, time.Duration) error
	maxMoves int
}

func NewPlayer(client *Client, poll time.Duration) *Player {
	return &Player{
		client:   client,
		memory:   NewMemory(),
		poll:     poll,
		wait:     sleep,
		maxMoves: 1000,
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// settle waits until the board accepts reveals again.
func (p *Player) settle(ctx context.Context, round *service.RoundView) (*service.RoundView, error) {
	for round.Resolving {
		if err := p.wait(ctx, p.poll); err != nil {
			return nil, err
		}
		next, err := p.client.Round(ctx)
		if err != nil {
			return nil, err
		}
		round = next
	}
	return round, nil
}

// PlayRound deals a new board and reveals cards until it is won.
func (p *Player) PlayRound(ctx context.Context, difficulty string) (*engine.WinReport, error) {
	p.memory.Reset()

	round, err := p.client.StartRound(ctx, difficulty)
	if err != nil {
		return nil, err
	}
	klog.InfoS("Round started", "session", p.client.sessionID, "difficulty", round.Difficulty, "pairs", round.PairCount)

	for reveals := 0; reveals < 2*p.maxMoves; reveals++ {
		round, err = p.settle(ctx, round)
		if err != nil {
			return nil, err
		}
		if round.State != engine.InProgress {
			return nil, fmt.Errorf("round is %s", round.State)
		}

		id, ok := p.memory.Next(round.Cards)
		if !ok {
			return nil, fmt.Errorf("no card left to reveal")
		}

		res, err := p.client.Reveal(ctx, id)
		if err != nil {
			return nil, err
		}
		if res.Round == nil {
			return nil, fmt.Errorf("reveal of %s returned no round", id)
		}
		round = res.Round
		p.memory.Observe(round.Cards)
		klog.V(2).InfoS("Reveal", "card", id, "outcome", res.Outcome, "moves", round.MovesMade)

		if res.Outcome == engine.OutcomeIgnored {
			klog.V(1).InfoS("Reveal ignored", "card", id, "reason", res.Reason)
		}
		if res.Win != nil {
			return res.Win, nil
		}
	}
	return nil, fmt.Errorf("round not won after %d moves", p.maxMoves)
}

// resumeOrCreate reuses a saved session when it still exists.
func resumeOrCreate(ctx context.Context, client *Client, sessionID, configID string) error {
	if sessionID == "" {
		if data, err := os.ReadFile(sessionFile); err == nil {
			sessionID = string(bytes.TrimSpace(data))
		}
	}

	if sessionID != "" {
		client.sessionID = sessionID
		_, err := client.GetSession(ctx)
		if err == nil {
			klog.InfoS("Resuming session", "session", sessionID)
			return nil
		}
		klog.InfoS("Failed to resume session, creating a new one", "session", sessionID, "err", err)
	}

	info, err := client.CreateSession(ctx, configID)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	klog.InfoS("Session created", "session", info.ID, "config", info.ConfigName)
	if err := os.WriteFile(sessionFile, []byte(info.ID), 0644); err != nil {
		klog.ErrorS(err, "Failed to save session ID")
	}
	return nil
}

func run(ctx context.Context, cmd *cli.Command) error {
	client := NewClient(cmd.String("url"))
	klog.InfoS("Connecting to game server", "url", cmd.String("url"))

	if err := resumeOrCreate(ctx, client, cmd.String("continue"), cmd.String("config")); err != nil {
		return err
	}

	player := NewPlayer(client, cmd.Duration("poll"))
	rounds := cmd.Int("rounds")
	for i := 1; i <= rounds; i++ {
		win, err := player.PlayRound(ctx, cmd.String("difficulty"))
		if err != nil {
			return fmt.Errorf("round %d: %w", i, err)
		}
		klog.InfoS("Round won", "round", i, "moves", win.MovesMade, "elapsed", win.Elapsed, "newRecord", win.IsNewRecord)
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.Command{
		Name:  "autoplay",
		Usage: "Play memory game rounds against a running server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Value: "http://localhost:8080", Usage: "Game server URL"},
			&cli.StringFlag{Name: "config", Usage: "Game configuration id (classic, speedy, lithuanian)"},
			&cli.StringFlag{Name: "continue", Usage: "Resume playing an existing session by ID"},
			&cli.StringFlag{Name: "difficulty", Value: string(engine.Easy), Usage: "easy or hard"},
			&cli.IntFlag{Name: "rounds", Value: 1, Usage: "Rounds to play"},
			&cli.DurationFlag{Name: "poll", Value: 100 * time.Millisecond, Usage: "Polling interval while a mismatch flips back"},
		},
		Action: run,
	}

	if err := app.Run(ctx, os.Args); err != nil {
		klog.ErrorS(err, "Autoplay failed")
		klog.Flush()
		os.Exit(1)
	}
	klog.Flush()
}
