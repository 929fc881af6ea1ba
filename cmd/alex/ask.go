package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/a-h/alex/client"
	"github.com/a-h/alex/models"
	"github.com/a-h/alex/playback"
)

type AskCommand struct {
	AlexURL  string   `help:"The URL of the relay server." env:"ALEX_URL" default:"http://localhost:9020"`
	Speak    bool     `help:"Play the spoken reply after printing it." default:"false"`
	Stream   bool     `help:"Print the reply as it is generated." default:"false"`
	Player   string   `help:"The command that plays MP3 audio from stdin." env:"ALEX_PLAYER" default:"mpg123 -q -"`
	LogLevel string   `help:"The log level to use." env:"LOG_LEVEL" default:"info"`
	Question []string `arg:"" help:"The question to ask."`
}

func (c AskCommand) Run(ctx context.Context) (err error) {
	log := getLogger(c.LogLevel)
	question := strings.TrimSpace(strings.Join(c.Question, " "))
	if question == "" {
		return errors.New("a question is required")
	}
	ac := client.New(c.AlexURL)
	turns := []models.ChatTurn{{Role: models.RoleUser, Content: question}}

	if c.Stream {
		f := func(ctx context.Context, chunk []byte) error {
			_, err := os.Stdout.Write(chunk)
			return err
		}
		if _, err = ac.AIStream(ctx, models.AIStreamPostRequest{Messages: turns, Muted: true}, f); err != nil {
			return fmt.Errorf("failed to ask: %w", err)
		}
		fmt.Println()
		return nil
	}

	resp, err := ac.AI(ctx, models.AIPostRequest{Messages: turns})
	if err != nil {
		return fmt.Errorf("failed to ask: %w", err)
	}
	fmt.Println(resp.Content)
	if !c.Speak {
		return nil
	}
	if resp.AudioURL == "" {
		return errors.New("the server did not return audio, is speech synthesis enabled?")
	}
	audio, err := ac.Audio(ctx, resp.AudioURL)
	if err != nil {
		return fmt.Errorf("failed to get audio: %w", err)
	}
	playerArgs := strings.Fields(c.Player)
	if len(playerArgs) == 0 {
		return errors.New("player command must not be empty")
	}
	return play(ctx, log, playback.NewExecPlayer(playerArgs[0], playerArgs[1:]...), audio)
}

// play blocks until the clip ends or ctx is cancelled.
func play(ctx context.Context, log *slog.Logger, player playback.Player, clip []byte) error {
	session := playback.NewSession(log, player)
	h := session.Start(clip, playback.Listeners{})
	select {
	case <-h.Done():
	case <-ctx.Done():
		h.Cancel()
	}
	return h.Err()
}
