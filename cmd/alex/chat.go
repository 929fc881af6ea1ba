package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/a-h/alex/client"
	"github.com/a-h/alex/conversation"
	"github.com/a-h/alex/models"
	"github.com/a-h/alex/playback"
	"github.com/a-h/alex/transcript"
	"github.com/a-h/alex/voice"
	"github.com/sashabaranov/go-openai"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
)

type ChatCommand struct {
	AlexURL        string `help:"The URL of the relay server." env:"ALEX_URL" default:"http://localhost:9020"`
	Speak          bool   `help:"Speak replies. Toggle with /mute." env:"ALEX_SPEAK" default:"false"`
	Player         string `help:"The command that plays MP3 audio from stdin." env:"ALEX_PLAYER" default:"mpg123 -q -"`
	Recorder       string `help:"The command that records speech to the file given as its last argument. Uses arecord if empty." env:"ALEX_RECORDER" default:""`
	OpenAIAPIKey   string `help:"The OpenAI API key used to transcribe speech. /listen is disabled if not set." env:"OPENAI_API_KEY" default:""`
	TranscriptFile string `help:"Write the conversation to this HTML file on exit." env:"ALEX_TRANSCRIPT_FILE" default:""`
	LogFile        string `help:"Write logs to this file." env:"ALEX_LOG_FILE" default:""`
	LogLevel       string `help:"The log level to use." env:"LOG_LEVEL" default:"info"`
}

func (c ChatCommand) Run(ctx context.Context) (err error) {
	var logOutput io.Writer = io.Discard
	if c.LogFile != "" {
		f, err := os.OpenFile(c.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer f.Close()
		logOutput = f
	}
	log := newLogger(logOutput, c.LogLevel)

	playerArgs := strings.Fields(c.Player)
	if len(playerArgs) == 0 {
		return errors.New("player command must not be empty")
	}
	state := transcript.New()
	session := playback.NewSession(log, playback.NewExecPlayer(playerArgs[0], playerArgs[1:]...))
	defer session.Stop()
	seq := playback.NewSequencer(log, state, session, nil)

	opts := []conversation.Option{conversation.WithMuted(!c.Speak)}
	if c.OpenAIAPIKey != "" {
		var recorderOpts []voice.Option
		if recorderArgs := strings.Fields(c.Recorder); len(recorderArgs) > 0 {
			recorderOpts = append(recorderOpts, voice.WithRecorder(recorderArgs[0], recorderArgs[1:]...))
		}
		opts = append(opts, conversation.WithRecognizer(voice.NewWhisper(log, openai.NewClient(c.OpenAIAPIKey), recorderOpts...)))
	}
	conv := conversation.New(log, client.New(c.AlexURL), state, seq, opts...)

	p := tea.NewProgram(newModel(ctx, log, conv, state))
	if _, err = p.Run(); err != nil {
		return err
	}

	if c.TranscriptFile != "" {
		f, err := os.Create(c.TranscriptFile)
		if err != nil {
			return fmt.Errorf("failed to create transcript file: %w", err)
		}
		defer f.Close()
		if err = transcript.WriteHTML(f, "Alex", state.Turns()); err != nil {
			return fmt.Errorf("failed to write transcript: %w", err)
		}
	}
	return nil
}

// Dracula color scheme.
var (
	Background  = lipgloss.Color("#282a36")
	CurrentLine = lipgloss.Color("#44475a")
	Foreground  = lipgloss.Color("#f8f8f2")
	Comment     = lipgloss.Color("#6272a4")
	Cyan        = lipgloss.Color("#8be9fd")
	Green       = lipgloss.Color("#50fa7b")
	Orange      = lipgloss.Color("#ffb86c")
	Pink        = lipgloss.Color("#ff79c6")
	Purple      = lipgloss.Color("#bd93f9")
	Red         = lipgloss.Color("#ff5555")
)

var headerStyle = lipgloss.NewStyle().Background(CurrentLine).Foreground(Purple).Bold(true).Margin(1).Padding(1).PaddingTop(0)

var header = `
    _    _     _______  __
   / \  | |   | ____\ \/ /
  / _ \ | |   |  _|  \  /
 / ___ \| |___| |___ /  \
/_/   \_\_____|_____/_/\_\
`

var (
	statusStyle = lipgloss.NewStyle().Foreground(Comment).PaddingLeft(1)
	errorStyle  = lipgloss.NewStyle().Foreground(Red).PaddingLeft(1)
	codeStyle   = lipgloss.NewStyle().Background(CurrentLine).Foreground(Orange).Padding(0, 1)
)

var help = "enter: send · /upload <file.csv|file.xlsx> · /mute · /listen · esc: quit"

type replyMsg struct {
	err error
}

type refreshMsg struct{}

type model struct {
	viewport viewport.Model
	textarea textarea.Model
	err      error
	ctx      context.Context
	log      *slog.Logger

	conversation *conversation.Conversation
	state        *transcript.State
}

func newModel(ctx context.Context, log *slog.Logger, conv *conversation.Conversation, state *transcript.State) model {
	ta := textarea.New()
	ta.Placeholder = "Send a message..."
	ta.Focus()

	ta.Prompt = "┃ "
	ta.CharLimit = 4000

	ta.SetHeight(3)

	// Remove cursor line styling
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()

	ta.ShowLineNumbers = false

	vp := viewport.New(80, 20)
	vp.SetContent(headerStyle.Render(header))

	ta.KeyMap.InsertNewline.SetEnabled(false)

	return model{
		ctx:          ctx,
		log:          log,
		textarea:     ta,
		viewport:     vp,
		conversation: conv,
		state:        state,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		m.run(m.conversation.Greet),
		refresh(),
	)
}

func (m model) run(f func(ctx context.Context) (string, error)) tea.Cmd {
	return func() tea.Msg {
		_, err := f(m.ctx)
		return replyMsg{err: err}
	}
}

func refresh() tea.Cmd {
	return tea.Tick(150*time.Millisecond, func(time.Time) tea.Msg {
		return refreshMsg{}
	})
}

var roleToStyle = map[models.Role]lipgloss.Style{
	models.RoleUser:      lipgloss.NewStyle().Padding(1).Margin(1).MarginBottom(0).Background(Background).Foreground(Pink),
	models.RoleAssistant: lipgloss.NewStyle().Padding(1).Margin(1).MarginBottom(0).Background(Background).Foreground(Cyan),
}

var roleToIcon = map[models.Role]string{
	models.RoleUser:      "🥷",
	models.RoleAssistant: "✨",
}

func formatTurn(turn models.ChatTurn) string {
	style, ok := roleToStyle[turn.Role]
	if !ok {
		return turn.Content
	}
	icon, ok := roleToIcon[turn.Role]
	if !ok {
		icon = "🤷"
	}
	wrapped := wordwrap.String(strings.TrimSpace(icon+" "+turn.Content), 80)
	return style.Render(transcript.FormatTerminal(wrapped, renderCode))
}

func renderCode(code string) string {
	return codeStyle.Render(code)
}

func (m model) render() string {
	var sb strings.Builder
	sb.WriteString(headerStyle.Render(header))
	sb.WriteString("\n")
	for _, turn := range m.state.Turns() {
		sb.WriteString(formatTurn(turn))
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m model) status() string {
	var parts []string
	if m.state.Loading() {
		parts = append(parts, "Alex is thinking...")
	}
	if m.conversation.Listening() {
		parts = append(parts, "listening, /listen to send")
	}
	if m.conversation.Muted() {
		parts = append(parts, "muted")
	} else {
		parts = append(parts, "speaking")
	}
	line := statusStyle.Render(strings.Join(parts, " · ") + " · " + help)
	if m.err != nil {
		line = errorStyle.Render(m.err.Error()) + "\n" + line
	}
	return line
}

func (m model) update() model {
	m.viewport.SetContent(m.render())
	m.viewport.GotoBottom()
	return m
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case replyMsg:
		// Failures are logged by the conversation. The screen only shows that
		// something went wrong.
		m.err = nil
		if msg.err != nil {
			m.err = errors.New("no reply was received, try again")
		}
		return m.update(), nil
	case refreshMsg:
		m = m.update()
		if m.state.Loading() {
			return m, refresh()
		}
		return m, nil
	case tea.WindowSizeMsg:
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - m.textarea.Height() - 5
		m.textarea.SetWidth(msg.Width)
		return m.update(), nil
	case tea.KeyMsg:
		switch msg.String() {
		case "esc", "ctrl+c":
			return m, tea.Quit
		case "enter":
			v := strings.TrimSpace(m.textarea.Value())
			if v == "" {
				// Don't send empty messages.
				return m, nil
			}
			m.textarea.Reset()
			m.err = nil
			return m, m.command(v)
		default:
			// Send all other keypresses to the textarea.
			var cmd tea.Cmd
			m.textarea, cmd = m.textarea.Update(msg)
			return m, cmd
		}

	case cursor.BlinkMsg:
		// Textarea should also process cursor blinks.
		var cmd tea.Cmd
		m.textarea, cmd = m.textarea.Update(msg)
		return m, cmd

	default:
		return m, nil
	}
}

func (m model) command(input string) tea.Cmd {
	switch {
	case input == "/mute":
		muted := m.conversation.ToggleMute()
		m.log.Info("toggled mute", slog.Bool("muted", muted))
		return refresh()
	case input == "/listen":
		return tea.Batch(m.run(m.conversation.Listen), refresh())
	case strings.HasPrefix(input, "/upload "):
		filename := strings.TrimSpace(strings.TrimPrefix(input, "/upload "))
		return tea.Batch(m.run(func(ctx context.Context) (string, error) {
			f, err := os.Open(filename)
			if err != nil {
				return "", err
			}
			defer f.Close()
			return m.conversation.SendSheet(ctx, filename, f)
		}), refresh())
	default:
		return tea.Batch(m.run(func(ctx context.Context) (string, error) {
			return m.conversation.Send(ctx, input)
		}), refresh())
	}
}

func (m model) View() string {
	return fmt.Sprintf("%s\n\n%s\n%s",
		m.viewport.View(),
		m.textarea.View(),
		m.status(),
	) + "\n"
}
