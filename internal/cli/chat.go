package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Generator produces text from a system prompt and a user prompt.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

type llmResponseMsg struct {
	content string
	err     error
}

// ChatConfig holds what the console needs besides the generator.
type ChatConfig struct {
	Model  string
	System string
}

type chatEntry struct {
	role    string // "user", "assistant", "error"
	content string
}

// contextTurns bounds how many earlier entries are replayed into each prompt.
const contextTurns = 10

type chatModel struct {
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	history    []chatEntry
	waiting    bool
	cancelFunc context.CancelFunc

	gen Generator
	ctx context.Context
	cfg ChatConfig

	ready  bool
	width  int
	height int
}

func newSpinner() spinner.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(Accent)
	return sp
}

func newChatModel(ctx context.Context, gen Generator, cfg ChatConfig) chatModel {
	ti := textinput.New()
	ti.Placeholder = "Ask something..."
	ti.Focus()
	ti.CharLimit = 0
	ti.Prompt = "❯ "
	ti.PromptStyle = lipgloss.NewStyle().Foreground(Accent)

	return chatModel{
		input:   ti,
		spinner: newSpinner(),
		gen:     gen,
		ctx:     ctx,
		cfg:     cfg,
	}
}

func (m chatModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		// header + divider + viewport + divider + input + status bar
		vpHeight := max(msg.Height-5, 1)
		if !m.ready {
			m.viewport = viewport.New(msg.Width, vpHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = vpHeight
		}
		m.input.Width = msg.Width - 4
		m.viewport.SetContent(m.renderHistory())
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD:
			return m, tea.Quit
		case tea.KeyEnter:
			if m.waiting {
				return m, nil
			}
			input := strings.TrimSpace(m.input.Value())
			if input == "" {
				return m, nil
			}
			if isExitCmd(input) {
				return m, tea.Quit
			}
			prompt := buildPrompt(m.history, input)
			m.history = append(m.history, chatEntry{role: "user", content: input})
			m.input.SetValue("")
			m.input.Blur()
			m.waiting = true
			msgCtx, cancel := context.WithCancel(m.ctx)
			m.cancelFunc = cancel
			m.viewport.SetContent(m.renderHistory())
			m.viewport.GotoBottom()
			return m, tea.Batch(m.spinner.Tick, m.generate(msgCtx, prompt))
		case tea.KeyEsc:
			if m.waiting && m.cancelFunc != nil {
				m.cancelFunc()
				m.cancelFunc = nil
			}
			return m, nil
		case tea.KeyPgUp, tea.KeyPgDown, tea.KeyUp, tea.KeyDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case llmResponseMsg:
		m.waiting = false
		m.cancelFunc = nil
		focusCmd := m.input.Focus()
		switch {
		case errors.Is(msg.err, context.Canceled):
			m.history = append(m.history, chatEntry{role: "assistant", content: "[Interrupted]"})
		case msg.err != nil:
			m.history = append(m.history, chatEntry{role: "error", content: msg.err.Error()})
		default:
			m.history = append(m.history, chatEntry{role: "assistant", content: msg.content})
		}
		m.viewport.SetContent(m.renderHistory())
		m.viewport.GotoBottom()
		return m, focusCmd

	case spinner.TickMsg:
		if m.waiting {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	if !m.waiting {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m chatModel) View() string {
	if !m.ready {
		return "\n  Initializing..."
	}

	header := TitleStyle.Render(fmt.Sprintf(" %s relaybot ask", Logo))
	divider := DimStyle.Render(strings.Repeat("─", m.width))

	inputLine := " " + m.input.View()
	if m.waiting {
		inputLine = fmt.Sprintf(" %s Thinking... (Esc to stop)", m.spinner.View())
	}

	return header + "\n" +
		divider + "\n" +
		m.viewport.View() + "\n" +
		divider + "\n" +
		inputLine + "\n" +
		m.renderStatusBar()
}

func (m chatModel) renderHistory() string {
	if len(m.history) == 0 {
		return m.renderWelcome()
	}

	var sb strings.Builder
	for _, entry := range m.history {
		sb.WriteString("\n")
		switch entry.role {
		case "user":
			writeBlock(&sb, UserLabel.Render("You"), entry.content)
		case "assistant":
			writeBlock(&sb, BotLabel.Render("relaybot"), entry.content)
		case "error":
			sb.WriteString("  " + ErrStyle.Render("Error: "+entry.content) + "\n")
		}
	}
	return sb.String()
}

func writeBlock(sb *strings.Builder, label, content string) {
	sb.WriteString("  " + label + "\n")
	for _, line := range strings.Split(content, "\n") {
		sb.WriteString("  " + line + "\n")
	}
}

func (m chatModel) renderWelcome() string {
	var sb strings.Builder
	sb.WriteString("\n")
	sb.WriteString(RenderBanner())
	sb.WriteString("\n\n")
	sb.WriteString(DimStyle.Render("  Same provider and prompt as the !ask chat command.") + "\n")
	sb.WriteString(DimStyle.Render("  Type exit or press Ctrl+C to leave.") + "\n")
	return sb.String()
}

func (m chatModel) renderStatusBar() string {
	left := DimStyle.Render(" " + Version)
	right := DimStyle.Render(m.cfg.Model + " ")
	gap := max(m.width-lipgloss.Width(left)-lipgloss.Width(right), 1)
	return left + strings.Repeat(" ", gap) + right
}

func (m chatModel) generate(ctx context.Context, prompt string) tea.Cmd {
	return func() tea.Msg {
		resp, err := m.gen.Generate(ctx, m.cfg.System, prompt)
		return llmResponseMsg{content: resp, err: err}
	}
}

// buildPrompt replays the tail of the conversation ahead of the new question.
func buildPrompt(history []chatEntry, input string) string {
	var turns []chatEntry
	for _, e := range history {
		if e.role != "error" {
			turns = append(turns, e)
		}
	}
	if len(turns) > contextTurns {
		turns = turns[len(turns)-contextTurns:]
	}
	if len(turns) == 0 {
		return input
	}

	var sb strings.Builder
	sb.WriteString("Conversation so far:\n")
	for _, e := range turns {
		speaker := "User"
		if e.role == "assistant" {
			speaker = "Assistant"
		}
		sb.WriteString(speaker + ": " + e.content + "\n")
	}
	sb.WriteString("\nUser: " + input)
	return sb.String()
}

func isExitCmd(s string) bool {
	s = strings.ToLower(s)
	return s == "exit" || s == "quit" || s == "/exit" || s == "/quit" || s == ":q"
}

// RunChat starts the interactive console.
func RunChat(ctx context.Context, gen Generator, cfg ChatConfig) error {
	p := tea.NewProgram(newChatModel(ctx, gen, cfg), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

type singleModel struct {
	spinner spinner.Model
	gen     Generator
	ctx     context.Context
	system  string
	message string
	result  string
	err     error
	done    bool
}

func (m singleModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		func() tea.Msg {
			resp, err := m.gen.Generate(m.ctx, m.system, m.message)
			return llmResponseMsg{content: resp, err: err}
		},
	)
}

func (m singleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
	case llmResponseMsg:
		m.result = msg.content
		m.err = msg.err
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m singleModel) View() string {
	if m.done {
		return ""
	}
	return fmt.Sprintf("\n %s Thinking...\n", m.spinner.View())
}

// RunSingleMessage asks one question with a spinner, then prints the answer.
func RunSingleMessage(ctx context.Context, gen Generator, cfg ChatConfig, message string) error {
	m := singleModel{
		spinner: newSpinner(),
		gen:     gen,
		ctx:     ctx,
		system:  cfg.System,
		message: message,
	}

	final, err := tea.NewProgram(m).Run()
	if err != nil {
		return err
	}

	fm := final.(singleModel)
	if fm.err != nil {
		fmt.Println(ErrStyle.Render("\n  Error: " + fm.err.Error()))
		return fm.err
	}
	if !fm.done {
		return context.Canceled
	}

	fmt.Println()
	fmt.Println("  " + BotLabel.Render("relaybot"))
	for _, line := range strings.Split(fm.result, "\n") {
		fmt.Println("  " + line)
	}
	fmt.Println()
	return nil
}
