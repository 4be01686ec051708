package cli

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/joebot/relaybot/internal/config"
)

type onboardChoice int

const (
	choiceUpgrade onboardChoice = iota
	choiceOverwrite
	choiceSkip
)

type onboardModel struct {
	path    string
	choices []string
	cursor  int
	chosen  bool
	choice  onboardChoice
}

func (m onboardModel) Init() tea.Cmd { return nil }

func (m onboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.Type {
		case tea.KeyCtrlC:
			m.choice = choiceSkip
			m.chosen = true
			return m, tea.Quit
		case tea.KeyUp, tea.KeyShiftTab:
			if m.cursor > 0 {
				m.cursor--
			}
		case tea.KeyDown, tea.KeyTab:
			if m.cursor < len(m.choices)-1 {
				m.cursor++
			}
		case tea.KeyEnter:
			m.choice = onboardChoice(m.cursor)
			m.chosen = true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m onboardModel) View() string {
	if m.chosen {
		return ""
	}

	s := "\n"
	s += fmt.Sprintf("  Config already exists at %s\n\n", DimStyle.Render(m.path))
	for i, choice := range m.choices {
		cursor := "  "
		if i == m.cursor {
			cursor = BotLabel.Render("❯ ")
		}
		s += "  " + cursor + choice + "\n"
	}
	s += "\n" + DimStyle.Render("  ↑/↓ navigate · enter select · ctrl+c cancel") + "\n"
	return s
}

// RunOnboard writes a starter config file, asking first if one exists.
func RunOnboard() error {
	cfgPath := config.ConfigPath()

	fmt.Println()
	fmt.Println(RenderBanner())
	fmt.Println()

	if _, err := os.Stat(cfgPath); err != nil {
		if err := config.Save(config.DefaultConfig()); err != nil {
			return err
		}
		fmt.Println("  " + OkStyle.Render("✓") + " Created config at " + DimStyle.Render(cfgPath))
		printNextSteps()
		return nil
	}

	m := onboardModel{
		path: cfgPath,
		choices: []string{
			"Upgrade: add new fields, keep existing values",
			"Overwrite: replace with fresh defaults",
			"Skip: do not modify config",
		},
	}
	final, err := tea.NewProgram(m).Run()
	if err != nil {
		return err
	}

	fmt.Println()
	switch final.(onboardModel).choice {
	case choiceUpgrade:
		if _, err := config.Upgrade(cfgPath); err != nil {
			return err
		}
		fmt.Println("  " + OkStyle.Render("✓") + " Upgraded config")
	case choiceOverwrite:
		if err := config.Save(config.DefaultConfig()); err != nil {
			return err
		}
		fmt.Println("  " + OkStyle.Render("✓") + " Overwritten config")
	default:
		fmt.Println("  " + DimStyle.Render("Config unchanged"))
		return nil
	}
	printNextSteps()
	return nil
}

func printNextSteps() {
	fmt.Println()
	fmt.Println(DimStyle.Render("  Next steps:"))
	fmt.Println(DimStyle.Render("  1. Set DISCORD_TOKEN (in the environment or a .env file)"))
	fmt.Println(DimStyle.Render("  2. Optionally add LLM, Twitch and YouTube keys to " + config.ConfigPath()))
	fmt.Println(DimStyle.Render("  3. Check with: relaybot status"))
	fmt.Println(DimStyle.Render("  4. Start with: relaybot run"))
	fmt.Println()
}
