// Package tui provides a terminal user interface for midilib
package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/james-see/midilib/pkg/converter"
)

// Piano-roll color scheme
var (
	keyWhite  = lipgloss.Color("#F5F5F5")
	noteBlue  = lipgloss.Color("#4FC3F7")
	velAmber  = lipgloss.Color("#FFB300")
	rollBlack = lipgloss.Color("#1E1E1E")

	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(noteBlue).
			Background(rollBlack).
			Padding(0, 2).
			MarginBottom(1)

	menuStyle = lipgloss.NewStyle().
			Foreground(keyWhite).
			PaddingLeft(2)

	selectedStyle = lipgloss.NewStyle().
			Foreground(noteBlue).
			Bold(true).
			PaddingLeft(2)

	statusStyle = lipgloss.NewStyle().
			Foreground(velAmber).
			PaddingTop(1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5252")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(noteBlue).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#777777")).
			MarginTop(1)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(noteBlue).
			Padding(1, 2)
)

// State represents the current TUI state
type State int

const (
	StateMenu State = iota
	StateFilePicker
	StateWorking
	StateResult
)

// Action is what a menu entry does with the picked file.
type Action int

const (
	ActionInspect Action = iota
	ActionNormalize
	ActionExport
	ActionCompose
	ActionExit
)

// MenuItem represents a menu option
type MenuItem struct {
	Title       string
	Description string
	Action      Action

	// Input lists the file extensions the picker offers.
	Input []string
}

var menuItems = []MenuItem{
	{Title: "Inspect", Description: "Show format, PPQ and per-track event counts", Action: ActionInspect, Input: []string{".mid", ".midi"}},
	{Title: "Normalize", Description: "Rewrite a MIDI file without running status", Action: ActionNormalize, Input: []string{".mid", ".midi"}},
	{Title: "MIDI → YAML", Description: "Export a MIDI file as an editable song document", Action: ActionExport, Input: []string{".mid", ".midi"}},
	{Title: "YAML → MIDI", Description: "Compose a MIDI file from a song document", Action: ActionCompose, Input: []string{".yaml", ".yml"}},
	{Title: "Exit", Description: "Exit the application", Action: ActionExit},
}

// Model represents the TUI model
type Model struct {
	state        State
	menuIndex    int
	filePicker   filepicker.Model
	spinner      spinner.Model
	conv         *converter.Converter
	selectedFile string
	outputFile   string
	report       string
	item         MenuItem
	err          error
	width        int
	height       int
}

// actionDoneMsg signals that the selected action finished
type actionDoneMsg struct {
	outputFile string
	report     string
	err        error
}

// Init initializes the TUI model
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick)
}

// New creates a new TUI model converting with opts
func New(opts converter.Options) Model {
	fp := filepicker.New()
	fp.AllowedTypes = []string{".mid", ".midi", ".yaml", ".yml"}
	fp.CurrentDirectory, _ = os.Getwd()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(noteBlue)

	return Model{
		state:      StateMenu,
		menuIndex:  0,
		filePicker: fp,
		spinner:    s,
		conv:       converter.New(opts),
	}
}

// Update handles TUI updates
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// The file picker needs to see every message while it is open
	if m.state == StateFilePicker {
		if keyMsg, ok := msg.(tea.KeyMsg); ok {
			switch keyMsg.String() {
			case "esc":
				m.state = StateMenu
				return m, nil
			case "q", "ctrl+c":
				return m, tea.Quit
			}
		}

		var cmd tea.Cmd
		m.filePicker, cmd = m.filePicker.Update(msg)

		if didSelect, path := m.filePicker.DidSelectFile(msg); didSelect {
			m.selectedFile = path
			m.state = StateWorking
			return m, tea.Batch(m.spinner.Tick, m.perform())
		}

		return m, cmd
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.filePicker.SetHeight(msg.Height - 10)
		return m, nil

	case tea.KeyMsg:
		switch m.state {
		case StateMenu:
			return m.updateMenu(msg)
		case StateResult:
			return m.updateResult(msg)
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case actionDoneMsg:
		m.state = StateResult
		m.outputFile = msg.outputFile
		m.report = msg.report
		m.err = msg.err
		return m, nil
	}

	return m, nil
}

func (m Model) updateMenu(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.menuIndex > 0 {
			m.menuIndex--
		}
	case "down", "j":
		if m.menuIndex < len(menuItems)-1 {
			m.menuIndex++
		}
	case "enter":
		m.item = menuItems[m.menuIndex]
		if m.item.Action == ActionExit {
			return m, tea.Quit
		}
		m.state = StateFilePicker
		m.filePicker.AllowedTypes = m.item.Input
		return m, m.filePicker.Init()
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) updateResult(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "esc":
		m.state = StateMenu
		m.err = nil
		m.selectedFile = ""
		m.outputFile = ""
		m.report = ""
		return m, nil
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) perform() tea.Cmd {
	conv, item, path := m.conv, m.item, m.selectedFile
	return func() tea.Msg {
		return runAction(conv, item.Action, path)
	}
}

func runAction(conv *converter.Converter, action Action, path string) actionDoneMsg {
	data, err := os.ReadFile(path)
	if err != nil {
		return actionDoneMsg{err: err}
	}

	base := strings.TrimSuffix(path, filepath.Ext(path))
	var result []byte
	var outputFile string

	switch action {
	case ActionInspect:
		res, err := conv.Load(data)
		if err != nil {
			return actionDoneMsg{err: err}
		}
		report := converter.Summarize(res.File).String()
		if res.Lenient {
			report += fmt.Sprintf("\nRead leniently, %d events dropped\n", res.Dropped)
		}
		return actionDoneMsg{report: report}
	case ActionNormalize:
		result, err = conv.Normalize(data)
		outputFile = base + ".normalized.mid"
	case ActionExport:
		result, err = conv.MIDIToYAML(data)
		outputFile = base + ".yaml"
	case ActionCompose:
		result, err = conv.YAMLToMIDI(data)
		outputFile = base + ".mid"
	default:
		return actionDoneMsg{err: fmt.Errorf("unknown action %d", action)}
	}
	if err != nil {
		return actionDoneMsg{err: err}
	}

	if err := os.WriteFile(outputFile, result, 0644); err != nil {
		return actionDoneMsg{err: err}
	}
	return actionDoneMsg{outputFile: outputFile}
}

// View renders the TUI
func (m Model) View() string {
	var s strings.Builder

	s.WriteString(asciiLogo())
	s.WriteString("\n")

	switch m.state {
	case StateMenu:
		s.WriteString(m.viewMenu())
	case StateFilePicker:
		s.WriteString(m.viewFilePicker())
	case StateWorking:
		s.WriteString(m.viewWorking())
	case StateResult:
		s.WriteString(m.viewResult())
	}

	s.WriteString("\n")
	s.WriteString(helpStyle.Render("↑/↓: navigate • enter: select • q: quit"))

	return s.String()
}

func (m Model) viewMenu() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(" SELECT ACTION "))
	s.WriteString("\n\n")

	for i, item := range menuItems {
		if i == m.menuIndex {
			s.WriteString(selectedStyle.Render(fmt.Sprintf("▸ %s", item.Title)))
			s.WriteString("\n")
			s.WriteString(lipgloss.NewStyle().Foreground(velAmber).PaddingLeft(4).Render(item.Description))
		} else {
			s.WriteString(menuStyle.Render(fmt.Sprintf("  %s", item.Title)))
		}
		s.WriteString("\n")
	}

	return boxStyle.Render(s.String())
}

func (m Model) viewFilePicker() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(fmt.Sprintf(" SELECT FILE (%s) ", strings.Join(m.item.Input, " "))))
	s.WriteString("\n\n")
	s.WriteString(m.filePicker.View())
	s.WriteString("\n")
	s.WriteString(helpStyle.Render("esc: back to menu"))

	return s.String()
}

func (m Model) viewWorking() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(" WORKING "))
	s.WriteString("\n\n")
	s.WriteString(fmt.Sprintf("%s Reading %s...\n", m.spinner.View(), filepath.Base(m.selectedFile)))
	s.WriteString(statusStyle.Render("  " + m.item.Title))

	return boxStyle.Render(s.String())
}

func (m Model) viewResult() string {
	var s strings.Builder

	switch {
	case m.err != nil:
		s.WriteString(titleStyle.Render(" ERROR "))
		s.WriteString("\n\n")
		s.WriteString(errorStyle.Render(fmt.Sprintf("✗ %s failed: %s", m.item.Title, m.err.Error())))
	case m.report != "":
		s.WriteString(titleStyle.Render(" " + strings.ToUpper(filepath.Base(m.selectedFile)) + " "))
		s.WriteString("\n\n")
		s.WriteString(m.report)
	default:
		s.WriteString(titleStyle.Render(" SUCCESS "))
		s.WriteString("\n\n")
		s.WriteString(successStyle.Render("✓ Done!"))
		s.WriteString("\n\n")
		s.WriteString(fmt.Sprintf("Input:  %s\n", filepath.Base(m.selectedFile)))
		s.WriteString(fmt.Sprintf("Output: %s", filepath.Base(m.outputFile)))
	}

	s.WriteString("\n\n")
	s.WriteString(helpStyle.Render("Press enter to continue"))

	return boxStyle.Render(s.String())
}

func asciiLogo() string {
	logo := `
            _     _ _ _ _ _
  _ __ ___ (_) __| (_) (_) |__
 | '_ ` + "`" + ` _ \| |/ _` + "`" + ` | | | | '_ \
 | | | | | | | (_| | | | | |_) |
 |_| |_| |_|_|\__,_|_|_|_|_.__/
`
	return lipgloss.NewStyle().Foreground(noteBlue).Render(logo)
}

// Run starts the TUI application
func Run(opts converter.Options) error {
	p := tea.NewProgram(New(opts), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
