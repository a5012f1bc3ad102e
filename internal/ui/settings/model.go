package settings

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mailassist/internal/keys"
	"github.com/nhle/mailassist/internal/model"
	settingsstore "github.com/nhle/mailassist/internal/settings"
	"github.com/nhle/mailassist/internal/theme"
)

// ViewMode represents the current state of the settings view.
type ViewMode int

const (
	ModeSummary      ViewMode = iota // Show current provider and masked keys
	ModeForm                         // Editing form
	ModeConfirmClear                 // Confirm wiping saved settings
)

// CloseMsg signals the settings view should close.
type CloseMsg struct{}

// SavedMsg is sent after settings were persisted.
type SavedMsg struct {
	Settings model.Settings
}

// ClearedMsg is sent after saved settings were removed.
type ClearedMsg struct {
	Settings model.Settings
}

type savedInternalMsg struct {
	settings model.Settings
	err      error
}

type clearedInternalMsg struct {
	err error
}

// formValues is heap-allocated so huh's bound pointers survive the
// value-receiver copies of Model.
type formValues struct {
	provider  string
	openaiKey string
	geminiKey string
	claudeKey string
	confirm   bool
}

// Model is the Bubble Tea model for the settings panel.
type Model struct {
	mode     ViewMode
	repo     settingsstore.Repository
	current  model.Settings
	values   *formValues
	form     *huh.Form
	confirm  *huh.Form
	status   string
	hostInfo string

	keys          *keys.KeyMap
	width, height int
}

// New creates the settings view showing current.
func New(repo settingsstore.Repository, current model.Settings, hostInfo string, k *keys.KeyMap, width, height int) Model {
	return Model{
		mode:     ModeSummary,
		repo:     repo,
		current:  current,
		values:   &formValues{},
		hostInfo: hostInfo,
		keys:     k,
		width:    width,
		height:   height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// SetCurrent replaces the settings shown in the summary.
func (m *Model) SetCurrent(s model.Settings) {
	m.current = s
}

// Update handles messages and dispatches based on current mode.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case savedInternalMsg:
		m.mode = ModeSummary
		if msg.err != nil {
			m.status = fmt.Sprintf("Error saving settings: %v", msg.err)
			return m, nil
		}
		m.current = msg.settings
		m.status = "Settings saved"
		return m, func() tea.Msg { return SavedMsg{Settings: msg.settings} }

	case clearedInternalMsg:
		m.mode = ModeSummary
		if msg.err != nil {
			m.status = fmt.Sprintf("Error clearing settings: %v", msg.err)
			return m, nil
		}
		m.current = model.DefaultSettings()
		m.status = "Settings cleared"
		return m, func() tea.Msg { return ClearedMsg{Settings: model.DefaultSettings()} }

	case tea.KeyMsg:
		if m.mode == ModeSummary {
			return m.handleSummaryKeys(msg)
		}
	}

	switch m.mode {
	case ModeForm:
		return m.updateForm(msg)
	case ModeConfirmClear:
		return m.updateConfirmClear(msg)
	}
	return m, nil
}

func (m Model) handleSummaryKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		return m, func() tea.Msg { return CloseMsg{} }

	case msg.String() == "e", msg.String() == "enter":
		m.status = ""
		m.mode = ModeForm
		m.form = m.buildForm()
		return m, m.form.Init()

	case msg.String() == "c":
		m.status = ""
		m.values.confirm = false
		m.mode = ModeConfirmClear
		m.confirm = m.buildConfirmForm()
		return m, m.confirm.Init()
	}
	return m, nil
}

// --- Edit Form ---

func (m *Model) buildForm() *huh.Form {
	m.values.provider = string(m.current.SelectedProvider)
	m.values.openaiKey = m.current.Credential(model.ProviderOpenAI)
	m.values.geminiKey = m.current.Credential(model.ProviderGemini)
	m.values.claudeKey = m.current.Credential(model.ProviderClaude)

	options := make([]huh.Option[string], 0, len(model.Providers))
	for _, p := range model.Providers {
		options = append(options, huh.NewOption(p.DisplayName(), string(p)))
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("AI Model").
				Description("Provider used for the next message").
				Options(options...).
				Value(&m.values.provider),
			huh.NewInput().
				Title("OpenAI API Key").
				Placeholder("sk-...").
				EchoMode(huh.EchoModePassword).
				Value(&m.values.openaiKey),
			huh.NewInput().
				Title("Gemini API Key").
				Placeholder("AIza...").
				EchoMode(huh.EchoModePassword).
				Value(&m.values.geminiKey),
			huh.NewInput().
				Title("Claude API Key").
				Placeholder("sk-ant-...").
				EchoMode(huh.EchoModePassword).
				Value(&m.values.claudeKey),
		),
	).WithWidth(m.formWidth())
}

func (m Model) updateForm(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		return m, m.save(m.formSettings())
	}
	if m.form.State == huh.StateAborted {
		m.mode = ModeSummary
		return m, nil
	}

	return m, cmd
}

func (m Model) formSettings() model.Settings {
	s := model.DefaultSettings()
	s.SelectedProvider = model.Provider(m.values.provider)
	if !s.SelectedProvider.Valid() {
		s.SelectedProvider = model.ProviderOpenAI
	}
	s = s.WithCredential(model.ProviderOpenAI, strings.TrimSpace(m.values.openaiKey))
	s = s.WithCredential(model.ProviderGemini, strings.TrimSpace(m.values.geminiKey))
	s = s.WithCredential(model.ProviderClaude, strings.TrimSpace(m.values.claudeKey))
	return s
}

func (m Model) save(s model.Settings) tea.Cmd {
	repo := m.repo
	return func() tea.Msg {
		err := repo.Save(context.Background(), s)
		return savedInternalMsg{settings: s, err: err}
	}
}

// --- Clear Confirmation ---

func (m *Model) buildConfirmForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Clear saved settings?").
				Description("This removes every stored API key and resets the model to OpenAI.").
				Affirmative("Yes, clear").
				Negative("Cancel").
				Value(&m.values.confirm),
		),
	).WithWidth(m.formWidth())
}

func (m Model) updateConfirmClear(msg tea.Msg) (Model, tea.Cmd) {
	if m.confirm == nil {
		return m, nil
	}

	mdl, cmd := m.confirm.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.confirm = f
	}

	if m.confirm.State == huh.StateCompleted {
		if m.values.confirm {
			repo := m.repo
			return m, func() tea.Msg {
				return clearedInternalMsg{err: repo.Clear(context.Background())}
			}
		}
		m.mode = ModeSummary
		return m, nil
	}
	if m.confirm.State == huh.StateAborted {
		m.mode = ModeSummary
		return m, nil
	}

	return m, cmd
}

// --- View ---

// View renders the settings panel based on the current mode.
func (m Model) View() string {
	switch m.mode {
	case ModeForm:
		return m.viewForm(m.form)
	case ModeConfirmClear:
		return m.viewForm(m.confirm)
	default:
		return m.viewSummary()
	}
}

func (m Model) viewSummary() string {
	var b strings.Builder

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	b.WriteString(titleStyle.Render("Settings"))
	b.WriteString("\n\n")

	labelStyle := lipgloss.NewStyle().Foreground(theme.ColorGray).Width(16)
	row := func(label, value string) {
		b.WriteString(labelStyle.Render(label))
		b.WriteString(value)
		b.WriteString("\n")
	}

	row("AI Model", m.current.SelectedProvider.DisplayName())
	for _, p := range model.Providers {
		row(p.DisplayName(), model.MaskKey(m.current.Credential(p)))
	}
	if m.hostInfo != "" {
		b.WriteString("\n")
		row("Mail host", m.hostInfo)
	}

	if m.status != "" {
		b.WriteString("\n")
		statusStyle := lipgloss.NewStyle().
			Foreground(theme.ColorYellow).
			Italic(true)
		b.WriteString(statusStyle.Render(m.status))
	}

	b.WriteString("\n\n")
	b.WriteString(theme.HelpStyle.Render("e edit | c clear | esc back"))

	return lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width).
		Height(m.height).
		Render(b.String())
}

func (m Model) viewForm(f *huh.Form) string {
	if f == nil {
		return ""
	}

	return lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width).
		Height(m.height).
		Render(f.View())
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m Model) formWidth() int {
	return min(max(m.width-4, 40), 100)
}
