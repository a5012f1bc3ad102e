package chat

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	chatsession "github.com/nhle/mailassist/internal/chat"
	"github.com/nhle/mailassist/internal/keys"
	"github.com/nhle/mailassist/internal/model"
	"github.com/nhle/mailassist/internal/theme"
	"github.com/nhle/mailassist/internal/transcript"
)

// TurnDoneMsg carries the outcome of a send.
type TurnDoneMsg struct {
	Result chatsession.Result
	Err    error
}

// ReplyDoneMsg carries the outcome of inserting a reply.
type ReplyDoneMsg struct {
	Err error
}

// Model is the chat view: transcript, input box and mode controls.
type Model struct {
	session  *chatsession.Session
	settings model.Settings

	input    textarea.Model
	keyword  textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	editingKeyword bool
	busy           bool
	pending        string
	pendingAt      int
	toast          string
	notice         string

	keys          *keys.KeyMap
	width, height int
}

// New creates the chat view for session.
func New(session *chatsession.Session, settings model.Settings, k *keys.KeyMap, width, height int) Model {
	ta := textarea.New()
	ta.Placeholder = "Ask about the current email..."
	ta.Prompt = "> "
	ta.ShowLineNumbers = false
	ta.SetHeight(3)
	ta.CharLimit = 4000
	ta.KeyMap.InsertNewline.SetKeys("alt+enter")
	ta.Focus()

	kw := textinput.New()
	kw.Prompt = "keyword: "
	kw.Placeholder = "e.g. invoice"
	kw.CharLimit = 200

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := Model{
		session:  session,
		settings: settings,
		input:    ta,
		keyword:  kw,
		viewport: viewport.New(width, 1),
		spinner:  sp,
		keys:     k,
	}
	_, current := session.Mode()
	m.keyword.SetValue(current)
	m.SetSize(width, height)
	return m
}

// Init returns the initial command for the chat view.
func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

// SetSettings replaces the settings used for subsequent sends.
func (m *Model) SetSettings(s model.Settings) {
	m.settings = s
}

// SetNotice sets the informational line shown above the input, e.g. the
// subject of the latest bridge message.
func (m *Model) SetNotice(s string) {
	m.notice = s
}

// Toast returns the current error toast, if any.
func (m Model) Toast() string {
	return m.toast
}

// Busy reports whether a turn is in flight.
func (m Model) Busy() bool {
	return m.busy
}

// Update handles messages for the chat view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case TurnDoneMsg:
		m.busy = false
		m.pending = ""
		switch {
		case msg.Err != nil:
			m.toast = msg.Err.Error()
		case msg.Result.Stale:
		case msg.Result.Err != nil:
			m.toast = msg.Result.Err.Error()
		}
		m.refreshViewport()
		return m, nil

	case ReplyDoneMsg:
		if msg.Err != nil {
			m.toast = "Failed to create reply: " + msg.Err.Error()
		} else {
			m.notice = "Reply draft created."
		}
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m Model) handleKeyMsg(msg tea.KeyMsg) (Model, tea.Cmd) {
	if m.editingKeyword {
		return m.handleKeywordKeys(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Send):
		return m.send()

	case key.Matches(msg, m.keys.ToggleMode):
		mode, kw := m.session.Mode()
		if mode == model.ModeSearch {
			return m.SetMode(model.ModeCurrent, kw)
		}
		return m.SetMode(model.ModeSearch, kw)

	case key.Matches(msg, m.keys.Keyword):
		_, kw := m.session.Mode()
		m.session.SetMode(model.ModeSearch, kw)
		return m.startKeywordEdit()

	case key.Matches(msg, m.keys.Clear):
		m.Clear()
		return m, nil

	case key.Matches(msg, m.keys.Reply):
		return m.Reply()

	case key.Matches(msg, m.keys.ScrollUp), key.Matches(msg, m.keys.ScrollDown):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// SetMode switches the context mode. Entering search mode without a
// keyword opens the keyword input.
func (m Model) SetMode(mode model.Mode, keyword string) (Model, tea.Cmd) {
	m.session.SetMode(mode, keyword)
	m.keyword.SetValue(keyword)
	if mode == model.ModeSearch && strings.TrimSpace(keyword) == "" {
		return m.startKeywordEdit()
	}
	return m, nil
}

// Clear resets the conversation. A turn in flight keeps running but its
// answer is dropped.
func (m *Model) Clear() {
	m.session.Clear()
	m.pending = ""
	m.toast = ""
	m.refreshViewport()
}

func (m Model) startKeywordEdit() (Model, tea.Cmd) {
	m.editingKeyword = true
	m.input.Blur()
	return m, m.keyword.Focus()
}

func (m Model) handleKeywordKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "esc", "tab":
		m.editingKeyword = false
		m.keyword.Blur()
		m.session.SetMode(model.ModeSearch, m.keyword.Value())
		return m, m.input.Focus()
	}

	var cmd tea.Cmd
	m.keyword, cmd = m.keyword.Update(msg)
	return m, cmd
}

func (m Model) send() (Model, tea.Cmd) {
	text := m.input.Value()
	if m.busy || strings.TrimSpace(text) == "" {
		return m, nil
	}

	m.input.Reset()
	m.busy = true
	m.pending = text
	m.pendingAt = m.session.Len()
	m.toast = ""
	m.notice = ""
	m.refreshViewport()

	session := m.session
	settings := m.settings
	run := func() tea.Msg {
		res, err := session.Send(context.Background(), text, settings)
		return TurnDoneMsg{Result: res, Err: err}
	}
	return m, tea.Batch(run, m.spinner.Tick)
}

// Reply saves the latest assistant answer as a reply draft.
func (m Model) Reply() (Model, tea.Cmd) {
	last, ok := m.session.LastReply()
	if !ok {
		return m, nil
	}

	session := m.session
	id := last.ID
	return m, func() tea.Msg {
		return ReplyDoneMsg{Err: session.InsertReply(context.Background(), id)}
	}
}

// refreshViewport re-renders the conversation content and scrolls to bottom.
func (m *Model) refreshViewport() {
	m.viewport.SetContent(m.renderConversation())
	m.viewport.GotoBottom()
}

func roleLabel(r transcript.Role) string {
	switch r {
	case transcript.RoleUser:
		return "You"
	case transcript.RoleAssistant:
		return "Assistant"
	default:
		return "System"
	}
}

func (m Model) renderConversation() string {
	width := max(m.viewport.Width-2, 10)
	var sections []string

	render := func(role transcript.Role, content string) {
		sections = append(sections,
			theme.RoleLabelStyle(role).Render(roleLabel(role)+":"),
			theme.ContentStyle(role).Width(width).Render(content),
			"",
		)
	}

	entries := m.session.Entries()
	for _, e := range entries {
		render(e.Role, e.Content)
	}
	// Once the session has recorded the user entry it renders from there.
	if m.pending != "" && len(entries) <= m.pendingAt {
		render(transcript.RoleUser, m.pending)
	}

	return strings.Join(sections, "\n")
}

func (m Model) renderModeLine() string {
	mode, kw := m.session.Mode()
	badge := theme.ModeStyle(string(mode)).Render(strings.ToUpper(string(mode)))

	var parts []string
	parts = append(parts, badge)
	if m.editingKeyword {
		parts = append(parts, m.keyword.View())
	} else if mode == model.ModeSearch {
		label := kw
		if strings.TrimSpace(label) == "" {
			label = "(no keyword)"
		}
		parts = append(parts, theme.HelpStyle.Render("keyword: "+label))
	}
	if m.busy {
		parts = append(parts, m.spinner.View()+" thinking...")
	} else if m.notice != "" {
		parts = append(parts, theme.HelpStyle.Render(m.notice))
	}
	return strings.Join(parts, "  ")
}

// View renders the chat view.
func (m Model) View() string {
	sep := lipgloss.NewStyle().Foreground(theme.ColorSubtle).
		Render(strings.Repeat("─", max(m.width-2, 0)))

	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.viewport.View(),
		sep,
		m.renderModeLine(),
		m.input.View(),
	)
}

// SetSize updates the chat view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.input.SetWidth(max(width-2, 10))
	m.keyword.Width = max(width/2, 10)

	// separator + mode line + 3-line input
	m.viewport.Width = width
	m.viewport.Height = max(height-5, 3)
	m.refreshViewport()
}

// Focus gives keyboard focus to the text input.
func (m *Model) Focus() tea.Cmd {
	return m.input.Focus()
}
