package app

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/nhle/mailassist/internal/bridge"
	chatsession "github.com/nhle/mailassist/internal/chat"
	"github.com/nhle/mailassist/internal/logging"
	"github.com/nhle/mailassist/internal/model"
	settingsstore "github.com/nhle/mailassist/internal/settings"
	"github.com/nhle/mailassist/internal/ui"
	"github.com/nhle/mailassist/internal/ui/command"
	chatview "github.com/nhle/mailassist/internal/ui/chat"
	helpview "github.com/nhle/mailassist/internal/ui/help"
	settingsview "github.com/nhle/mailassist/internal/ui/settings"
)

const title = "AI Outlook Assistant"

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewChat ViewState = iota
	ViewSettings
	ViewHelp
	ViewCommand
)

// Deps holds what the root model needs from the process.
type Deps struct {
	Session *chatsession.Session

	// Stored is what the repository holds. Keys from the environment are
	// layered on top for sending but never saved.
	Stored model.Settings
	Repo   settingsstore.Repository

	// Listener is nil when the bridge channel is disabled.
	Listener *bridge.Listener

	// HostLabel describes the primary mail host, e.g. "Exchange".
	HostLabel string

	Logger *log.Logger
}

// Model is the root Bubble Tea model that manages view routing,
// layout, and the user's settings.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	keys         *KeyMap
	settings     model.Settings
	repo         settingsstore.Repository
	listener     *bridge.Listener
	hostLabel    string
	logger       *log.Logger

	chatView     chatview.Model
	settingsView settingsview.Model
	helpView     helpview.Model
	commandView  command.Model
	ready        bool
}

// New creates the root application model.
func New(d Deps) Model {
	keys := DefaultKeyMap()

	hostLabel := d.HostLabel
	if hostLabel == "" {
		hostLabel = "bridge only"
	}

	effective := settingsstore.ApplyEnv(d.Stored, os.Getenv)

	return Model{
		currentView:  ViewChat,
		keys:         keys,
		settings:     effective,
		repo:         d.Repo,
		listener:     d.Listener,
		hostLabel:    hostLabel,
		logger:       logging.OrDefault(d.Logger).With("component", "app"),
		chatView:     chatview.New(d.Session, effective, keys, 80, 24),
		settingsView: settingsview.New(d.Repo, d.Stored, hostLabel, keys, 80, 24),
		helpView:     helpview.New(keys, 80, 24),
		commandView:  command.New(80, 24),
	}
}

// Init starts the chat view and the bridge subscription. With no key for
// the selected provider the settings view opens first.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.chatView.Init(), m.waitForBridge()}
	if m.settings.Credential(m.settings.SelectedProvider) == "" {
		cmds = append(cmds, func() tea.Msg { return firstRunMsg{} })
	}
	return tea.Batch(cmds...)
}

// firstRunMsg opens settings when no usable key is configured.
type firstRunMsg struct{}

func (m Model) waitForBridge() tea.Cmd {
	if m.listener == nil {
		return nil
	}
	return m.listener.WaitForNextUpdate()
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		contentWidth := m.layout.ContentWidth()
		contentHeight := m.layout.ContentHeight()
		m.chatView.SetSize(contentWidth, contentHeight)
		m.settingsView.SetSize(contentWidth, contentHeight)
		m.helpView.SetSize(contentWidth, contentHeight)
		m.commandView.SetSize(contentWidth, contentHeight)
		// Forward to active view so huh forms can calculate their layout.
		return m.updateActiveView(msg)

	case firstRunMsg:
		m.previousView = ViewChat
		m.currentView = ViewSettings
		return m, m.settingsView.Init()

	case bridge.UpdateMsg:
		m.logger.Debug("bridge record", "subject", msg.Record.Subject)
		m.chatView.SetNotice(fmt.Sprintf("Open message: %s", msg.Record.Subject))
		return m, m.waitForBridge()

	case chatview.TurnDoneMsg, chatview.ReplyDoneMsg:
		// Turns finish in the background; deliver them even when another
		// view is on top.
		var cmd tea.Cmd
		m.chatView, cmd = m.chatView.Update(msg)
		return m, cmd

	case settingsview.SavedMsg:
		m.applySettings(msg.Settings)
		return m, nil

	case settingsview.ClearedMsg:
		m.applySettings(msg.Settings)
		return m, nil

	case settingsview.CloseMsg:
		m.currentView = ViewChat
		return m, m.chatView.Focus()

	case command.CommandMsg:
		m.currentView = ViewChat
		return m.executeCommand(string(msg))

	case providerSavedMsg:
		if msg.err != nil {
			m.chatView.SetNotice(fmt.Sprintf("Error saving settings: %v", msg.err))
			return m, nil
		}
		m.applySettings(msg.settings)
		return m, nil

	case tea.KeyMsg:
		// Global keys that work regardless of current view
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit

		case key.Matches(msg, m.keys.Help):
			if m.currentView == ViewHelp {
				m.currentView = m.previousView
				return m, nil
			}
			m.previousView = m.currentView
			m.currentView = ViewHelp
			return m, nil

		case key.Matches(msg, m.keys.Settings):
			if m.currentView == ViewChat {
				m.previousView = m.currentView
				m.currentView = ViewSettings
				return m, m.settingsView.Init()
			}

		case key.Matches(msg, m.keys.Command):
			if m.currentView == ViewCommand {
				m.currentView = m.previousView
				return m, nil
			}
			if m.currentView == ViewChat {
				m.previousView = m.currentView
				m.currentView = ViewCommand
				return m, m.commandView.Focus()
			}

		case key.Matches(msg, m.keys.Back):
			if m.currentView == ViewHelp || m.currentView == ViewCommand {
				m.currentView = m.previousView
				return m, nil
			}
		}
	}

	return m.updateActiveView(msg)
}

// applySettings takes freshly stored settings and makes them, plus any
// environment keys, the settings for every later send.
func (m *Model) applySettings(stored model.Settings) {
	m.settings = settingsstore.ApplyEnv(stored, os.Getenv)
	m.chatView.SetSettings(m.settings)
	m.settingsView.SetCurrent(stored)
	m.logger.Info("settings updated", "provider", stored.SelectedProvider)
}

// updateActiveView forwards msg to the current view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.currentView {
	case ViewChat:
		m.chatView, cmd = m.chatView.Update(msg)
	case ViewSettings:
		m.settingsView, cmd = m.settingsView.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	}
	return m, cmd
}

// View renders the application.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	header := m.layout.RenderHeader(title, m.headerStatus())
	content := m.renderContent()

	toast := ""
	if m.currentView == ViewChat {
		toast = m.chatView.Toast()
	}
	statusBar := m.layout.RenderStatusBar(m.keyHints(), toast)

	return m.layout.RenderWithFrame(header, content, statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewChat:
		return m.chatView.View()
	case ViewSettings:
		return m.settingsView.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.commandView.View()
	default:
		return ""
	}
}

func (m Model) headerStatus() string {
	p := m.settings.SelectedProvider
	status := fmt.Sprintf("%s | %s", p.DisplayName(), m.hostLabel)
	if m.settings.Credential(p) == "" {
		status += " | no API key"
	}
	return status
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	switch m.currentView {
	case ViewHelp:
		return "f1 close help | esc back"
	case ViewSettings:
		return "e edit | c clear | esc back"
	case ViewCommand:
		return "enter execute | tab complete | esc back"
	default:
		if m.chatView.Busy() {
			return "waiting for response... | ctrl+l clear | ctrl+c quit"
		}
		return "enter send | ctrl+t mode | ctrl+r reply | ctrl+p commands | ctrl+s settings | f1 help"
	}
}

// providerSavedMsg reports the outcome of switching providers from the
// command palette.
type providerSavedMsg struct {
	settings model.Settings
	err      error
}

// executeCommand handles a command string from the command palette.
func (m Model) executeCommand(input string) (tea.Model, tea.Cmd) {
	fields := strings.Fields(input)
	if len(fields) == 0 {
		return m, nil
	}
	arg := strings.TrimSpace(strings.TrimPrefix(input, fields[0]))

	switch fields[0] {
	case "clear":
		m.chatView.Clear()
		return m, nil

	case "mode":
		mode, keyword, _ := strings.Cut(arg, " ")
		parsed, err := model.ParseMode(mode)
		if err != nil {
			m.chatView.SetNotice(err.Error())
			return m, nil
		}
		var cmd tea.Cmd
		m.chatView, cmd = m.chatView.SetMode(parsed, strings.TrimSpace(keyword))
		return m, cmd

	case "provider":
		p, err := model.ParseProvider(arg)
		if err != nil {
			m.chatView.SetNotice(err.Error())
			return m, nil
		}
		return m, m.saveProvider(p)

	case "reply":
		var cmd tea.Cmd
		m.chatView, cmd = m.chatView.Reply()
		return m, cmd

	case "settings":
		m.previousView = ViewChat
		m.currentView = ViewSettings
		return m, m.settingsView.Init()

	case "help":
		m.previousView = ViewChat
		m.currentView = ViewHelp
		return m, nil

	case "quit", "q":
		return m, tea.Quit

	default:
		m.chatView.SetNotice(fmt.Sprintf("Unknown command %q", fields[0]))
		return m, nil
	}
}

// saveProvider changes only the selected provider of the stored settings.
func (m Model) saveProvider(p model.Provider) tea.Cmd {
	repo := m.repo
	return func() tea.Msg {
		ctx := context.Background()
		stored, err := repo.Load(ctx)
		if err != nil {
			return providerSavedMsg{err: err}
		}
		stored.SelectedProvider = p
		if err := repo.Save(ctx, stored); err != nil {
			return providerSavedMsg{err: err}
		}
		return providerSavedMsg{settings: stored}
	}
}
