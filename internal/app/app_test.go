package app

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	chatsession "github.com/nhle/mailassist/internal/chat"
	"github.com/nhle/mailassist/internal/logging"
	"github.com/nhle/mailassist/internal/model"
	"github.com/nhle/mailassist/internal/settings"
	"github.com/nhle/mailassist/internal/transcript"
	"github.com/nhle/mailassist/internal/ui/command"
	settingsview "github.com/nhle/mailassist/internal/ui/settings"
	"github.com/nhle/mailassist/tests/testutil"
)

type noMail struct{}

func (noMail) CurrentItem(context.Context) (*model.EmailRecord, error) {
	return nil, errors.New("no message")
}
func (noMail) Search(context.Context, string) ([]string, error) { return []string{}, nil }
func (noMail) InsertReply(context.Context, string) error        { return nil }

type okAdapter struct{}

func (okAdapter) Send(context.Context, []transcript.Entry, string, model.Settings) (string, error) {
	return "ok", nil
}

func newTestApp(t *testing.T) (Model, *chatsession.Session, *settings.SQLiteRepository) {
	t.Helper()
	for _, k := range []string{"OPENAI_API_KEY", "GEMINI_API_KEY", "ANTHROPIC_API_KEY"} {
		t.Setenv(k, "")
	}

	repo := testutil.NewTestRepository(t)
	session := chatsession.New(noMail{}, okAdapter{}, chatsession.WithLogger(logging.Discard()))
	m := New(Deps{
		Session: session,
		Stored:  model.DefaultSettings().WithCredential(model.ProviderOpenAI, "sk"),
		Repo:    repo,
		Logger:  logging.Discard(),
	})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return next.(Model), session, repo
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func TestCommandPaletteOpensAndCloses(t *testing.T) {
	m, _, _ := newTestApp(t)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlP})
	if m.currentView != ViewCommand {
		t.Fatalf("currentView = %v, want command palette", m.currentView)
	}
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.currentView != ViewChat {
		t.Errorf("currentView = %v, want chat", m.currentView)
	}
}

func TestCommandMode(t *testing.T) {
	m, session, _ := newTestApp(t)

	m, _ = update(t, m, command.CommandMsg("mode search quarterly report"))
	mode, kw := session.Mode()
	if mode != model.ModeSearch || kw != "quarterly report" {
		t.Errorf("Mode() = %v %q, want search %q", mode, kw, "quarterly report")
	}

	_, _ = update(t, m, command.CommandMsg("mode current"))
	if mode, _ := session.Mode(); mode != model.ModeCurrent {
		t.Errorf("Mode() = %v, want current", mode)
	}
}

func TestCommandClear(t *testing.T) {
	m, session, _ := newTestApp(t)

	if _, err := session.Send(context.Background(), "hello", model.DefaultSettings()); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	_, _ = update(t, m, command.CommandMsg("clear"))

	entries := session.Entries()
	if len(entries) != 1 || entries[0].Content != chatsession.ClearedGreeting {
		t.Errorf("entries after clear = %+v", entries)
	}
}

func TestCommandProviderPersists(t *testing.T) {
	m, _, repo := newTestApp(t)
	if err := repo.Save(context.Background(), model.DefaultSettings().WithCredential(model.ProviderOpenAI, "sk")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	m, cmd := update(t, m, command.CommandMsg("provider claude"))
	if cmd == nil {
		t.Fatal("expected a save command")
	}
	m, _ = update(t, m, cmd())

	if m.settings.SelectedProvider != model.ProviderClaude {
		t.Errorf("SelectedProvider = %v, want claude", m.settings.SelectedProvider)
	}
	stored, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if stored.SelectedProvider != model.ProviderClaude || stored.Credential(model.ProviderOpenAI) != "sk" {
		t.Errorf("stored = %+v", stored)
	}
}

func TestCommandProviderRejectsUnknown(t *testing.T) {
	m, _, _ := newTestApp(t)

	m, cmd := update(t, m, command.CommandMsg("provider llama"))
	if cmd != nil {
		t.Error("unknown provider should not trigger a save")
	}
	if m.settings.SelectedProvider != model.ProviderOpenAI {
		t.Errorf("SelectedProvider = %v, want openai", m.settings.SelectedProvider)
	}
}

func TestSavedSettingsKeepEnvironmentKeys(t *testing.T) {
	m, _, _ := newTestApp(t)
	t.Setenv("GEMINI_API_KEY", "env-gemini")

	saved := model.DefaultSettings()
	saved.SelectedProvider = model.ProviderGemini
	m, _ = update(t, m, settingsview.SavedMsg{Settings: saved})

	if got := m.settings.Credential(model.ProviderGemini); got != "env-gemini" {
		t.Errorf("gemini key = %q, want env value", got)
	}
	if m.settings.SelectedProvider != model.ProviderGemini {
		t.Errorf("SelectedProvider = %v, want gemini", m.settings.SelectedProvider)
	}
}

func TestHeaderFlagsMissingKey(t *testing.T) {
	m, _, _ := newTestApp(t)
	if got := m.headerStatus(); got != "OpenAI (GPT-4o) | bridge only" {
		t.Errorf("headerStatus() = %q", got)
	}

	m, _ = update(t, m, settingsview.ClearedMsg{Settings: model.DefaultSettings()})
	if got := m.headerStatus(); got != "OpenAI (GPT-4o) | bridge only | no API key" {
		t.Errorf("headerStatus() after clear = %q", got)
	}
}
