package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"

	"github.com/nhle/mailassist/internal/bridge"
	"github.com/nhle/mailassist/internal/chat"
	"github.com/nhle/mailassist/internal/logging"
	"github.com/nhle/mailassist/internal/mailhost"
	"github.com/nhle/mailassist/internal/mailhost/ews"
	"github.com/nhle/mailassist/internal/mailhost/imaphost"
	"github.com/nhle/mailassist/internal/model"
	"github.com/nhle/mailassist/internal/provider"
	"github.com/nhle/mailassist/internal/settings"
)

// env is the per-invocation runtime: config, logger and, once opened,
// the settings repository.
type env struct {
	cfg    *model.AppConfig
	logger *log.Logger
	closer io.Closer

	repo settings.Repository

	// stored is what the repository holds; settings adds environment
	// keys on top and is never saved.
	stored   model.Settings
	settings model.Settings
}

// setup loads the config file and configures logging.
func (o *globalOptions) setup() (*env, error) {
	cfg, err := model.LoadConfig(o.configPath)
	if err != nil {
		return nil, err
	}

	logger, closer, err := logging.Setup(cfg.Log, o.verbose)
	if err != nil {
		return nil, err
	}
	logger.Debug("config loaded", "path", o.configPath, "host", cfg.Mail.Host)

	return &env{cfg: cfg, logger: logger, closer: closer}, nil
}

// openRepo opens the settings repository and loads the saved settings.
func (e *env) openRepo(ctx context.Context) error {
	repo, err := settings.Open(e.cfg.Settings)
	if err != nil {
		return fmt.Errorf("opening settings: %w", err)
	}
	e.repo = repo

	stored, err := repo.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}
	e.stored = stored
	e.settings = settings.ApplyEnv(stored, os.Getenv)
	return nil
}

// Close releases the repository and the log file.
func (e *env) Close() error {
	if e.repo != nil {
		if err := e.repo.Close(); err != nil {
			e.logger.Warn("closing settings", "err", err)
		}
	}
	return e.closer.Close()
}

// secrets returns the mail credential store. Without a usable keyring
// only the environment variables are consulted.
func (e *env) secrets() *settings.Secrets {
	ring, err := settings.OpenKeyring()
	if err != nil {
		e.logger.Warn("keyring unavailable, reading mail secrets from the environment only", "err", err)
		return settings.NewSecrets(nil, nil)
	}
	return settings.NewSecrets(ring, nil)
}

// newHost builds the configured primary mail host. It returns nil when
// none is configured.
func (e *env) newHost(ctx context.Context) (mailhost.Host, error) {
	mc := e.cfg.Mail

	switch mc.Host {
	case model.MailHostEWS:
		secret, err := e.secrets().Get(settings.SecretEWS)
		if err != nil {
			return nil, err
		}
		client, err := ews.NewClientFromConfig(ctx, mc.EWS, secret, nil, e.logger)
		if err != nil {
			return nil, err
		}
		return ews.NewHost(client, mc.EWS.ItemID), nil

	case model.MailHostIMAP:
		password, err := e.secrets().Get(settings.SecretIMAP)
		if err != nil {
			return nil, err
		}
		return imaphost.NewHost(imaphost.NewClient(mc.IMAP, password)), nil

	default:
		return nil, nil
	}
}

// newSession assembles a chat session over the configured host, the
// bridge store and the provider dispatcher. It also returns a label for
// the host.
func (e *env) newSession(ctx context.Context, store *bridge.Store, opts ...chat.Option) (*chat.Session, string, error) {
	host, err := e.newHost(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("configuring mail host: %w", err)
	}

	source := mailhost.NewContextProvider(host, store, e.logger)
	adapter := provider.New(e.cfg.Providers, nil, e.logger)

	opts = append([]chat.Option{chat.WithLogger(e.logger)}, opts...)
	return chat.New(source, adapter, opts...), source.HostName(), nil
}
