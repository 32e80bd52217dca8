package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/crescent/internal/calendar"
	"github.com/roach88/crescent/internal/config"
	"github.com/roach88/crescent/internal/domain"
	"github.com/roach88/crescent/internal/gateway"
	"github.com/roach88/crescent/internal/gateway/memgw"
	"github.com/roach88/crescent/internal/gateway/pggw"
	"github.com/roach88/crescent/internal/progression"
	"github.com/roach88/crescent/internal/store"
)

// app is the per-invocation wiring: configuration, the hydrated local store
// and the output formatter.
type app struct {
	opts  *RootOptions
	cfg   config.Config
	store *store.Store
	out   *OutputFormatter
}

func loadConfig(opts *RootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath, opts.EnvFile)
	if err != nil {
		return cfg, WrapExitError(ExitCommandError, "failed to load configuration", err)
	}
	return cfg, nil
}

// openApp loads configuration and opens and hydrates the local store.
// Callers must Close the app.
func openApp(cmd *cobra.Command, opts *RootOptions) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	eng, err := loadEngine(cfg.Progression)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load progression config", err)
	}

	if dir := filepath.Dir(cfg.DataPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to create data directory", err)
		}
	}
	slog.Debug("opening local store", "path", cfg.DataPath)
	p, err := store.OpenSQLite(cfg.DataPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open local store", err)
	}

	st := store.New(store.Options{
		Persister:       p,
		Engine:          eng,
		IDs:             opts.IDs,
		Now:             opts.Now,
		RetroactiveDays: cfg.Sync.RetroactiveDays,
	})
	if err := st.Hydrate(commandContext(cmd)); err != nil {
		slog.Warn("local snapshot was unreadable; starting empty", "path", cfg.DataPath, "error", err)
	}

	return &app{opts: opts, cfg: cfg, store: st, out: newFormatter(cmd, opts)}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		slog.Error("error closing local store", "error", err)
	}
}

// loadEngine builds the progression engine from the optional CUE override.
func loadEngine(pc config.ProgressionConfig) (*progression.Engine, error) {
	cfg := progression.DefaultConfig()
	if pc.ConfigPath != "" {
		loaded, err := progression.LoadConfig(pc.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if pc.MaxAdults > 0 {
		cfg.MaxAdults = pc.MaxAdults
	}
	return progression.New(cfg)
}

// openGateway connects the configured backend of record. The returned
// function releases it.
func (a *app) openGateway(ctx context.Context) (gateway.Gateway, func(), error) {
	if a.opts.Gateway != nil {
		return a.opts.Gateway, func() {}, nil
	}

	gc := a.cfg.Gateway
	switch gc.Kind {
	case config.GatewayPostgres:
		slog.Debug("connecting postgres gateway", "redis", gc.RedisAddr != "")
		gw, err := pggw.Open(ctx, pggw.Config{
			PostgresURL:   gc.PostgresURL,
			RedisAddr:     gc.RedisAddr,
			RedisPassword: gc.RedisPassword,
			RedisDB:       gc.RedisDB,
			ChannelPrefix: gc.ChannelPrefix,
			SessionToken:  gc.SessionToken,
			Verifier:      a.verifier(),
			Bootstrap:     gc.Bootstrap,
		})
		if err != nil {
			return nil, nil, WrapExitError(ExitCommandError, "failed to connect gateway", err)
		}
		return gw, gw.Close, nil
	default:
		// No backend of record: a signed-out session, so every write stays
		// queued in the local store.
		return memgw.New(nil), func() {}, nil
	}
}

func (a *app) verifier() *gateway.TokenVerifier {
	return gateway.NewTokenVerifier([]byte(a.cfg.Gateway.JWTSecret), a.cfg.Gateway.JWTIssuer)
}

// defaultOwner is the user a new family belongs to: the subject of a valid
// session token. Empty when signed out; the first pull after sign-in claims
// the family.
func (a *app) defaultOwner() string {
	gc := a.cfg.Gateway
	if gc.Kind != config.GatewayPostgres || gc.SessionToken == "" {
		return ""
	}
	id, err := a.verifier().Verify(gc.SessionToken)
	if err != nil {
		slog.Warn("session token rejected; the family will be created signed out", "error", err)
		return ""
	}
	return id.UserID
}

// resolveProfile finds a profile by ID or, case-insensitively, by nickname.
func (a *app) resolveProfile(ref string) (domain.Profile, error) {
	if p, ok := a.store.Profile(ref); ok {
		return p, nil
	}
	want := domain.NormalizeText(ref)
	var matches []domain.Profile
	for _, p := range a.store.Profiles() {
		if strings.EqualFold(p.Nickname, want) {
			matches = append(matches, p)
		}
	}
	switch len(matches) {
	case 0:
		return domain.Profile{}, NewExitError(ExitFailure, fmt.Sprintf("no profile %q", ref))
	case 1:
		return matches[0], nil
	default:
		return domain.Profile{}, NewExitError(ExitFailure,
			fmt.Sprintf("%d profiles are called %q; use the profile id", len(matches), ref))
	}
}

// parseDate parses an optional YYYY-MM-DD flag. Empty yields the zero Date.
func parseDate(flag, s string) (calendar.Date, error) {
	if s == "" {
		return calendar.Date{}, nil
	}
	d, err := calendar.ParseDate(s)
	if err != nil {
		return d, WrapExitError(ExitCommandError, "invalid --"+flag, err)
	}
	return d, nil
}

// rejected wraps a store validation error.
func rejected(err error) error {
	if domain.IsValidationError(err) {
		return WrapExitError(ExitFailure, "rejected", err)
	}
	return err
}
