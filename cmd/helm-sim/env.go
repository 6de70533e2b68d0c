package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/config"
	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/digest"
	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/observability"
	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/packet"
	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/policy"
	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/prng"
	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/session"
	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/world"
)

// commonFlags are accepted by every session command.
type commonFlags struct {
	configPath string
	seed       int64
	randomSeed bool
	profile    string
	profileDir string
	jsonOutput bool
}

func (f *commonFlags) register(cmd *flag.FlagSet) {
	cmd.StringVar(&f.configPath, "config", "", "Path to a YAML config file")
	cmd.Int64Var(&f.seed, "seed", -1, "Override the configured seed")
	cmd.BoolVar(&f.randomSeed, "random-seed", false, "Seed from the wall clock")
	cmd.StringVar(&f.profile, "profile", "", "Apply settings from profile_<name>.yaml")
	cmd.StringVar(&f.profileDir, "profile-dir", ".", "Directory holding settings profiles")
	cmd.BoolVar(&f.jsonOutput, "json", false, "Output results as JSON")
}

// env is the wired runtime shared by the commands.
type env struct {
	cfg      *config.Config
	logger   *slog.Logger
	provider *observability.Provider
	hasher   digest.Hasher
	text     *world.TextCatalog
}

func setup(ctx context.Context, flags commonFlags, stderr io.Writer) (*env, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	switch {
	case flags.seed < -1 || flags.seed > int64(^uint32(0)):
		return nil, fmt.Errorf("seed %d out of range [0, %d]", flags.seed, ^uint32(0))
	case flags.seed >= 0:
		cfg.Seed = uint32(flags.seed)
	case flags.randomSeed:
		cfg.Seed = prng.SeedFromInt64(time.Now().UnixMilli())
	}
	if flags.profile != "" {
		p, err := config.LoadProfile(flags.profileDir, flags.profile)
		if err != nil {
			return nil, err
		}
		p.Apply(cfg)
	}

	logger := observability.NewLogger(cfg.Log.Level, cfg.Log.Format, stderr)
	slog.SetDefault(logger)

	h, err := cfg.NewHasher()
	if err != nil {
		return nil, err
	}

	var text *world.TextCatalog
	if cfg.TextCatalog != "" {
		t, err := world.LoadText(cfg.TextCatalog)
		if err != nil {
			return nil, err
		}
		text = &t
	}

	provider, err := observability.New(ctx, cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	return &env{cfg: cfg, logger: logger, provider: provider, hasher: h, text: text}, nil
}

func (e *env) close(ctx context.Context) {
	if err := e.provider.Shutdown(ctx); err != nil {
		e.logger.Warn("telemetry shutdown failed", "error", err)
	}
}

// track wraps one command in a span. The returned func ends it once; later
// calls are no-ops.
func (e *env) track(ctx context.Context, name string) (context.Context, func(error)) {
	ctx, finish := e.provider.TrackOperation(ctx, "helm-sim."+name, attribute.Int64("seed", int64(e.cfg.Seed)))
	var once sync.Once
	return ctx, func(err error) { once.Do(func() { finish(err) }) }
}

// fail ends the span with err and reports it.
func fail(stderr io.Writer, end func(error), err error) int {
	end(err)
	_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
	return 2
}

func (e *env) sessionOptions() session.Options {
	return session.Options{
		Seed:     e.cfg.Seed,
		Settings: e.cfg.Settings,
		Hasher:   e.hasher,
		Text:     e.text,
		Logger:   e.logger,
		Metrics:  e.provider.Metrics,
	}
}

func (e *env) newSession(ctx context.Context) (*session.Controller, error) {
	return session.New(ctx, e.sessionOptions())
}

// runScenario approves the travel packet's first option.
func runScenario(ctx context.Context, c *session.Controller) (packet.Outcome, error) {
	id, ok := c.PacketFor(policy.CategoryTravel)
	if !ok {
		return packet.Outcome{}, fmt.Errorf("no travel packet")
	}
	return c.Apply(ctx, packet.Approve{PacketID: id})
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
