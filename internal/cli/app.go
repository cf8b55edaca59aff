package cli

import (
	"context"

	"go.uber.org/zap"

	"github.com/ppiankov/chartcode/internal/chat"
	"github.com/ppiankov/chartcode/internal/docstore"
	"github.com/ppiankov/chartcode/internal/extract"
	"github.com/ppiankov/chartcode/internal/llm"
	"github.com/ppiankov/chartcode/internal/lookup"
	"github.com/ppiankov/chartcode/internal/model"
	"github.com/ppiankov/chartcode/internal/retrieve"
	"github.com/ppiankov/chartcode/internal/session"
	"github.com/ppiankov/chartcode/internal/util"
)

// app holds the wired collaborators for one command invocation
type app struct {
	store    docstore.Store
	lookups  lookup.Set
	sessions *session.Store
	chat     *chat.Service
	provider llm.Provider // nil when no LLM is configured
}

// newStore opens the configured document store and applies the seed file
func newStore(ctx context.Context, c *model.Config) (docstore.Store, error) {
	store, err := docstore.Open(ctx, c.Store)
	if err != nil {
		return nil, err
	}
	if c.Store.SeedFile != "" {
		n, err := docstore.LoadSeed(ctx, store, c.Store.SeedFile)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		zap.L().Info("seeded documents", zap.String("file", c.Store.SeedFile), zap.Int("count", n))
	}
	return store, nil
}

// newLookups builds the decorated lookup services
func newLookups(c *model.Config) lookup.Set {
	client := util.NewHTTPClient(c.Lookup.RequestTimeout(), c.LLM.HTTPProxy, c.LLM.HTTPSProxy, c.LLM.NoProxy)
	return lookup.New(c.Lookup, client)
}

// newApp wires the full conversation stack. A missing or broken LLM
// configuration is not fatal: code extraction then reports per-document
// failures and summaries are disabled
func newApp(ctx context.Context, c *model.Config) (*app, error) {
	store, err := newStore(ctx, c)
	if err != nil {
		return nil, err
	}

	provider, err := llm.NewProvider(llm.ConfigFromModel(c.LLM))
	if err != nil {
		warnf("failed to initialize LLM provider: %v", err)
		provider = nil
	}
	if provider == nil {
		zap.L().Info("no LLM provider configured; extraction and summaries are unavailable")
	}

	lookups := newLookups(c)
	orch := extract.New(store, llm.NewExtractor(provider), lookups, extract.OptionsFromConfig(c.Extraction))
	sessions := session.NewStore(c.Session.TTLDuration(), c.Session.CleanupDuration())

	opts := chat.Options{Retriever: retrieve.New(store)}
	if provider != nil {
		opts.Summarizer = llm.NewSummarizer(provider)
		opts.Answerer = llm.NewAnswerer(provider)
	}

	return &app{
		store:    store,
		lookups:  lookups,
		sessions: sessions,
		chat:     chat.NewService(store, sessions, orch, opts),
		provider: provider,
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		zap.L().Warn("close document store", zap.Error(err))
	}
}
