package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	openai "github.com/sashabaranov/go-openai"

	"github.com/sells-group/exam-engine/internal/consensus"
	"github.com/sells-group/exam-engine/internal/cost"
	"github.com/sells-group/exam-engine/internal/engine"
	"github.com/sells-group/exam-engine/internal/provider"
	"github.com/sells-group/exam-engine/internal/store"
	anthropicpkg "github.com/sells-group/exam-engine/pkg/anthropic"
	geminipkg "github.com/sells-group/exam-engine/pkg/gemini"
)

// env holds the wired engine and store for one command invocation.
type env struct {
	store  store.Store
	engine *engine.Engine
}

func (e *env) Close() {
	if e.store != nil {
		e.store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	var poolCfg *store.PoolConfig
	if cfg.Store.MaxConns > 0 || cfg.Store.MinConns > 0 {
		poolCfg = &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		}
	}

	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DSN, poolCfg)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

func credentials() provider.Credentials {
	return provider.Credentials{
		Anthropic: provider.Credential{APIKey: cfg.Providers.Anthropic.APIKey, Model: cfg.Providers.Anthropic.Model},
		OpenAI:    provider.Credential{APIKey: cfg.Providers.OpenAI.APIKey, Model: cfg.Providers.OpenAI.Model},
		Gemini:    provider.Credential{APIKey: cfg.Providers.Gemini.APIKey, Model: cfg.Providers.Gemini.Model},
	}
}

func buildAdapters() map[string]provider.Adapter {
	adapters := map[string]provider.Adapter{}
	if key := cfg.Providers.Anthropic.APIKey; key != "" {
		adapters["anthropic"] = provider.NewAnthropic(anthropicpkg.NewClient(key))
	}
	if key := cfg.Providers.OpenAI.APIKey; key != "" {
		adapters["openai"] = provider.NewOpenAI(openai.NewClient(key))
	}
	if key := cfg.Providers.Gemini.APIKey; key != "" {
		adapters["gemini"] = provider.NewGemini(geminipkg.NewClient(key))
	}
	return adapters
}

// initEnv wires the store, providers and consensus engine from config.
func initEnv(ctx context.Context) (*env, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	policy := consensus.DefaultPolicy()
	if cfg.Engine.PolicyFile != "" {
		policy, err = consensus.LoadPolicy(cfg.Engine.PolicyFile)
		if err != nil {
			st.Close()
			return nil, err
		}
	}

	eng, err := engine.New(engine.Options{
		Registry:   provider.NewRegistry(credentials()),
		Adapters:   buildAdapters(),
		Policy:     policy,
		Deadline:   time.Duration(cfg.Engine.DeadlineSeconds) * time.Second,
		RateLimits: cfg.Engine.RateLimits,
		Store:      st,
		Costs:      cost.NewCalculator(cfg.Pricing),
	})
	if err != nil {
		st.Close()
		return nil, err
	}

	return &env{store: st, engine: eng}, nil
}
