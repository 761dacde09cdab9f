package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/MightyPrytanis/roundtable/internal/agent"
	"github.com/MightyPrytanis/roundtable/internal/attachment"
	"github.com/MightyPrytanis/roundtable/internal/engine"
	"github.com/MightyPrytanis/roundtable/internal/metrics"
	"github.com/MightyPrytanis/roundtable/internal/prompt"
	"github.com/MightyPrytanis/roundtable/internal/store/sqlite"
	"github.com/MightyPrytanis/roundtable/internal/tracing"
	"github.com/MightyPrytanis/roundtable/internal/workflow"
)

// stack holds the wired application components behind a CLI command.
type stack struct {
	db       *sqlite.DB
	executor *engine.Executor
	metrics  *metrics.Recorder
	tracing  *tracing.Provider
	watcher  *attachment.Watcher
}

// buildStack wires storage, attachments, agents, tracing, and the executor
// from the loaded config.
func buildStack() (*stack, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	db, err := sqlite.NewDB(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("opening workflow store: %w", err)
	}

	tracer, err := tracing.NewProvider(cfg.Tracing)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing tracing: %w", err)
	}

	var attachments attachment.Store
	var watcher *attachment.Watcher
	if info, err := os.Stat(cfg.AttachmentsDir); err == nil && info.IsDir() {
		dirStore, err := attachment.NewDirStore(cfg.AttachmentsDir)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		cached := attachment.NewCachedStore(dirStore,
			attachment.DefaultExpiration, attachment.DefaultCleanupInterval)
		attachments = cached

		watcher, err = attachment.NewWatcher(attachment.DefaultWatcherConfig(cfg.AttachmentsDir), cached)
		if err == nil {
			if startErr := watcher.Start(); startErr != nil {
				watcher = nil
			}
		}
	}

	invoker, err := buildInvoker()
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	builder := prompt.NewBuilder(attachments,
		prompt.WithPreviewLimit(cfg.Engine.PreviewLimit),
		prompt.WithFirstStepBudget(cfg.Engine.FirstStepBudget),
		prompt.WithDigestBudget(cfg.Engine.DigestBudget),
	)

	recorder := metrics.NewRecorder()
	executor := engine.New(db.WorkflowRepository(), invoker, builder,
		engine.WithStepTimeout(cfg.Engine.StepTimeout),
		engine.WithTracer(tracer.Tracer()),
		engine.WithMetrics(recorder),
	)

	return &stack{
		db:       db,
		executor: executor,
		metrics:  recorder,
		tracing:  tracer,
		watcher:  watcher,
	}, nil
}

// buildStatusStack wires storage only, for commands that inspect or cancel
// workflows without invoking agents.
func buildStatusStack() (*stack, error) {
	db, err := sqlite.NewDB(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("opening workflow store: %w", err)
	}

	tracer, err := tracing.NewProvider(tracing.Config{Enabled: false})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	noAgents := agent.InvokeFunc(func(context.Context, workflow.AgentID, string) (agent.Result, error) {
		return agent.Result{}, fmt.Errorf("agent invocation is not available in this command")
	})

	return &stack{
		db:       db,
		executor: engine.New(db.WorkflowRepository(), noAgents, prompt.NewBuilder(nil)),
		metrics:  metrics.NewRecorder(),
		tracing:  tracer,
	}, nil
}

// buildInvoker creates the LLM invoker from the configured agents.
func buildInvoker() (agent.Invoker, error) {
	if len(cfg.Agents) == 0 {
		return nil, fmt.Errorf("no agents configured; add an agents section to the config file")
	}

	configs := make(map[workflow.AgentID]agent.ModelConfig, len(cfg.Agents))
	for name, a := range cfg.Agents {
		configs[workflow.AgentID(name)] = agent.ModelConfig{
			Model:   a.Model,
			APIKey:  a.APIKey,
			BaseURL: a.BaseURL,
		}
	}
	return agent.NewLLMInvoker(configs)
}

// close releases stack resources.
func (s *stack) close(ctx context.Context) {
	if s.watcher != nil {
		_ = s.watcher.Stop()
	}
	_ = s.tracing.Shutdown(ctx)
	_ = s.db.Close()
}
