package di

import (
	"fmt"
	"time"

	"agent-compare/internal/adapter/tool"
	"agent-compare/internal/application/port/input"
	"agent-compare/internal/application/port/output"
	"agent-compare/internal/application/service"
	"agent-compare/internal/infrastructure/llm"
	"agent-compare/internal/infrastructure/logger"
	"agent-compare/internal/infrastructure/prompts"
	"agent-compare/internal/infrastructure/search/duckduckgo"
	"agent-compare/internal/usecase/compare"
	"agent-compare/internal/usecase/direct"
	"agent-compare/internal/usecase/executor"
	"agent-compare/internal/usecase/keycheck"
)

type Container struct {
	Config       Config
	Logger       output.LoggerPort
	Providers    output.ProviderFactory
	Tools        output.ToolRegistry
	KeyValidator input.KeyValidator
	Direct       input.Responder
	Agent        input.Responder
	Comparer     input.Comparer
}

type Option func(*options)

type options struct {
	observer  output.AgentObserver
	logger    output.LoggerPort
	search    output.SearchPort
	providers output.ProviderFactory
	now       func() time.Time
}

// WithObserver streams agent progress, e.g. to the terminal.
func WithObserver(o output.AgentObserver) Option {
	return func(opts *options) { opts.observer = o }
}

func WithLogger(l output.LoggerPort) Option {
	return func(opts *options) { opts.logger = l }
}

func WithSearch(s output.SearchPort) Option {
	return func(opts *options) { opts.search = s }
}

func WithProviders(p output.ProviderFactory) Option {
	return func(opts *options) { opts.providers = p }
}

func WithClock(now func() time.Time) Option {
	return func(opts *options) { opts.now = now }
}

func NewContainer(cfg Config, opts ...Option) (*Container, error) {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	log := o.logger
	if log == nil {
		zl, err := logger.NewLoggerAdapter(logger.Config{Level: cfg.LogLevel, Development: cfg.LogDevelopment})
		if err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
		log = zl
	}

	systemTemplate, err := prompts.LoadSystemPrompt(cfg.SystemPromptFile)
	if err != nil {
		log.Close()
		return nil, fmt.Errorf("failed to load system prompt: %w", err)
	}
	builder := prompts.NewBuilder(systemTemplate, o.now)

	providers := o.providers
	if providers == nil {
		providers = llm.NewFactory(llm.Config{
			Model:   cfg.OpenAIModel,
			BaseURL: cfg.OpenAIBaseURL,
			Debug:   cfg.LLMDebug,
			Logger:  log,
		})
	}

	search := o.search
	if search == nil {
		searchCfg := duckduckgo.DefaultConfig()
		searchCfg.Logger = log.Named("duckduckgo")
		search = duckduckgo.NewClient(searchCfg)
	}

	tools := service.NewToolRegistry()
	tools.Register(tool.NewWebSearchTool(search, cfg.SearchMaxResults, log.Named("tool")))

	var agentOpts []executor.Option
	if o.observer != nil {
		agentOpts = append(agentOpts, executor.WithObserver(o.observer))
	}
	agent := executor.New(providers, tools, builder, log.Named("agent"), executor.Config{
		MaxIterations: cfg.AgentMaxIterations,
		ModelTimeout:  cfg.ModelTimeout,
		ToolTimeout:   cfg.ToolTimeout,
	}, agentOpts...)

	directUC := direct.New(providers, builder, log.Named("direct"), cfg.ModelTimeout)
	keys := keycheck.New(providers, log.Named("keycheck"), cfg.KeyProbeTimeout)

	log.Debug("Container ready",
		"model", cfg.OpenAIModel,
		"maxIterations", cfg.AgentMaxIterations,
		"searchMaxResults", cfg.SearchMaxResults,
	)

	return &Container{
		Config:       cfg,
		Logger:       log,
		Providers:    providers,
		Tools:        tools,
		KeyValidator: keys,
		Direct:       directUC,
		Agent:        agent,
		Comparer:     compare.New(keys, directUC, agent, log.Named("compare")),
	}, nil
}

func (c *Container) Close() {
	if c.Logger != nil {
		c.Logger.Close()
	}
}
