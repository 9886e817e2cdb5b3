package di

import (
	"time"

	"agent-compare/internal/application/port/output"
)

type Config struct {
	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string
	LLMDebug      bool

	HTTPAddr       string
	RequestTimeout time.Duration

	AgentMaxIterations int
	SearchMaxResults   int
	ModelTimeout       time.Duration
	ToolTimeout        time.Duration
	KeyProbeTimeout    time.Duration

	SystemPromptFile string

	LogLevel       string
	LogDevelopment bool
}

func LoadConfig(env output.ConfigPort) Config {
	return Config{
		OpenAIAPIKey:  env.Get("OPENAI_API_KEY"),
		OpenAIModel:   env.GetWithDefault("OPENAI_MODEL", "gpt-4.1-mini"),
		OpenAIBaseURL: env.Get("OPENAI_BASE_URL"),
		LLMDebug:      env.GetBool("LLM_DEBUG", false),

		HTTPAddr:       env.GetWithDefault("HTTP_ADDR", ":5000"),
		RequestTimeout: env.GetDuration("REQUEST_TIMEOUT", 3*time.Minute),

		AgentMaxIterations: env.GetInt("AGENT_MAX_ITERATIONS", 10),
		SearchMaxResults:   env.GetInt("SEARCH_MAX_RESULTS", 5),
		ModelTimeout:       env.GetDuration("MODEL_TIMEOUT", 60*time.Second),
		ToolTimeout:        env.GetDuration("TOOL_TIMEOUT", 20*time.Second),
		KeyProbeTimeout:    env.GetDuration("KEY_PROBE_TIMEOUT", 10*time.Second),

		SystemPromptFile: env.Get("SYSTEM_PROMPT_FILE"),

		LogLevel:       env.GetWithDefault("LOG_LEVEL", "info"),
		LogDevelopment: env.GetWithDefault("APP_ENV", "dev") == "dev",
	}
}
