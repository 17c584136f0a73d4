package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all runtime settings, loaded from the environment with an
// optional .env fallback.
type Config struct {
	DiscordToken string `env:"DISCORD_TOKEN,required"`
	StoragePath  string `env:"STORAGE_PATH" envDefault:"exia_data.json"`

	// Persona
	PersonaName   string `env:"PERSONA_NAME" envDefault:"exia"`
	PersonaPrompt string `env:"PERSONA_PROMPT_PATH" envDefault:"data/persona.md"`

	// Completion backend: "lmstudio" (OpenAI-compatible local endpoint) or "openai".
	AIProvider  string  `env:"AI_PROVIDER" envDefault:"lmstudio"`
	LMAPIURL    string  `env:"LM_API_URL" envDefault:"http://localhost:1234/v1/chat/completions"`
	LMModel     string  `env:"LM_MODEL" envDefault:"local-model"`
	OpenAIKey   string  `env:"OPENAI_API_KEY"`
	OpenAIModel string  `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	Temperature float64 `env:"AI_TEMPERATURE" envDefault:"0.85"`

	// Context builder
	FetchLimit     int           `env:"CONTEXT_FETCH_LIMIT" envDefault:"50"`
	ContextWindow  time.Duration `env:"CONTEXT_TIME_WINDOW" envDefault:"600s"`
	MaxContextMsgs int           `env:"CONTEXT_MAX_MESSAGES" envDefault:"30"`
	TokenBudget    int           `env:"CONTEXT_TOKEN_BUDGET" envDefault:"3000"`

	// Decision engine
	ReactChance   float64       `env:"REACTION_CHANCE" envDefault:"0.003"`
	ReplyCooldown time.Duration `env:"REPLY_COOLDOWN" envDefault:"20s"`
	CmdCooldown   time.Duration `env:"COMMAND_COOLDOWN" envDefault:"3s"`

	// Boredom loop
	BoredomInterval  time.Duration `env:"BOREDOM_CHECK_INTERVAL" envDefault:"60s"`
	BoredomIncrement float64       `env:"BOREDOM_CHANCE_INCREMENT" envDefault:"0.02"`
	BoredomMax       float64       `env:"BOREDOM_CHANCE_MAX" envDefault:"0.5"`
	BoredomIdle      time.Duration `env:"BOREDOM_IDLE_THRESHOLD" envDefault:"300s"`
	BoredomAllGuilds bool          `env:"BOREDOM_ALL_GUILDS" envDefault:"false"`

	// Presence commentary
	PresenceChance float64 `env:"PRESENCE_COMMENT_CHANCE" envDefault:"0.001"`
}

// New loads the configuration. Missing required values are fatal.
func New() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[INFO] No .env file found, using system environment")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		log.Fatalf("[ERR] Failed to parse config: %v", err)
	}
	return cfg
}
