package cmd

import (
	"log"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "interview-coach"
)

type Config struct {
	KnowledgeDir string         `mapstructure:"knowledge-dir"`
	Index        *IndexConfig   `mapstructure:"index"`
	Coach        *CoachConfig   `mapstructure:"coach"`
	AI           *AIConfig      `mapstructure:"ai"`
	Persona      *PersonaConfig `mapstructure:"persona"`
}

type IndexConfig struct {
	Path    string        `mapstructure:"path"`
	Backend string        `mapstructure:"backend"`
	Qdrant  *QdrantConfig `mapstructure:"qdrant"`
}

type QdrantConfig struct {
	Host             string `mapstructure:"host"`
	Port             int    `mapstructure:"port"`
	CollectionPrefix string `mapstructure:"collection-prefix"`
}

type CoachConfig struct {
	ScoreThreshold float64       `mapstructure:"score-threshold"`
	TopK           int           `mapstructure:"top-k"`
	TurnTimeout    time.Duration `mapstructure:"turn-timeout"`
}

type AIConfig struct {
	Provider string        `mapstructure:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
	Ollama   *OllamaConfig `mapstructure:"ollama"`
	OpenAI   *OpenAIConfig `mapstructure:"openai"`
}

type GeminiConfig struct {
	APIKey         string `mapstructure:"api-key"`
	APIKeyFile     string `mapstructure:"api-key-file"`
	Model          string `mapstructure:"model"`
	EmbeddingModel string `mapstructure:"embedding-model"`
	MaxRetries     int    `mapstructure:"max-retries"`
	MaxLogLength   int    `mapstructure:"max-log-length"`
}

type OllamaConfig struct {
	Host       string `mapstructure:"host"`
	Model      string `mapstructure:"model"`
	MaxRetries int    `mapstructure:"max-retries"`
}

type OpenAIConfig struct {
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
}

type PersonaConfig struct {
	Name       string `mapstructure:"name"`
	Resume     string `mapstructure:"resume"`
	Psychotype string `mapstructure:"psychotype"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "interview-coach is a cli for practicing interviews against a simulated candidate with real-time coaching",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("ai.gemini.api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}
	if err := viper.BindEnv("ai.openai.api-key-file", "OPENAI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding OPENAI_API_KEY_FILE environment variable: %v", err)
	}
	if err := viper.BindEnv("ai.ollama.host", "OLLAMA_HOST"); err != nil {
		log.Fatalf("binding OLLAMA_HOST environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is interview-coach.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// Config is needed only for the run and index commands. If neither was
	// called, we can skip initialization.
	if runCmd.CalledAs() == "" && indexCmd.CalledAs() == "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
	}

	// We can't proceed if the config file parsed with error.
	if err := viper.ReadInConfig(); err != nil {
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}

// fatalf reports a failure that happens before the zap logger exists.
func fatalf(format string, args ...any) {
	log.Fatalf(format, args...)
}
