package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	AI       AIConfig       `mapstructure:"ai"`
	Layout   LayoutConfig   `mapstructure:"layout"`
	Parsing  ParsingConfig  `mapstructure:"parsing"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Index    IndexConfig    `mapstructure:"index"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
}

type ServerConfig struct {
	Port      string `mapstructure:"port"`
	AuthToken string `mapstructure:"AUTH_TOKEN"`
}

type AIConfig struct {
	Provider string       `mapstructure:"provider"`
	Gemini   GeminiConfig `mapstructure:"gemini"`
	OpenAI   OpenAIConfig `mapstructure:"openai"`
}

type GeminiConfig struct {
	// Comma-separated in GEMINI_API_KEYS; requests rotate across keys.
	APIKeys string `mapstructure:"GEMINI_API_KEYS"`
	Model   string `mapstructure:"model"`
}

func (g GeminiConfig) Keys() []string {
	var keys []string
	for _, k := range strings.Split(g.APIKeys, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

type OpenAIConfig struct {
	APIKey  string `mapstructure:"OPENAI_API_KEY"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

type LayoutConfig struct {
	BaseURL    string  `mapstructure:"base_url"`
	Confidence float64 `mapstructure:"confidence"`
}

// ParsingConfig carries the delimiter tokens and identifier vocabulary the
// question-stream parser and normalizer work with. The tokens are data, not
// algorithm: prompts embed them so the producer and the parser stay in sync.
type ParsingConfig struct {
	QuestionDelimiter string              `mapstructure:"question_delimiter"`
	ChoiceDelimiter   string              `mapstructure:"choice_delimiter"`
	ChoiceSynonyms    map[string][]string `mapstructure:"choice_synonyms"`
}

type StorageConfig struct {
	DataDir       string `mapstructure:"data_dir"`
	InboxDir      string `mapstructure:"inbox_dir"`
	MongoURI      string `mapstructure:"MONGO_URI"`
	MongoDatabase string `mapstructure:"mongo_database"`
}

type IndexConfig struct {
	Host     string `mapstructure:"host"`
	APIKey   string `mapstructure:"WEAVIATE_APIKEY"`
	Text2Vec string `mapstructure:"text2vec"`
}

func (i IndexConfig) Enabled() bool {
	return i.Host != ""
}

type PipelineConfig struct {
	Sequential     bool `mapstructure:"sequential"`
	StepTimeoutSec int  `mapstructure:"step_timeout_sec"`
}

func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Bind environment variables
	v.BindEnv("GEMINI_API_KEYS")
	v.BindEnv("OPENAI_API_KEY")
	v.BindEnv("WEAVIATE_APIKEY")
	v.BindEnv("MONGO_URI")
	v.BindEnv("AUTH_TOKEN")

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("ai.provider", "gemini")
	v.SetDefault("ai.gemini.model", "gemini-2.0-flash")
	v.SetDefault("ai.openai.model", "gpt-4o")
	v.SetDefault("layout.confidence", 0.35)
	v.SetDefault("parsing.question_delimiter", "[####]")
	v.SetDefault("parsing.choice_delimiter", "[%OR%]")
	v.SetDefault("storage.data_dir", "logs")
	v.SetDefault("storage.inbox_dir", "uploads")
	v.SetDefault("storage.mongo_database", "pariksha")
	v.SetDefault("index.text2vec", "text2vec-transformers")
	v.SetDefault("pipeline.step_timeout_sec", 300)
}
