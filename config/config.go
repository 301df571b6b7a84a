package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderGemini = "gemini"

	BackendChroma   = "chroma"
	BackendPgvector = "pgvector"
	BackendMemory   = "memory"

	HistoryRedis  = "redis"
	HistoryMemory = "memory"

	PDFEngineLedongthuc = "ledongthuc"
	PDFEngineUnipdf     = "unipdf"
)

// ErrMissing is wrapped by Validate for every required setting that is absent.
var ErrMissing = errors.New("missing required setting")

// Config is the full application configuration. Environment variables (a .env
// file included) override the optional config file, which overrides defaults.
type Config struct {
	Server         ServerConfig     `mapstructure:"server"`
	Index          IndexConfig      `mapstructure:"index"`
	Chroma         ChromaConfig     `mapstructure:"chroma"`
	Postgres       PostgresConfig   `mapstructure:"postgres"`
	Staging        StagingConfig    `mapstructure:"staging"`
	Inbox          InboxConfig      `mapstructure:"inbox"`
	LLM            LLMConfig        `mapstructure:"llm"`
	Embeddings     EmbeddingsConfig `mapstructure:"embeddings"`
	OpenAI         OpenAIConfig     `mapstructure:"openai"`
	Ollama         OllamaConfig     `mapstructure:"ollama"`
	Gemini         GeminiConfig     `mapstructure:"gemini"`
	Redis          RedisConfig      `mapstructure:"redis"`
	History        HistoryConfig    `mapstructure:"history"`
	Retrieval      RetrievalConfig  `mapstructure:"retrieval"`
	Splitter       SplitterConfig   `mapstructure:"splitter"`
	PDF            PDFConfig        `mapstructure:"pdf"`
	Upload         UploadConfig     `mapstructure:"upload"`
	RequestTimeout time.Duration    `mapstructure:"request_timeout"`
}

type ServerConfig struct {
	Address      string        `mapstructure:"address"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// IndexConfig selects the vector index. Name is the collection (chroma) or
// table prefix (pgvector).
type IndexConfig struct {
	Name            string `mapstructure:"name"`
	Backend         string `mapstructure:"backend"`
	ResetOnShutdown bool   `mapstructure:"reset_on_shutdown"`
}

type ChromaConfig struct {
	URL string `mapstructure:"url"`
}

type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
}

type StagingConfig struct {
	Folder string `mapstructure:"folder"`
}

// InboxConfig enables the directory watcher when Folder is set.
type InboxConfig struct {
	Folder string `mapstructure:"folder"`
}

type LLMConfig struct {
	Provider    string  `mapstructure:"provider"`
	Model       string  `mapstructure:"model"`
	Temperature float64 `mapstructure:"temperature"`
}

type EmbeddingsConfig struct {
	Provider  string `mapstructure:"provider"`
	Model     string `mapstructure:"model"`
	Dimension int    `mapstructure:"dimension"`
}

type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

type OllamaConfig struct {
	Host string `mapstructure:"host"`
}

type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type HistoryConfig struct {
	Backend string        `mapstructure:"backend"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// RetrievalConfig tunes maximal marginal relevance search.
type RetrievalConfig struct {
	K      int     `mapstructure:"k"`
	FetchK int     `mapstructure:"fetch_k"`
	Lambda float64 `mapstructure:"lambda"`
}

type SplitterConfig struct {
	ChunkSize    int `mapstructure:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap"`
}

type PDFConfig struct {
	Engine           string `mapstructure:"engine"`
	UnidocLicenseKey string `mapstructure:"unidoc_license_key"`
}

type UploadConfig struct {
	MaxBytes int64 `mapstructure:"max_bytes"`
}

// envBindings maps config keys to the environment variables that can set them.
// The first variable that is set wins.
var envBindings = map[string][]string{
	"server.address":          {"SERVER_ADDRESS"},
	"server.read_timeout":     {"SERVER_READ_TIMEOUT"},
	"server.write_timeout":    {"SERVER_WRITE_TIMEOUT"},
	"index.name":              {"INDEX_NAME", "PINECODE_INDEX"},
	"index.backend":           {"VECTOR_BACKEND"},
	"index.reset_on_shutdown": {"INDEX_RESET_ON_SHUTDOWN"},
	"chroma.url":              {"CHROMA_URL"},
	"postgres.dsn":            {"POSTGRES_DSN"},
	"staging.folder":          {"FILE_FOLDER"},
	"inbox.folder":            {"INBOX_FOLDER"},
	"llm.provider":            {"LLM_PROVIDER"},
	"llm.model":               {"LLM_MODEL"},
	"llm.temperature":         {"LLM_TEMPERATURE"},
	"embeddings.provider":     {"EMBEDDINGS_PROVIDER"},
	"embeddings.model":        {"EMBEDDINGS_MODEL"},
	"embeddings.dimension":    {"EMBEDDINGS_DIMENSION"},
	"openai.api_key":          {"OPENAI_API_KEY"},
	"openai.base_url":         {"OPENAI_BASE_URL"},
	"ollama.host":             {"OLLAMA_HOST"},
	"gemini.api_key":          {"GEMINI_API_KEY"},
	"redis.url":               {"REDIS_URL"},
	"history.backend":         {"HISTORY_BACKEND"},
	"history.ttl":             {"HISTORY_TTL"},
	"retrieval.k":             {"RETRIEVAL_K"},
	"retrieval.fetch_k":       {"RETRIEVAL_FETCH_K"},
	"retrieval.lambda":        {"RETRIEVAL_LAMBDA"},
	"splitter.chunk_size":     {"CHUNK_SIZE"},
	"splitter.chunk_overlap":  {"CHUNK_OVERLAP"},
	"pdf.engine":              {"PDF_ENGINE"},
	"pdf.unidoc_license_key":  {"UNIDOC_LICENSE_KEY"},
	"upload.max_bytes":        {"UPLOAD_MAX_BYTES"},
	"request_timeout":         {"REQUEST_TIMEOUT"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":5000")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 5*time.Minute)
	v.SetDefault("index.backend", BackendChroma)
	v.SetDefault("index.reset_on_shutdown", false)
	v.SetDefault("chroma.url", "http://localhost:8000")
	v.SetDefault("llm.provider", ProviderOpenAI)
	v.SetDefault("llm.model", "gpt-3.5-turbo-0125")
	v.SetDefault("llm.temperature", 0.5)
	v.SetDefault("embeddings.provider", ProviderOpenAI)
	v.SetDefault("embeddings.model", "text-embedding-ada-002")
	v.SetDefault("embeddings.dimension", 1536)
	v.SetDefault("ollama.host", "http://localhost:11434")
	v.SetDefault("redis.url", "redis://localhost:55000")
	v.SetDefault("history.backend", HistoryRedis)
	v.SetDefault("history.ttl", time.Duration(0))
	v.SetDefault("retrieval.k", 4)
	v.SetDefault("retrieval.fetch_k", 20)
	v.SetDefault("retrieval.lambda", 0.5)
	v.SetDefault("splitter.chunk_size", 500)
	v.SetDefault("splitter.chunk_overlap", 0)
	v.SetDefault("pdf.engine", PDFEngineLedongthuc)
	v.SetDefault("upload.max_bytes", int64(50*1024*1024))
	v.SetDefault("request_timeout", 2*time.Minute)
}

// Load reads configuration. A .env file in the working directory is loaded
// first if present; path is an optional YAML/TOML/JSON config file.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables.")
	}

	v := viper.New()
	setDefaults(v)
	for key, envs := range envBindings {
		args := append([]string{key}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return nil, fmt.Errorf("bind env for %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize()
	return &cfg, nil
}

func (c *Config) normalize() {
	c.Index.Backend = strings.ToLower(strings.TrimSpace(c.Index.Backend))
	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	c.Embeddings.Provider = strings.ToLower(strings.TrimSpace(c.Embeddings.Provider))
	c.History.Backend = strings.ToLower(strings.TrimSpace(c.History.Backend))
	c.PDF.Engine = strings.ToLower(strings.TrimSpace(c.PDF.Engine))
}

// Validate only checks that required settings are present and that the
// provider and backend names are known.
func (c *Config) Validate() error {
	var errs []error
	missing := func(key string) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrMissing, key))
	}

	if c.Index.Name == "" {
		missing("index.name (INDEX_NAME)")
	}
	if c.Staging.Folder == "" {
		missing("staging.folder (FILE_FOLDER)")
	}

	switch c.Index.Backend {
	case BackendChroma:
		if c.Chroma.URL == "" {
			missing("chroma.url (CHROMA_URL)")
		}
	case BackendPgvector:
		if c.Postgres.DSN == "" {
			missing("postgres.dsn (POSTGRES_DSN)")
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown vector backend: %q", c.Index.Backend))
	}

	switch c.History.Backend {
	case HistoryRedis:
		if c.Redis.URL == "" {
			missing("redis.url (REDIS_URL)")
		}
	case HistoryMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown history backend: %q", c.History.Backend))
	}

	for _, p := range []struct{ name, provider string }{
		{"llm", c.LLM.Provider},
		{"embeddings", c.Embeddings.Provider},
	} {
		switch p.provider {
		case ProviderOpenAI:
			if c.OpenAI.APIKey == "" {
				missing(p.name + ": openai.api_key (OPENAI_API_KEY)")
			}
		case ProviderGemini:
			if c.Gemini.APIKey == "" {
				missing(p.name + ": gemini.api_key (GEMINI_API_KEY)")
			}
		case ProviderOllama:
		default:
			errs = append(errs, fmt.Errorf("unknown %s provider: %q", p.name, p.provider))
		}
	}

	switch c.PDF.Engine {
	case PDFEngineLedongthuc:
	case PDFEngineUnipdf:
		if c.PDF.UnidocLicenseKey == "" {
			missing("pdf.unidoc_license_key (UNIDOC_LICENSE_KEY)")
		}
	default:
		errs = append(errs, fmt.Errorf("unknown pdf engine: %q", c.PDF.Engine))
	}

	return errors.Join(errs...)
}
