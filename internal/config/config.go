// Package config loads the BioAgent configuration: a YAML file (with
// $include support, see loader.go) supplying structured defaults, layered
// under environment variable overrides for the flat BIOAGENT_* knobs a
// deployment is most likely to flip per-run.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/bioagent-ai/bioagent/internal/memory"
)

// Config is BioAgent's top-level configuration.
type Config struct {
	Model        ModelConfig               `yaml:"model"`
	Limits       LimitsConfig              `yaml:"limits"`
	Workspace    WorkspaceConfig           `yaml:"workspace"`
	Features     FeaturesConfig            `yaml:"features"`
	Specialists  map[string]SpecialistTune `yaml:"specialists"`
	Literature   LiteratureConfig          `yaml:"literature"`
	Cron         CronConfig                `yaml:"cron"`
	VectorMemory memory.Config             `yaml:"vector_memory"`
	Logging      LoggingConfig             `yaml:"logging"`
	Results      ResultsConfig             `yaml:"results"`
}

// ModelConfig names the model id used for each role in the coordinator /
// specialist / QC split, plus the "complex" model swapped in for --complex
// one-shot runs.
type ModelConfig struct {
	Default     string `yaml:"default"`
	Complex     string `yaml:"complex"`
	Coordinator string `yaml:"coordinator"`
	Specialist  string `yaml:"specialist"`
	QC          string `yaml:"qc"`
}

// LimitsConfig bounds a single turn.
type LimitsConfig struct {
	MaxRounds   int     `yaml:"max_rounds"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

// WorkspaceConfig locates the on-disk workspace a session's ingested files,
// artifacts, and persisted sessions live under.
type WorkspaceConfig struct {
	Dir string `yaml:"dir"`
}

// FeaturesConfig toggles optional subsystems. FastMode, when true, forces
// MultiAgent/Summaries/RAG/KnowledgeGraph off and reduces MaxRounds, for
// deployments that trade depth for latency.
//
// Memory, RAG, Summaries, KnowledgeGraph, Artifacts, ParallelSpecialists, and
// AutoSave default to true, so they are *bool: nil means "unset, use the
// default" and distinguishes that from an explicit false set in the config
// file or environment, the same tri-state idiom used elsewhere for
// default-true switches.
type FeaturesConfig struct {
	Memory              *bool `yaml:"memory"`
	RAG                 *bool `yaml:"rag"`
	Summaries           *bool `yaml:"summaries"`
	KnowledgeGraph      *bool `yaml:"knowledge_graph"`
	Artifacts           *bool `yaml:"artifacts"`
	MultiAgent          bool  `yaml:"multi_agent"`
	ParallelSpecialists *bool `yaml:"parallel_specialists"`
	FastMode            bool  `yaml:"fast_mode"`
	MaxSpecialists      int   `yaml:"max_specialists"`
	SummaryAfterRounds  int   `yaml:"summary_after_rounds"`
	AutoSave            *bool `yaml:"auto_save"`
}

func boolPtr(v bool) *bool { return &v }

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

// MemoryEnabled, RAGEnabled, SummariesEnabled, KnowledgeGraphEnabled,
// ArtifactsEnabled, ParallelSpecialistsEnabled, and AutoSaveEnabled read a
// default-true feature flag, treating nil (unset) as enabled. Call these
// instead of dereferencing the *bool fields directly.
func (f FeaturesConfig) MemoryEnabled() bool              { return boolOr(f.Memory, true) }
func (f FeaturesConfig) RAGEnabled() bool                 { return boolOr(f.RAG, true) }
func (f FeaturesConfig) SummariesEnabled() bool           { return boolOr(f.Summaries, true) }
func (f FeaturesConfig) KnowledgeGraphEnabled() bool      { return boolOr(f.KnowledgeGraph, true) }
func (f FeaturesConfig) ArtifactsEnabled() bool           { return boolOr(f.Artifacts, true) }
func (f FeaturesConfig) ParallelSpecialistsEnabled() bool { return boolOr(f.ParallelSpecialists, true) }
func (f FeaturesConfig) AutoSaveEnabled() bool            { return boolOr(f.AutoSave, true) }

// SpecialistTune overrides a named specialist's tool allowlist from the
// router's built-in definition (internal/coordinator's pipeline/stats/
// literature/research/qc roster), without recompiling the binary.
type SpecialistTune struct {
	ToolAllowlist []string `yaml:"tool_allowlist"`
}

// LiteratureConfig carries per-source API credentials for
// internal/literature's orchestrator. Rate limits themselves are fixed
// per-client defaults (see internal/literature/*.go) rather than
// configurable here.
type LiteratureConfig struct {
	NCBIAPIKey string `yaml:"ncbi_api_key"`
	NCBIEmail  string `yaml:"ncbi_email"`
	S2APIKey   string `yaml:"s2_api_key"`
}

// LoggingConfig controls the structured logger's verbosity and encoding.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ResultsConfig controls where one-shot and session-save output lands.
type ResultsConfig struct {
	Dir string `yaml:"dir"`
}

// Load reads path (resolving $include directives, see loader.go), merges it
// with defaults and environment overrides, and validates the result. An
// empty or missing path is not an error - BIOAGENT_* environment variables
// and built-in defaults are enough to run the CLI without a config file.
func Load(path string) (*Config, error) {
	var cfg *Config

	if strings.TrimSpace(path) != "" {
		if _, err := os.Stat(path); err == nil {
			raw, err := LoadRaw(path)
			if err != nil {
				return nil, fmt.Errorf("load config: %w", err)
			}
			cfg, err = decodeRawConfig(raw)
			if err != nil {
				return nil, err
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("stat config file: %w", err)
		}
	}
	if cfg == nil {
		cfg = &Config{}
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Model.Default == "" {
		cfg.Model.Default = "claude-sonnet-4-20250514"
	}
	if cfg.Model.Complex == "" {
		cfg.Model.Complex = cfg.Model.Default
	}
	if cfg.Model.Coordinator == "" {
		cfg.Model.Coordinator = cfg.Model.Default
	}
	if cfg.Model.Specialist == "" {
		cfg.Model.Specialist = cfg.Model.Default
	}
	if cfg.Model.QC == "" {
		cfg.Model.QC = cfg.Model.Default
	}

	if cfg.Limits.MaxRounds == 0 {
		cfg.Limits.MaxRounds = 50
	}
	if cfg.Limits.MaxTokens == 0 {
		cfg.Limits.MaxTokens = 4096
	}

	if cfg.Workspace.Dir == "" {
		cfg.Workspace.Dir = "."
	}

	if cfg.Features.Memory == nil {
		cfg.Features.Memory = boolPtr(true)
	}
	if cfg.Features.RAG == nil {
		cfg.Features.RAG = boolPtr(true)
	}
	if cfg.Features.Summaries == nil {
		cfg.Features.Summaries = boolPtr(true)
	}
	if cfg.Features.KnowledgeGraph == nil {
		cfg.Features.KnowledgeGraph = boolPtr(true)
	}
	if cfg.Features.Artifacts == nil {
		cfg.Features.Artifacts = boolPtr(true)
	}
	if cfg.Features.ParallelSpecialists == nil {
		cfg.Features.ParallelSpecialists = boolPtr(true)
	}
	if cfg.Features.AutoSave == nil {
		cfg.Features.AutoSave = boolPtr(true)
	}
	if cfg.Features.MaxSpecialists == 0 {
		cfg.Features.MaxSpecialists = 3
	}
	if cfg.Features.SummaryAfterRounds == 0 {
		cfg.Features.SummaryAfterRounds = 5
	}

	if cfg.Features.FastMode {
		cfg.Features.MultiAgent = false
		cfg.Features.Summaries = boolPtr(false)
		cfg.Features.RAG = boolPtr(false)
		cfg.Features.KnowledgeGraph = boolPtr(false)
		if cfg.Limits.MaxRounds > 10 {
			cfg.Limits.MaxRounds = 10
		}
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Results.Dir == "" {
		cfg.Results.Dir = "results"
	}
}

func validateConfig(cfg *Config) error {
	var issues []string

	if cfg.Limits.MaxRounds <= 0 {
		issues = append(issues, "limits.max_rounds must be > 0")
	}
	if cfg.Limits.Temperature < 0 || cfg.Limits.Temperature > 2 {
		issues = append(issues, "limits.temperature must be between 0 and 2")
	}
	if cfg.Features.MaxSpecialists <= 0 {
		issues = append(issues, "features.max_specialists must be > 0")
	}
	if !validLogLevel(cfg.Logging.Level) {
		issues = append(issues, "logging.level must be one of debug, info, warn, error")
	}

	if len(issues) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(issues, "; "))
	}
	return nil
}

func validLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

// applyEnvOverrides layers the BIOAGENT_* environment variables over
// whatever the config file set.
func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("BIOAGENT_MODEL")); v != "" {
		cfg.Model.Default = v
	}
	if v := strings.TrimSpace(os.Getenv("BIOAGENT_MODEL_COMPLEX")); v != "" {
		cfg.Model.Complex = v
	}
	if v := strings.TrimSpace(os.Getenv("BIOAGENT_COORDINATOR_MODEL")); v != "" {
		cfg.Model.Coordinator = v
	}
	if v := strings.TrimSpace(os.Getenv("BIOAGENT_SPECIALIST_MODEL")); v != "" {
		cfg.Model.Specialist = v
	}
	if v := strings.TrimSpace(os.Getenv("BIOAGENT_QC_MODEL")); v != "" {
		cfg.Model.QC = v
	}
	if v := strings.TrimSpace(os.Getenv("BIOAGENT_WORKSPACE")); v != "" {
		cfg.Workspace.Dir = v
	}
	if v := envInt("BIOAGENT_MAX_ROUNDS"); v != nil {
		cfg.Limits.MaxRounds = *v
	}
	if v := envInt("BIOAGENT_MAX_TOKENS"); v != nil {
		cfg.Limits.MaxTokens = *v
	}
	if v := envFloat("BIOAGENT_TEMPERATURE"); v != nil {
		cfg.Limits.Temperature = *v
	}

	if v := envBool("BIOAGENT_ENABLE_MEMORY"); v != nil {
		cfg.Features.Memory = v
	}
	if v := envBool("BIOAGENT_ENABLE_RAG"); v != nil {
		cfg.Features.RAG = v
	}
	if v := envBool("BIOAGENT_ENABLE_SUMMARIES"); v != nil {
		cfg.Features.Summaries = v
	}
	if v := envBool("BIOAGENT_ENABLE_KG"); v != nil {
		cfg.Features.KnowledgeGraph = v
	}
	if v := envBool("BIOAGENT_ENABLE_ARTIFACTS"); v != nil {
		cfg.Features.Artifacts = v
	}
	if v := envBool("BIOAGENT_MULTI_AGENT"); v != nil {
		cfg.Features.MultiAgent = *v
	}
	if v := envBool("BIOAGENT_MULTI_AGENT_PARALLEL"); v != nil {
		cfg.Features.ParallelSpecialists = v
	}
	if v := envInt("BIOAGENT_MAX_SPECIALISTS"); v != nil {
		cfg.Features.MaxSpecialists = *v
	}
	if v := envBool("BIOAGENT_FAST_MODE"); v != nil {
		cfg.Features.FastMode = *v
	}
	if v := envInt("BIOAGENT_SUMMARY_ROUNDS"); v != nil {
		cfg.Features.SummaryAfterRounds = *v
	}
	if v := envBool("BIOAGENT_AUTO_SAVE"); v != nil {
		cfg.Features.AutoSave = v
	}
	if v := strings.TrimSpace(os.Getenv("BIOAGENT_RESULTS_DIR")); v != "" {
		cfg.Results.Dir = v
	}
}

func envInt(name string) *int {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return nil
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return nil
	}
	return &parsed
}

func envFloat(name string) *float64 {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return nil
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil
	}
	return &parsed
}

func envBool(name string) *bool {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return nil
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return nil
	}
	return &parsed
}

