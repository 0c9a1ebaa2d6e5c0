package types

import (
	"fmt"
	"time"
)

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout bounds each HTTP attempt. A retry gets a fresh deadline.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "research-brief/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// SearchConfig holds settings for the search stage.
type SearchConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// MaxQueries caps the number of planner queries (default 6).
	MaxQueries int `json:"max_queries" yaml:"max_queries" mapstructure:"max_queries"`

	// WebResultsPerQuery caps web results per query (default 5).
	WebResultsPerQuery int `json:"web_results_per_query" yaml:"web_results_per_query" mapstructure:"web_results_per_query"`

	// PapersPerBackend caps results per academic backend per query (default 5).
	PapersPerBackend int `json:"papers_per_backend" yaml:"papers_per_backend" mapstructure:"papers_per_backend"`

	// TavilyAPIKey authenticates the web search backend.
	TavilyAPIKey string `json:"tavily_api_key,omitempty" yaml:"tavily_api_key,omitempty" mapstructure:"tavily_api_key"`

	// TavilyDepth is "basic" or "advanced".
	TavilyDepth string `json:"tavily_depth" yaml:"tavily_depth" mapstructure:"tavily_depth"`

	// SemanticScholarAPIKey is an optional API key for higher rate limits.
	SemanticScholarAPIKey string `json:"semantic_scholar_api_key,omitempty" yaml:"semantic_scholar_api_key,omitempty" mapstructure:"semantic_scholar_api_key"`

	// SemanticScholarRPS is the proactive request rate for Semantic Scholar.
	// The unauthenticated tier allows roughly one request per three seconds.
	SemanticScholarRPS float64 `json:"semantic_scholar_rps" yaml:"semantic_scholar_rps" mapstructure:"semantic_scholar_rps"`

	// OpenAlexEmail is sent as mailto for polite pool access.
	OpenAlexEmail string `json:"openalex_email,omitempty" yaml:"openalex_email,omitempty" mapstructure:"openalex_email"`

	// EnableOpenAlex and EnableSemanticScholar toggle the academic backends.
	EnableOpenAlex        bool `json:"enable_openalex" yaml:"enable_openalex" mapstructure:"enable_openalex"`
	EnableSemanticScholar bool `json:"enable_semantic_scholar" yaml:"enable_semantic_scholar" mapstructure:"enable_semantic_scholar"`
}

// FetchConfig holds settings for the content fetcher.
type FetchConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// MaxBytes is the response body ceiling (default 2 MiB).
	MaxBytes int64 `json:"max_bytes" yaml:"max_bytes" mapstructure:"max_bytes"`

	// MinTextChars is the shortest extraction accepted as readable (default 400).
	MinTextChars int `json:"min_text_chars" yaml:"min_text_chars" mapstructure:"min_text_chars"`

	// RespectRobots enables robots.txt checks before fetching.
	RespectRobots bool `json:"respect_robots" yaml:"respect_robots" mapstructure:"respect_robots"`
}

// AIConfig holds shared settings for stages that call a Generative AI API.
type AIConfig struct {
	// Model is the model used for planning and synthesis.
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// ExtractionModel is the (usually cheaper) model used for note
	// extraction and translation. Empty means Model.
	ExtractionModel string `json:"extraction_model,omitempty" yaml:"extraction_model,omitempty" mapstructure:"extraction_model"`

	// APIKey is the authentication key for the AI API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// MaxRetries is the number of attempts for failed API calls (default 5).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`

	// Timeout bounds a single model call (default 120s).
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
}

// BudgetConfig holds the token budget thresholds for note extraction.
type BudgetConfig struct {
	SoftCap int `json:"soft_cap" yaml:"soft_cap" mapstructure:"soft_cap"`
	HardCap int `json:"hard_cap" yaml:"hard_cap" mapstructure:"hard_cap"`

	// MaxSourceChars truncates each source's text before extraction (default 8000).
	MaxSourceChars int `json:"max_source_chars" yaml:"max_source_chars" mapstructure:"max_source_chars"`
}

// PipelineConfig groups all stage configurations for one run.
type PipelineConfig struct {
	Search SearchConfig `json:"search" yaml:"search" mapstructure:"search"`
	Fetch  FetchConfig  `json:"fetch" yaml:"fetch" mapstructure:"fetch"`
	AI     AIConfig     `json:"ai" yaml:"ai" mapstructure:"ai"`
	Budget BudgetConfig `json:"budget" yaml:"budget" mapstructure:"budget"`

	// Concurrency bounds simultaneous fetches, backend calls, and extractions (1-8).
	Concurrency int `json:"concurrency" yaml:"concurrency" mapstructure:"concurrency"`

	// MaxPapers caps the deduplicated paper list for reviews (default 10).
	MaxPapers int `json:"max_papers" yaml:"max_papers" mapstructure:"max_papers"`

	// Language is the output language for briefs and reviews (default "en").
	Language string `json:"language" yaml:"language" mapstructure:"language"`

	// PromptsFile optionally overrides the embedded prompt templates.
	PromptsFile string `json:"prompts_file,omitempty" yaml:"prompts_file,omitempty" mapstructure:"prompts_file"`
}

const defaultUserAgent = "research-brief/0.1"

// DefaultPipelineConfig returns the configuration used when nothing is set.
// The budget caps were tuned against the characters-per-token estimate.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Search: SearchConfig{
			HTTPConfig:            HTTPConfig{Timeout: 30 * time.Second, UserAgent: defaultUserAgent},
			MaxQueries:            6,
			WebResultsPerQuery:    5,
			PapersPerBackend:      5,
			TavilyDepth:           "advanced",
			SemanticScholarRPS:    0.33,
			EnableOpenAlex:        true,
			EnableSemanticScholar: true,
		},
		Fetch: FetchConfig{
			HTTPConfig:   HTTPConfig{Timeout: 20 * time.Second, UserAgent: defaultUserAgent},
			MaxBytes:     2 << 20,
			MinTextChars: 400,
		},
		AI: AIConfig{
			Model:      "claude-sonnet-4-5-20250929",
			MaxRetries: 5,
			Timeout:    120 * time.Second,
		},
		Budget: BudgetConfig{
			SoftCap:        11000,
			HardCap:        12000,
			MaxSourceChars: 8000,
		},
		Concurrency: 4,
		MaxPapers:   10,
		Language:    "en",
	}
}

// Validate checks the invariants the pipeline relies on.
func (c PipelineConfig) Validate() error {
	if c.Budget.SoftCap <= 0 || c.Budget.HardCap <= 0 {
		return fmt.Errorf("budget caps must be positive (soft %d, hard %d)", c.Budget.SoftCap, c.Budget.HardCap)
	}
	if c.Budget.SoftCap > c.Budget.HardCap {
		return fmt.Errorf("soft cap %d exceeds hard cap %d", c.Budget.SoftCap, c.Budget.HardCap)
	}
	if c.Concurrency < 1 || c.Concurrency > 8 {
		return fmt.Errorf("concurrency %d out of range [1,8]", c.Concurrency)
	}
	if c.Search.MaxQueries < 1 {
		return fmt.Errorf("max queries must be at least 1")
	}
	if c.MaxPapers < 1 {
		return fmt.Errorf("max papers must be at least 1")
	}
	return nil
}
