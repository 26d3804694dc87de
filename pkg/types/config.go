package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "acmgentic/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// AnnotationConfig holds settings for the Ensembl VEP annotation stage.
type AnnotationConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// Enabled turns annotation off when false; the run continues unenriched.
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
}

// LiteratureConfig holds settings for LitVar2 lookup and PubMed retrieval.
type LiteratureConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// LitVarInterval is the minimum spacing between LitVar2 calls (default 500ms).
	LitVarInterval time.Duration `json:"litvar_interval" yaml:"litvar_interval" mapstructure:"litvar_interval"`

	// PubMedInterval is the minimum spacing between Entrez calls (default 100ms).
	PubMedInterval time.Duration `json:"pubmed_interval" yaml:"pubmed_interval" mapstructure:"pubmed_interval"`

	// NCBIAPIKey is an optional Entrez API key for higher rate limits.
	NCBIAPIKey string `json:"ncbi_api_key,omitempty" yaml:"ncbi_api_key,omitempty" mapstructure:"ncbi_api_key"`

	// NCBIEmail identifies the caller to Entrez as NCBI requests.
	NCBIEmail string `json:"ncbi_email" yaml:"ncbi_email" mapstructure:"ncbi_email"`

	// MaxTextChars truncates fetched paper text before extraction (default 25000).
	MaxTextChars int `json:"max_text_chars" yaml:"max_text_chars" mapstructure:"max_text_chars"`
}

// AcquisitionConfig holds settings for downloading open-access PDFs of
// functional papers into PipelineConfig.PDFDir.
type AcquisitionConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// Enabled turns PDF downloads on. Existing files are attached either way.
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`

	// Mailto is sent to OpenAlex to join its polite pool.
	Mailto string `json:"mailto,omitempty" yaml:"mailto,omitempty" mapstructure:"mailto"`
}

// ConversionConfig holds settings for converting attached PDFs to text.
// Converted text is preferred over the PubMed record for extraction.
type ConversionConfig struct {
	// Enabled turns PDF conversion on. It requires docker or podman.
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`

	// Image is the markitdown container image (default "markitdown:latest").
	Image string `json:"image" yaml:"image" mapstructure:"image"`
}

// LLMProvider identifies the text-understanding backend.
type LLMProvider string

const (
	ProviderAnthropic LLMProvider = "anthropic"
	ProviderOpenAI    LLMProvider = "openai"
	ProviderGemini    LLMProvider = "gemini"
)

// AIConfig holds shared settings for stages that call a Generative AI API.
type AIConfig struct {
	// Provider selects the backend: anthropic, openai, or gemini.
	Provider LLMProvider `json:"provider" yaml:"provider" mapstructure:"provider"`

	// Model is the AI model identifier (e.g. "gpt-4o-mini").
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// APIKey is the authentication key for the AI API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// Temperature is the sampling temperature (default 0).
	Temperature float64 `json:"temperature" yaml:"temperature" mapstructure:"temperature"`

	// MaxRetries is the number of retry attempts for failed API calls (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`

	// Timeout bounds a single API call including retries.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
}

// AssessmentConfig holds the tunables of the quality filter.
type AssessmentConfig struct {
	// MinControlsLength is the character count a controls/validity
	// description must exceed for an experiment to be high-confidence (default 40).
	MinControlsLength int `json:"min_controls_length" yaml:"min_controls_length" mapstructure:"min_controls_length"`
}

// OutputFormat selects how a Result is rendered.
type OutputFormat string

const (
	OutputHTML OutputFormat = "html"
	OutputJSON OutputFormat = "json"
	OutputYAML OutputFormat = "yaml"
	OutputText OutputFormat = "text"
)

// ReportConfig holds settings for report rendering.
type ReportConfig struct {
	Format    OutputFormat `json:"format" yaml:"format" mapstructure:"format"`
	OutputDir string       `json:"output_dir" yaml:"output_dir" mapstructure:"output_dir"`
}

// StoreConfig holds settings for the run archive.
type StoreConfig struct {
	// Dir is the directory containing the SQLite database.
	Dir string `json:"dir" yaml:"dir" mapstructure:"dir"`

	// Enabled turns archiving of completed runs on or off.
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
}

// PipelineConfig groups all stage configurations for a run. It is passed to
// the orchestrator at construction; nothing is read from global state.
type PipelineConfig struct {
	Annotation  AnnotationConfig  `json:"annotation" yaml:"annotation" mapstructure:"annotation"`
	Literature  LiteratureConfig  `json:"literature" yaml:"literature" mapstructure:"literature"`
	Acquisition AcquisitionConfig `json:"acquisition" yaml:"acquisition" mapstructure:"acquisition"`
	Conversion  ConversionConfig  `json:"conversion" yaml:"conversion" mapstructure:"conversion"`
	AI          AIConfig          `json:"ai" yaml:"ai" mapstructure:"ai"`
	Assessment  AssessmentConfig  `json:"assessment" yaml:"assessment" mapstructure:"assessment"`
	Report      ReportConfig      `json:"report" yaml:"report" mapstructure:"report"`
	Store       StoreConfig       `json:"store" yaml:"store" mapstructure:"store"`

	// Concurrency bounds in-flight per-item calls within a stage (default 4).
	Concurrency int `json:"concurrency" yaml:"concurrency" mapstructure:"concurrency"`

	// PDFDir holds previously downloaded papers named {pmid}.pdf. Functional
	// papers found there carry their path in the result.
	PDFDir string `json:"pdf_dir,omitempty" yaml:"pdf_dir,omitempty" mapstructure:"pdf_dir"`

	// ItemTimeout bounds each per-item collaborator call (default 2m).
	ItemTimeout time.Duration `json:"item_timeout" yaml:"item_timeout" mapstructure:"item_timeout"`
}
