package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/rohankatakam/teamgraph/internal/errors"
)

// ValidationContext specifies what configuration is required
type ValidationContext string

const (
	// ValidationContextIngest - ingest requires Neo4j
	ValidationContextIngest ValidationContext = "ingest"
	// ValidationContextQuery - query requires Neo4j and a generation key
	ValidationContextQuery ValidationContext = "query"
	// ValidationContextFetchGitHub - a token is optional for public repos
	ValidationContextFetchGitHub ValidationContext = "fetch-github"
	// ValidationContextFetchSlack - requires a Slack token
	ValidationContextFetchSlack ValidationContext = "fetch-slack"
	// ValidationContextAll - validate all configuration
	ValidationContextAll ValidationContext = "all"
)

// ValidationResult holds validation results
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// AddError adds an error to the validation result
func (vr *ValidationResult) AddError(format string, args ...any) {
	vr.Valid = false
	vr.Errors = append(vr.Errors, fmt.Sprintf(format, args...))
}

// AddWarning adds a warning to the validation result
func (vr *ValidationResult) AddWarning(format string, args ...any) {
	vr.Warnings = append(vr.Warnings, fmt.Sprintf(format, args...))
}

// HasErrors returns true if there are any errors
func (vr *ValidationResult) HasErrors() bool {
	return !vr.Valid || len(vr.Errors) > 0
}

// Error returns a formatted error message
func (vr *ValidationResult) Error() string {
	if !vr.HasErrors() {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Configuration validation failed:\n")
	for _, err := range vr.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err))
	}
	if len(vr.Warnings) > 0 {
		sb.WriteString("\nWarnings:\n")
		for _, warn := range vr.Warnings {
			sb.WriteString(fmt.Sprintf("  - %s\n", warn))
		}
	}
	return sb.String()
}

// Err returns a config error when validation failed, nil otherwise
func (vr *ValidationResult) Err() error {
	if !vr.HasErrors() {
		return nil
	}
	return errors.ConfigError(vr.Error())
}

// Validate validates configuration for the given context
func (c *Config) Validate(ctx ValidationContext) *ValidationResult {
	result := &ValidationResult{Valid: true}

	switch ctx {
	case ValidationContextIngest:
		c.validateNeo4j(result)
		c.validateStaging(result)
		c.validateEmbedding(result)
	case ValidationContextQuery:
		c.validateNeo4j(result)
		c.validateEmbedding(result)
		c.validateLLM(result, true)
	case ValidationContextFetchGitHub:
		if c.GitHub.Token == "" {
			result.AddWarning("GITHUB_TOKEN is not set; only public repositories at 60 requests/hour")
		}
		if c.GitHub.RateLimit <= 0 {
			result.AddError("github.rate_limit must be positive, got %v", c.GitHub.RateLimit)
		}
	case ValidationContextFetchSlack:
		if c.Slack.Token == "" {
			result.AddError("SLACK_TOKEN is required but not set")
		}
	case ValidationContextAll:
		c.validateNeo4j(result)
		c.validateStaging(result)
		c.validateEmbedding(result)
		c.validateLLM(result, false)
		if c.Slack.Token == "" {
			result.AddWarning("SLACK_TOKEN is not set")
		}
	}

	return result
}

func (c *Config) validateNeo4j(result *ValidationResult) {
	if c.Neo4j.URI == "" {
		result.AddError("NEO4J_URI is required but not set")
	} else if u, err := url.Parse(c.Neo4j.URI); err != nil {
		result.AddError("NEO4J_URI is invalid: %v", err)
	} else {
		switch u.Scheme {
		case "bolt", "bolt+s", "bolt+ssc", "neo4j", "neo4j+s", "neo4j+ssc":
		default:
			result.AddError("NEO4J_URI has unsupported scheme %q", u.Scheme)
		}
	}

	if c.Neo4j.User == "" {
		result.AddError("NEO4J_USER is required but not set")
	}
	if c.Neo4j.Password == "" {
		result.AddError("NEO4J_PASSWORD is required but not set. Set it via environment variable or .env file.")
	} else if c.Neo4j.Password == "password" || c.Neo4j.Password == "neo4j" {
		result.AddWarning("NEO4J_PASSWORD is set to a very common password (%s)", c.Neo4j.Password)
	}
}

func (c *Config) validateStaging(result *ValidationResult) {
	switch c.Staging.Driver {
	case "", "sqlite3", "sqlite", "postgres", "pgx":
	default:
		result.AddError("staging.driver %q is not supported (sqlite3, postgres, pgx)", c.Staging.Driver)
	}
}

func (c *Config) validateEmbedding(result *ValidationResult) {
	switch c.Embedding.Provider {
	case "", "local":
	case "openai":
		if c.LLM.OpenAIKey == "" {
			result.AddError("OPENAI_API_KEY is required for openai embeddings")
		}
	case "gemini":
		if c.LLM.GeminiKey == "" {
			result.AddError("GEMINI_API_KEY is required for gemini embeddings")
		}
	default:
		result.AddError("embedding.provider %q is not supported (local, openai, gemini)", c.Embedding.Provider)
	}
	if c.Embedding.Dimensions < 0 {
		result.AddError("embedding.dimensions must not be negative")
	}
}

func (c *Config) validateLLM(result *ValidationResult, required bool) {
	if c.LLM.OpenAIKey == "" && c.LLM.GeminiKey == "" {
		if required {
			result.AddError("an OPENAI_API_KEY or GEMINI_API_KEY is required to generate answers")
		} else {
			result.AddWarning("no generation key set; query will return retrieved context only")
		}
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		result.AddError("llm.temperature must be in [0, 2], got %v", c.LLM.Temperature)
	}
	if c.LLM.TopK < 0 {
		result.AddError("llm.top_k must not be negative")
	}
}
