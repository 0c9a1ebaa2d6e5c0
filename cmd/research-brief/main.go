// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the research-brief CLI. Each
// pipeline entry point is a subcommand: plan, research, and review. The
// archive subcommand manages past runs stored locally.
package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pdiddy/research-brief/internal/llm"
	"github.com/pdiddy/research-brief/internal/pipeline"
	"github.com/pdiddy/research-brief/internal/prompts"
	"github.com/pdiddy/research-brief/internal/retry"
	"github.com/pdiddy/research-brief/internal/secrets"
	"github.com/pdiddy/research-brief/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedKeys holds API keys from .secrets/ and the environment.
var loadedKeys secrets.Keys

var rootCmd = &cobra.Command{
	Use:   "research-brief",
	Short: "Plan, search, and synthesize cited research briefs",
	Long: `research-brief turns a research topic into a cited brief. It plans search
queries with a model, searches the web (Tavily) and academic databases
(OpenAlex, Semantic Scholar), fetches and cleans pages, extracts notes
under a token budget, and writes a brief whose every citation resolves
to a retrieved source.

Use "review" for an academic literature review with themes and research
gaps, and "archive" to list or search past runs.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("secrets-dir")
		keys, err := secrets.LoadKeys(dir)
		if err != nil {
			return err
		}
		loadedKeys = keys
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./research-brief.yaml or ~/.config/research-brief/research-brief.yaml)")
	pf.String("secrets-dir", ".secrets/", "directory of API key files")
	pf.BoolP("verbose", "v", false, "log pipeline progress to stderr")
	pf.Int("concurrency", 4, "parallel fetches, backend calls, and extractions (1-8)")
	pf.String("language", "en", "output language for briefs and reviews (e.g. en, mn)")
	pf.String("model", "", "model for planning and synthesis")
	pf.String("prompts", "", "YAML file overriding the prompt templates")

	viper.BindPFlag("concurrency", pf.Lookup("concurrency"))
	viper.BindPFlag("language", pf.Lookup("language"))
	viper.BindPFlag("ai.model", pf.Lookup("model"))
	viper.BindPFlag("prompts_file", pf.Lookup("prompts"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("research-brief")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "research-brief"))
		}
	}

	viper.SetEnvPrefix("RESEARCH_BRIEF")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig starts from the defaults, applies the config file, env, and
// flags, then fills API keys from secrets.
func loadConfig() (types.PipelineConfig, error) {
	cfg := types.DefaultPipelineConfig()
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if cfg.AI.Model == "" {
		cfg.AI.Model = types.DefaultPipelineConfig().AI.Model
	}
	if cfg.AI.APIKey == "" {
		cfg.AI.APIKey = loadedKeys.Anthropic
	}
	if cfg.Search.TavilyAPIKey == "" {
		cfg.Search.TavilyAPIKey = loadedKeys.Tavily
	}
	if cfg.Search.SemanticScholarAPIKey == "" {
		cfg.Search.SemanticScholarAPIKey = loadedKeys.SemanticScholar
	}
	if cfg.Search.OpenAlexEmail == "" {
		cfg.Search.OpenAlexEmail = loadedKeys.OpenAlexEmail
	}
	return cfg, cfg.Validate()
}

// newLogger returns a console logger on stderr: warnings only by default,
// debug output with --verbose.
func newLogger(verbose bool) (*zap.Logger, error) {
	zc := zap.NewDevelopmentConfig()
	zc.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	zc.DisableStacktrace = true
	if verbose {
		zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return zc.Build()
}

// buildPipeline wires a pipeline from config, secrets, and flags.
func buildPipeline(cmd *cobra.Command) (*pipeline.Pipeline, *zap.Logger, error) {
	verbose, _ := cmd.Flags().GetBool("verbose")
	log, err := newLogger(verbose)
	if err != nil {
		return nil, nil, fmt.Errorf("creating logger: %w", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if cfg.AI.APIKey == "" {
		return nil, nil, fmt.Errorf("no Anthropic API key: set ANTHROPIC_API_KEY or write .secrets/%s", secrets.AnthropicKey)
	}
	if cfg.Search.TavilyAPIKey == "" {
		log.Warn("no Tavily API key configured, web search disabled")
	}

	ps, err := prompts.Load(cfg.PromptsFile)
	if err != nil {
		return nil, nil, err
	}

	client := &http.Client{}
	policy := retry.Standard()
	if cfg.AI.MaxRetries > 0 {
		policy.MaxAttempts = cfg.AI.MaxRetries
	}
	model := &llm.Claude{APIKey: cfg.AI.APIKey, Model: cfg.AI.Model, Client: client, Timeout: cfg.AI.Timeout, Policy: policy}
	var extractModel llm.Model = model
	if cfg.AI.ExtractionModel != "" && cfg.AI.ExtractionModel != cfg.AI.Model {
		extractModel = &llm.Claude{APIKey: cfg.AI.APIKey, Model: cfg.AI.ExtractionModel, Client: client, Timeout: cfg.AI.Timeout, Policy: policy}
	}

	p, err := pipeline.New(cfg, pipeline.Options{
		Model:           model,
		ExtractionModel: extractModel,
		Prompts:         ps,
		Client:          client,
		Logger:          log,
	})
	if err != nil {
		return nil, nil, err
	}
	return p, log, nil
}

// topicFromArgs joins the positional arguments into a topic and takes the
// language from --language.
func topicFromArgs(cmd *cobra.Command, args []string) (types.Topic, error) {
	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" {
		return types.Topic{}, fmt.Errorf("a research topic is required")
	}
	lang, _ := cmd.Flags().GetString("language")
	return types.Topic{Text: text, Language: lang}, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
