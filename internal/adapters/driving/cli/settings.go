package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/sercha-filings/internal/core/domain"
	"github.com/custodia-labs/sercha-filings/internal/core/services"
)

var errAPIKeyRequired = errors.New("API key is required for this provider")

var settingsOnly = map[string]string{annotationSettingsOnly: "true"}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change settings",
	Long: `Shows the effective settings: defaults, then the config file, then
environment variables. Subcommands change single keys, pick AI providers or
walk through first-time setup.`,
	Annotations: settingsOnly,
	RunE:        runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:         "show",
	Short:       "Print the effective settings",
	Annotations: settingsOnly,
	RunE:        runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Store one setting",
	Long: "Stores one setting in the config file. Durations use Go syntax such as 500ms or 24h.\n\nKeys:\n  " +
		strings.Join(services.SettableKeys(), "\n  "),
	Args:        cobra.ExactArgs(2),
	Annotations: settingsOnly,
	RunE:        runSettingsSet,
}

var settingsWizardCmd = &cobra.Command{
	Use:         "wizard",
	Short:       "Interactive first-time setup",
	Long:        `Asks for the SEC User-Agent, then the embedding and LLM providers, checking each provider as it goes.`,
	Annotations: settingsOnly,
	RunE:        runSettingsWizard,
}

var settingsEmbeddingCmd = &cobra.Command{
	Use:         "embedding",
	Short:       "Choose the embedding provider",
	Long:        `Chooses the provider that turns filing chunks and questions into vectors. Changing it requires reprocessing.`,
	Annotations: settingsOnly,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if settingsService == nil {
			return errSettingsUnavailable
		}
		return newPrompter(cmd).configure(embeddingStep())
	},
}

var settingsLLMCmd = &cobra.Command{
	Use:         "llm",
	Short:       "Choose the LLM provider",
	Long:        `Chooses the provider that writes answers from the retrieved filing excerpts.`,
	Annotations: settingsOnly,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if settingsService == nil {
			return errSettingsUnavailable
		}
		return newPrompter(cmd).configure(llmStep())
	},
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd, settingsSetCmd, settingsWizardCmd, settingsEmbeddingCmd, settingsLLMCmd)
	rootCmd.AddCommand(settingsCmd)
}

type field struct {
	label, value string
}

// fieldIf returns f when ok and a blank field, which printSection skips, otherwise.
func fieldIf(ok bool, f field) field {
	if !ok {
		return field{}
	}
	return f
}

func printSection(cmd *cobra.Command, title string, fields ...field) {
	cmd.Printf("[%s]\n", title)
	for _, f := range fields {
		if f.label != "" {
			cmd.Printf("  %s: %s\n", f.label, f.value)
		}
	}
	cmd.Println()
}

func orNotSet(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errSettingsUnavailable
	}
	s, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("reading settings: %w", err)
	}

	printSection(cmd, "EDGAR",
		field{"User-Agent", orNotSet(s.EDGAR.UserAgent)},
		field{"Rate", fmt.Sprintf("%.1f requests/s", s.EDGAR.RequestsPerSecond)},
		field{"Retries", fmt.Sprintf("%d (base delay %s)", s.EDGAR.MaxRetries, s.EDGAR.RetryDelay)},
		field{"Timeout", s.EDGAR.Timeout.String()},
	)
	printSection(cmd, "Ingestion",
		field{"Workers", strconv.Itoa(s.Ingest.Workers)},
		field{"Embed batch size", strconv.Itoa(s.Ingest.EmbedBatchSize)},
		field{"Job retention", s.Ingest.JobRetention.String()},
		field{"Chunk size", fmt.Sprintf("%d target, %d max, %d overlap sentences",
			s.Chunker.TargetSize, s.Chunker.MaxSize, s.Chunker.OverlapSentences)},
	)
	printSection(cmd, "Embedding", append(providerFields(s.Embedding.Provider, s.Embedding.Model,
		s.Embedding.BaseURL, s.Embedding.APIKey, s.Embedding.IsConfigured()),
		field{"Dimensions", strconv.Itoa(s.Embedding.Dimensions)})...)
	printSection(cmd, "LLM", providerFields(s.LLM.Provider, s.LLM.Model,
		s.LLM.BaseURL, s.LLM.APIKey, s.LLM.IsConfigured())...)
	printSection(cmd, "Retrieval",
		field{"Top K", strconv.Itoa(s.Retrieval.TopK)},
		field{"Threshold", fmt.Sprintf("%.2f", s.Retrieval.Threshold)},
		field{"Related questions", strconv.Itoa(s.Retrieval.RelatedQuestions)},
		field{"Excerpt length", strconv.Itoa(s.Retrieval.ExcerptLength)},
	)
	printSection(cmd, "Status",
		field{"Backend", string(s.Status.Backend)},
		fieldIf(s.Status.Backend == domain.StatusBackendRedis, field{"Redis URL", s.Status.RedisURL}),
		field{"Server address", s.Server.Addr},
	)

	if err := settingsService.Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
		cmd.Println("Run 'sercha-filings settings wizard' to fix it.")
		return nil
	}
	cmd.Println("Configuration is valid.")
	return nil
}

func providerFields(p domain.AIProvider, model, baseURL, apiKey string, configured bool) []field {
	status := "not configured"
	if configured {
		status = "configured"
	}
	key := "(not set)"
	if apiKey != "" {
		key = maskAPIKey(apiKey)
	}
	return []field{
		{"Provider", p.Description()},
		{"Model", model},
		fieldIf(p == domain.AIProviderOllama, field{"Base URL", baseURL}),
		fieldIf(p.RequiresAPIKey(), field{"API Key", key}),
		{"Status", status},
	}
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errSettingsUnavailable
	}
	key, value := args[0], args[1]
	if err := settingsService.Set(key, value); err != nil {
		return fmt.Errorf("setting %s: %w", key, err)
	}
	if strings.HasSuffix(key, "api_key") {
		value = maskAPIKey(value)
	}
	cmd.Printf("Set %s = %s\n", key, value)
	return nil
}

func runSettingsWizard(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errSettingsUnavailable
	}
	current, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("reading settings: %w", err)
	}
	p := newPrompter(cmd)

	cmd.Println("1. SEC identity")
	cmd.Println(`   EDGAR asks for a name and email, e.g. "Jane Doe jane@example.com".`)
	if ua := p.ask("User-Agent", current.EDGAR.UserAgent); ua != current.EDGAR.UserAgent {
		if err := settingsService.Set("edgar.user_agent", ua); err != nil {
			return fmt.Errorf("setting user agent: %w", err)
		}
	}
	cmd.Println()

	cmd.Println("2. Embeddings")
	if err := p.configure(embeddingStep()); err != nil {
		return err
	}
	cmd.Println("3. Answers")
	cmd.Println("   Queries fail until an LLM is configured.")
	if err := p.configure(llmStep()); err != nil {
		return err
	}

	if err := settingsService.Validate(); err != nil {
		cmd.Printf("Saved, with a warning: %v\n", err)
		return nil
	}
	cmd.Println("Saved. Try: sercha-filings process AAPL")
	return nil
}

// providerStep is one provider choice in the wizard.
type providerStep struct {
	kind      string
	providers []domain.AIProvider
	models    map[domain.AIProvider]string
	apply     func(p domain.AIProvider, model, apiKey string) error
	check     func() error
}

func embeddingStep() providerStep {
	return providerStep{
		kind:      "embedding",
		providers: domain.AllEmbeddingProviders(),
		models:    domain.DefaultEmbeddingModels(),
		apply:     settingsService.SetEmbeddingProvider,
		check:     settingsService.ValidateEmbeddingConfig,
	}
}

func llmStep() providerStep {
	return providerStep{
		kind:      "LLM",
		providers: domain.AllLLMProviders(),
		models:    domain.DefaultLLMModels(),
		apply:     settingsService.SetLLMProvider,
		check:     settingsService.ValidateLLMConfig,
	}
}

// prompter reads wizard answers from the command's input. API keys are read
// without echo when the input is a terminal.
type prompter struct {
	cmd *cobra.Command
	in  *bufio.Reader
	fd  int
}

func newPrompter(cmd *cobra.Command) *prompter {
	p := &prompter{cmd: cmd, in: bufio.NewReader(cmd.InOrStdin()), fd: -1}
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.fd = int(f.Fd())
	}
	return p
}

// ask prints label with its default and returns the answer, or def when
// the answer is blank.
func (p *prompter) ask(label, def string) string {
	if def != "" {
		p.cmd.Printf("%s [%s]: ", label, def)
	} else {
		p.cmd.Printf("%s: ", label)
	}
	line, _ := p.in.ReadString('\n') //nolint:errcheck // EOF reads as blank
	if line = strings.TrimSpace(line); line != "" {
		return line
	}
	return def
}

func (p *prompter) secret(label string) string {
	if p.fd < 0 {
		return p.ask(label, "")
	}
	p.cmd.Printf("%s: ", label)
	b, err := term.ReadPassword(p.fd)
	p.cmd.Println()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

func (p *prompter) configure(step providerStep) error {
	p.cmd.Printf("Select %s provider\n", step.kind)
	for i, prov := range step.providers {
		p.cmd.Printf("  %d. %s\n", i+1, prov.Description())
	}
	provider := step.providers[parseChoice(p.ask("Choice", "1"), len(step.providers), 1)-1]
	model := p.ask("Model", step.models[provider])

	var apiKey string
	if provider.RequiresAPIKey() {
		if apiKey = p.secret("API key"); apiKey == "" {
			return errAPIKeyRequired
		}
	}

	if err := step.apply(provider, model, apiKey); err != nil {
		return fmt.Errorf("saving %s provider: %w", step.kind, err)
	}
	p.cmd.Print("Checking provider... ")
	if err := step.check(); err != nil {
		p.cmd.Println("failed")
		return fmt.Errorf("%s provider check: %w", step.kind, err)
	}
	p.cmd.Println("ok")
	p.cmd.Printf("%s provider: %s (%s)\n\n", step.kind, provider.Description(), model)
	return nil
}

func parseChoice(input string, maxVal, defaultVal int) int {
	n, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil || n < 1 || n > maxVal {
		return defaultVal
	}
	return n
}

// maskAPIKey keeps the first and last four characters of keys longer than eight.
func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
