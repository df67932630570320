package driven

// PromptStore provides access to LLM prompt templates.
// Implementations may load prompts from files or embed them in the binary.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	// If the prompt is not found, implementations return the built-in default
	// or an error when no default exists.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	Reload()
}

// Well-known prompt names.
const (
	// PromptAnswerSystem is the system instruction for grounded answers.
	// This prompt has no format placeholders.
	PromptAnswerSystem = "answer_system"

	// PromptAnswer expects %s (company ticker), %s (context block) and %s (question).
	PromptAnswer = "answer"

	// PromptRelatedQuestions expects %d (count), %s (context block) and %s (question).
	PromptRelatedQuestions = "related_questions"
)

// DefaultPrompts returns the built-in prompt templates keyed by name.
//
//nolint:lll // Prompt content is intentionally long and should not be wrapped.
func DefaultPrompts() map[string]string {
	return map[string]string{
		PromptAnswerSystem: `You are a financial research assistant answering questions about a public company's SEC filings.
Answer ONLY from the numbered context excerpts you are given. Do not use outside knowledge and do not speculate.
If the excerpts do not contain enough information to answer, say so explicitly instead of guessing.
Refer to excerpts by their number in square brackets, for example [1], when you use them.`,

		PromptAnswer: `Company: %s

Context excerpts:
%s

Question: %s

Answer using only the context excerpts above. If they are insufficient, say that the filings provided do not contain enough information.`,

		PromptRelatedQuestions: `Suggest %d short follow-up questions an investor might ask next.
Base them only on topics that appear in the context below. Return one question per line, with no numbering.

Context:
%s

Previous question: %s

Follow-up questions:`,
	}
}
