package ai

import "github.com/seanblong/siteanswer/internal/textutil"

// MaxContext bounds the context sent to a provider.
const MaxContext = 3500

const systemPrompt = "You are a helpful assistant. Prefer the provided context. " +
	"Answer in 2–4 clear sentences, conversational but concise. " +
	"Do NOT include a Sources section; the caller will render sources."

// userPrompt builds the user turn with the context clipped to MaxContext.
func userPrompt(question, passage string) string {
	return "Question: " + question + "\n\nContext:\n" + textutil.Clip(passage, MaxContext) + "\n\nWrite the answer now."
}
