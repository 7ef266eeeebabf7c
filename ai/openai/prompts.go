package openai

import (
	"fmt"
	"strings"
)

const answerSystemPrompt = `You answer questions about the user's email and its attachments.

Rules:
- Use only the documents given in the context. Do not use outside knowledge.
- If the context does not contain the answer, say that you could not find it in the retrieved mail.
- Quote figures, dates, and names exactly as they appear in the context.
- Be concise. Do not repeat the question and do not add a preamble.`

const answerUserTemplate = `Context:
%s

Question: %s

Answer:`

// buildUserPrompt places the retrieved context ahead of the question.
func buildUserPrompt(context, question string) string {
	return fmt.Sprintf(answerUserTemplate, strings.TrimSpace(context), strings.TrimSpace(question))
}
