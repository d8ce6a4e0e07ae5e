package synthesis

import (
	"fmt"
	"strings"

	"github.com/poiesic/groundwork/core"
)

const answerPromptTemplate = `You are a helpful assistant.
Use the context below to answer the question.
Provide a comprehensive and detailed answer based ONLY on the provided context.
If the context mentions multiple points, list them out clearly.

Context:
%s

Question:
%s

If the context does not contain enough information, respond exactly with:
"%s"
`

// refusalMarker is matched against generated answers. It is the refusal
// sentence without its trailing clause so paraphrased endings still match.
const refusalMarker = "I don't have enough information"

// BuildPrompt fills the answer template with passages joined by a blank line.
func BuildPrompt(question string, passages []core.FusedHit) string {
	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Text
	}
	return fmt.Sprintf(answerPromptTemplate, strings.Join(texts, "\n\n"), question, core.RefusalSentence)
}

// IsRefusal reports whether a generated answer declines to answer.
func IsRefusal(answer string) bool {
	return strings.Contains(answer, refusalMarker)
}
