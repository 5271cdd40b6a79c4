package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"TubeSage/internal/modules/rag/application/dto/respond"
	"TubeSage/pkg/xerr"
)

// 所有 prompt 都要求模型只依据给定上下文作答；上下文未覆盖时必须明确声明，
// 这是上游的 grounded prompt 约定，改动措辞前先对照召回测试。

const answerPromptTemplate = `You are a helpful assistant answering questions about a video.

Context from video transcript:
%s

Question: %s

Instructions:
1. Analyze the Context to see if it contains the answer to the Question.
2. IF the Context contains the answer:
- Answer strictly using the information provided.
- Set "source" to "context".
3. IF the Context is empty, irrelevant, or does not contain the answer:
- You MUST provide a helpful answer using your own internal knowledge.
- In your answer text, you MUST start with: "This information is not covered in the video, but based on general knowledge..."
- Set "source" to "internal_knowledge".

Respond with a single JSON object: {"answer": "...", "source": "context" or "internal_knowledge"}`

const mapPromptTemplate = `You are extracting notes from one section of a video transcript.

Transcript section:
%s

Topic: %s

Instructions:
1. Extract every point from this section that is relevant to the Topic, as concise bullet points.
2. Keep the original order of the points.
3. If nothing in this section relates to the Topic, respond with exactly: NONE

Respond with the bullet points only, no preamble.`

const reducePromptTemplate = `You are merging partial notes about one video into a single coherent document.

Partial notes, in timeline order:
%s

Topic: %s

Instructions:
1. Merge the partial notes into one well-structured note document about the Topic.
2. De-duplicate repeated points but do not drop content that appears in only one part.
3. Create a captivating title for the Topic at the beginning of the notes.

Respond with the merged notes only, in markdown.`

func buildAnswerPrompt(contextText, question string) string {
	if strings.TrimSpace(contextText) == "" {
		contextText = "No relevant video context found."
	}
	return fmt.Sprintf(answerPromptTemplate, contextText, question)
}

func buildMapPrompt(sectionText, topic string) string {
	return fmt.Sprintf(mapPromptTemplate, sectionText, topic)
}

func buildReducePrompt(partials []string, topic string) string {
	return fmt.Sprintf(reducePromptTemplate, strings.Join(partials, "\n\n---\n\n"), topic)
}

var fenceRe = regexp.MustCompile("(?m)^```[a-zA-Z]*\\s*$")

// cleanModelOutput 去掉模型输出外层的 markdown 代码围栏
func cleanModelOutput(s string) string {
	s = strings.TrimSpace(s)
	s = fenceRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

type answerPayload struct {
	Answer string `json:"answer"`
	Source string `json:"source"`
}

// parseAnswer 解析 {"answer","source"} JSON；不是合法 JSON 时整段当作答案兜底
func parseAnswer(raw string) (string, string) {
	cleaned := cleanModelOutput(raw)
	var payload answerPayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err == nil && payload.Answer != "" {
		source := normalizeSource(payload.Source)
		return payload.Answer, source
	}
	return cleaned, respond.SourceContext
}

func normalizeSource(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case respond.SourceInternalKnowledge, "internal knowledge":
		return respond.SourceInternalKnowledge
	case respond.SourceMixed, "context & internal knowledge":
		return respond.SourceMixed
	default:
		return respond.SourceContext
	}
}

// mapProviderErr 把 LLM / embedding 调用失败归入超时或提供方失败两类
func mapProviderErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var ce *xerr.CodeError
	if errors.As(err, &ce) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return xerr.Wrap(xerr.KindTimeout, op+" timed out", err)
	}
	var te interface{ Timeout() bool }
	if errors.As(err, &te) && te.Timeout() {
		return xerr.Wrap(xerr.KindTimeout, op+" timed out", err)
	}
	return xerr.Wrap(xerr.KindProviderError, op+" failed", err)
}
