package processors

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"videoModerate/core"
	"videoModerate/tools"
)

// LLMDecide 基于多模态证据做审核判定。任何失败都回落到安全默认值。
func LLMDecide(ctx context.Context, llm tools.LLM, audioText, ocrText, captionsText string,
	timeout time.Duration, segmentInfo string) core.Decision {
	audioBlock := strings.TrimSpace(audioText)
	if audioBlock == "" {
		audioBlock = "No audio transcript available"
	}
	ocrBlock := strings.TrimSpace(ocrText)
	if ocrBlock == "" {
		ocrBlock = "No OCR text detected"
	}
	captionsBlock := strings.TrimSpace(captionsText)
	if captionsBlock == "" {
		captionsBlock = "No image descriptions available"
	}

	prompt := fmt.Sprintf(`Analyze the following multimedia content from a video segment:

AUDIO TRANSCRIPT:
%s

OCR TEXT:
%s

IMAGE DESCRIPTIONS:
%s

Determine if the content contains harmful, offensive, or inappropriate material. Consider:
- Religious/political/racial content is not automatically harmful
- Focus on whether it promotes harmful or discriminatory beliefs
- Evaluate context and potential implications

Respond with a JSON object containing:
- pred_is_harmful: boolean
- confidence: float between 0-1
- explanation: string (concise reasoning)
- harm_categories: list of strings (if any)

Only return valid JSON without any additional text.`, audioBlock, ocrBlock, captionsBlock)

	safeDefault := core.Decision{
		Explanation: "Analysis failed - assuming safe",
		Categories:  []string{},
	}
	if llm == nil {
		return safeDefault
	}

	raw, usage, err := llm.Invoke(ctx, prompt, 512, 0.7, timeout)
	if err != nil {
		log.Printf("LLM decision failed for segment %s: %v", segmentInfo, err)
		return safeDefault
	}

	categories := asStringList(raw["harm_categories"])
	if categories == nil {
		categories = []string{}
	}

	explanation := asString(raw["explanation"])
	for _, synonym := range []string{"rationale", "reason", "justification"} {
		if explanation != "" {
			break
		}
		explanation = asString(raw[synonym])
	}

	decision := core.Decision{
		IsHarmful:   asBool(raw["pred_is_harmful"]),
		Confidence:  clampUnit(asFloat(raw["confidence"])),
		Categories:  categories,
		Explanation: explanation,
		TokenUsage:  usage,
	}
	log.Printf("LLM decision for segment %s: harmful=%v, confidence=%.2f",
		segmentInfo, decision.IsHarmful, decision.Confidence)
	return decision
}
