package processors

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"videoModerate/core"
)

func TestLLMDecideHarmful(t *testing.T) {
	llm := &fakeLLM{
		responses: []map[string]interface{}{{
			"pred_is_harmful": true,
			"confidence":      0.92,
			"explanation":     "explicit violent threats",
			"harm_categories": []interface{}{"violence", "hate_speech"},
		}},
		usage: &core.TokenUsage{PromptTokens: 120, CompletionTokens: 40},
	}

	decision := LLMDecide(context.Background(), llm, "audio text", "ocr text", "captions", 5*time.Second, "[0.0s-10.0s]")
	if !decision.IsHarmful {
		t.Fatal("expected harmful decision")
	}
	if decision.Confidence != 0.92 {
		t.Errorf("expected confidence 0.92, got %.2f", decision.Confidence)
	}
	if len(decision.Categories) != 2 || decision.Categories[0] != "violence" {
		t.Errorf("unexpected categories: %v", decision.Categories)
	}
	if decision.Explanation != "explicit violent threats" {
		t.Errorf("unexpected explanation: %s", decision.Explanation)
	}
	if decision.TokenUsage == nil || decision.TokenUsage.Total() != 160 {
		t.Errorf("unexpected token usage: %+v", decision.TokenUsage)
	}
}

func TestLLMDecideNilLLMSafeDefault(t *testing.T) {
	decision := LLMDecide(context.Background(), nil, "", "", "", time.Second, "[0.0s-5.0s]")
	if decision.IsHarmful {
		t.Error("expected safe default")
	}
	if decision.Explanation != "Analysis failed - assuming safe" {
		t.Errorf("unexpected explanation: %s", decision.Explanation)
	}
	if decision.Categories == nil || len(decision.Categories) != 0 {
		t.Errorf("expected empty category list, got %v", decision.Categories)
	}
}

func TestLLMDecideErrorSafeDefault(t *testing.T) {
	llm := &fakeLLM{err: fmt.Errorf("model unavailable")}
	decision := LLMDecide(context.Background(), llm, "audio", "", "", time.Second, "[0.0s-5.0s]")
	if decision.IsHarmful || decision.Confidence != 0 {
		t.Errorf("expected safe default on error, got %+v", decision)
	}
}

func TestLLMDecideExplanationSynonyms(t *testing.T) {
	llm := &fakeLLM{responses: []map[string]interface{}{{
		"pred_is_harmful": true,
		"confidence":      0.8,
		"rationale":       "uses a synonym key",
	}}}
	decision := LLMDecide(context.Background(), llm, "audio", "", "", time.Second, "[0.0s-5.0s]")
	if decision.Explanation != "uses a synonym key" {
		t.Errorf("expected synonym field picked up, got %q", decision.Explanation)
	}
	if decision.Categories == nil {
		t.Error("expected non-nil categories even when absent in response")
	}
}

func TestLLMDecideClampsConfidence(t *testing.T) {
	llm := &fakeLLM{responses: []map[string]interface{}{{
		"pred_is_harmful": true,
		"confidence":      1.7,
	}}}
	decision := LLMDecide(context.Background(), llm, "audio", "", "", time.Second, "[0.0s-5.0s]")
	if decision.Confidence != 1.0 {
		t.Errorf("expected confidence clamped to 1.0, got %.2f", decision.Confidence)
	}
}

func TestLLMDecidePromptPlaceholders(t *testing.T) {
	llm := &fakeLLM{}
	LLMDecide(context.Background(), llm, "", "  ", "", time.Second, "[0.0s-5.0s]")
	if len(llm.prompts) != 1 {
		t.Fatalf("expected 1 prompt, got %d", len(llm.prompts))
	}
	prompt := llm.prompts[0]
	for _, placeholder := range []string{
		"No audio transcript available",
		"No OCR text detected",
		"No image descriptions available",
	} {
		if !strings.Contains(prompt, placeholder) {
			t.Errorf("prompt missing placeholder %q", placeholder)
		}
	}
}
