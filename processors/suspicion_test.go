package processors

import (
	"context"
	"strings"
	"testing"
	"time"

	"videoModerate/config"
	"videoModerate/core"
)

func newKeywordScorer() *SuspicionScorer {
	return NewSuspicionScorer(nil, core.NewResultCache(time.Hour, 100), config.DefaultPlannerConfig(), nil)
}

func TestScoreKeywordsMatch(t *testing.T) {
	s := newKeywordScorer()
	budget := core.NewBudgetTracker(10, 10)

	result := s.Score(context.Background(), "he was selling heroin behind the school", "keywords", "vid", 0, budget)
	if !result.Suspicious {
		t.Fatal("expected suspicious result for drug keyword")
	}
	if result.Confidence != 0.8 {
		t.Errorf("expected confidence 0.8, got %.2f", result.Confidence)
	}
	if result.Method != "keywords" {
		t.Errorf("expected method keywords, got %s", result.Method)
	}
	if result.Category != "drugs" || result.Keyword != "heroin" {
		t.Errorf("unexpected category/keyword: %s/%s", result.Category, result.Keyword)
	}
}

func TestScoreKeywordsSafe(t *testing.T) {
	s := newKeywordScorer()

	result := s.Score(context.Background(), "a calm cooking tutorial about pasta", "keywords", "vid", 0, nil)
	if result.Suspicious {
		t.Fatal("expected safe result")
	}
	if result.Confidence != 0.9 {
		t.Errorf("expected confidence 0.9, got %.2f", result.Confidence)
	}
	if result.Reason != "No suspicious keywords found" {
		t.Errorf("unexpected reason: %s", result.Reason)
	}
}

func TestScoreKeywordsEmptyText(t *testing.T) {
	s := newKeywordScorer()
	result := s.Score(context.Background(), "", "keywords", "vid", 0, nil)
	if result.Suspicious || result.Reason != "No text available" {
		t.Errorf("unexpected empty-text result: %+v", result)
	}
}

func TestScoreKeywordsDeterministic(t *testing.T) {
	s := newKeywordScorer()
	// 文本同时命中多个类目时，始终按类目优先级返回第一个
	text := "the killer was high on cocaine and full of hate for jews"
	first := s.Score(context.Background(), text, "keywords", "vid", 0, nil)
	for i := 0; i < 20; i++ {
		got := s.Score(context.Background(), text, "keywords", "vid", 0, nil)
		if got.Category != first.Category || got.Keyword != first.Keyword {
			t.Fatalf("non-deterministic result: %s/%s vs %s/%s",
				got.Category, got.Keyword, first.Category, first.Keyword)
		}
	}
	if first.Category != "hate" {
		t.Errorf("expected highest-priority category hate, got %s", first.Category)
	}
}

func TestScoreModeOff(t *testing.T) {
	s := newKeywordScorer()
	result := s.Score(context.Background(), "cocaine everywhere", "off", "vid", 0, nil)
	if result.Suspicious || result.Confidence != 0 {
		t.Errorf("expected disabled result, got %+v", result)
	}
	if result.Method != "off" || result.Reason != "Suspicion scoring disabled" {
		t.Errorf("unexpected off-mode fields: %+v", result)
	}
}

func TestScoreUnknownModeFallsBackToKeywords(t *testing.T) {
	s := newKeywordScorer()
	result := s.Score(context.Background(), "he bought a gun", "aggressive", "vid", 0, nil)
	if result.Method != "keywords" {
		t.Errorf("expected keywords fallback, got %s", result.Method)
	}
	if !result.Suspicious {
		t.Error("expected weapon keyword to trigger")
	}
}

func TestScoreLLMSuccess(t *testing.T) {
	llm := &fakeLLM{responses: []map[string]interface{}{{
		"suspicious": true,
		"confidence": 0.85,
		"category":   "violence",
		"reason":     "explicit threats",
	}}}
	cache := core.NewResultCache(time.Hour, 100)
	defer cache.Close()
	s := NewSuspicionScorer(llm, cache, config.DefaultPlannerConfig(), nil)
	budget := core.NewBudgetTracker(5, 5)

	text := strings.Repeat("threatening language sample ", 5)
	result := s.Score(context.Background(), text, "llm", "vid", 0, budget)
	if !result.Suspicious || result.Method != "llm" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Confidence != 0.85 || result.Category != "violence" {
		t.Errorf("unexpected fields: %+v", result)
	}
	if result.CacheHit {
		t.Error("first call should not be a cache hit")
	}
	if usage := budget.Usage(); usage.SuspicionLLMCallsUsed != 1 {
		t.Errorf("expected 1 LLM call counted, got %d", usage.SuspicionLLMCallsUsed)
	}
}

func TestScoreLLMThresholdOverridesModelBoolean(t *testing.T) {
	// 模型说不可疑但置信度达到阈值时，以阈值判定为准
	llm := &fakeLLM{responses: []map[string]interface{}{{
		"suspicious": false,
		"confidence": 0.7,
	}}}
	cache := core.NewResultCache(time.Hour, 100)
	defer cache.Close()
	s := NewSuspicionScorer(llm, cache, config.DefaultPlannerConfig(), nil)

	text := strings.Repeat("ambiguous content sample ", 5)
	result := s.Score(context.Background(), text, "llm", "vid", 0, core.NewBudgetTracker(5, 5))
	if !result.Suspicious {
		t.Error("expected threshold to mark segment suspicious")
	}
}

func TestScoreLLMCacheHit(t *testing.T) {
	llm := &fakeLLM{responses: []map[string]interface{}{{
		"suspicious": true,
		"confidence": 0.9,
	}}}
	cache := core.NewResultCache(time.Hour, 100)
	defer cache.Close()
	s := NewSuspicionScorer(llm, cache, config.DefaultPlannerConfig(), nil)
	budget := core.NewBudgetTracker(5, 5)

	text := strings.Repeat("repeat analysis sample ", 5)
	first := s.Score(context.Background(), text, "llm", "vid", 3, budget)
	if first.CacheHit {
		t.Fatal("first call should miss cache")
	}

	second := s.Score(context.Background(), text, "llm", "vid", 3, budget)
	if !second.CacheHit {
		t.Fatal("second call should hit cache")
	}
	if llm.calls != 1 {
		t.Errorf("expected single LLM call, got %d", llm.calls)
	}
	// 缓存命中不消耗预算
	if usage := budget.Usage(); usage.SuspicionLLMCallsUsed != 1 {
		t.Errorf("expected budget unchanged on cache hit, got %d", usage.SuspicionLLMCallsUsed)
	}
}

func TestScoreLLMShortTextSkipsCall(t *testing.T) {
	llm := &fakeLLM{}
	cache := core.NewResultCache(time.Hour, 100)
	defer cache.Close()
	s := NewSuspicionScorer(llm, cache, config.DefaultPlannerConfig(), nil)

	result := s.Score(context.Background(), "short", "llm", "vid", 0, core.NewBudgetTracker(5, 5))
	if result.Method != "llm" || result.Reason != "Text too short for analysis" {
		t.Errorf("unexpected short-text result: %+v", result)
	}
	if llm.calls != 0 {
		t.Errorf("expected no LLM call for short text, got %d", llm.calls)
	}
}

func TestScoreLLMBudgetExhaustedFallsBack(t *testing.T) {
	llm := &fakeLLM{}
	cache := core.NewResultCache(time.Hour, 100)
	defer cache.Close()
	s := NewSuspicionScorer(llm, cache, config.DefaultPlannerConfig(), nil)
	budget := core.NewBudgetTracker(0, 5)

	text := strings.Repeat("he was waving a knife around ", 4)
	result := s.Score(context.Background(), text, "llm", "vid", 0, budget)
	if result.Method != "keywords" {
		t.Errorf("expected keywords fallback when budget exhausted, got %s", result.Method)
	}
	if !result.Suspicious {
		t.Error("expected keyword match in fallback")
	}
	if llm.calls != 0 {
		t.Errorf("expected no LLM call, got %d", llm.calls)
	}
}

func TestScoreLLMErrorFallsBack(t *testing.T) {
	llm := &fakeLLM{err: context.DeadlineExceeded}
	cache := core.NewResultCache(time.Hour, 100)
	defer cache.Close()
	s := NewSuspicionScorer(llm, cache, config.DefaultPlannerConfig(), nil)
	budget := core.NewBudgetTracker(5, 5)

	text := strings.Repeat("completely harmless cooking content ", 4)
	result := s.Score(context.Background(), text, "llm", "vid", 0, budget)
	if result.Method != "keywords" {
		t.Errorf("expected keywords fallback on LLM error, got %s", result.Method)
	}
	// 失败的调用不计入预算
	if usage := budget.Usage(); usage.SuspicionLLMCallsUsed != 0 {
		t.Errorf("expected no budget consumed on error, got %d", usage.SuspicionLLMCallsUsed)
	}
}
