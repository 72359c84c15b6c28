package config

import (
	"testing"
)

func TestDefaultSegmentationConfigValid(t *testing.T) {
	cfg := DefaultSegmentationConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
	if cfg.MinLenSec != 5.0 || cfg.MaxLenSec != 16.0 {
		t.Errorf("unexpected default length bounds: min=%.1f max=%.1f", cfg.MinLenSec, cfg.MaxLenSec)
	}
	if cfg.SuspicionMode != "keywords" {
		t.Errorf("unexpected default suspicion mode: %s", cfg.SuspicionMode)
	}
}

func TestSegmentationConfigFromEnv(t *testing.T) {
	t.Setenv("SEG_MIN_LEN_SEC", "3.5")
	t.Setenv("SEG_MAX_LEN_SEC", "20")
	t.Setenv("SUSPICION_MODE", "llm")
	t.Setenv("SEG_TRIM_TO_TRANSCRIPT_BOUNDARIES", "false")
	t.Setenv("SEG_BATCH_SIZE", "not-a-number")

	cfg := SegmentationConfigFromEnv()
	if cfg.MinLenSec != 3.5 {
		t.Errorf("expected MinLenSec=3.5, got %.1f", cfg.MinLenSec)
	}
	if cfg.MaxLenSec != 20 {
		t.Errorf("expected MaxLenSec=20, got %.1f", cfg.MaxLenSec)
	}
	if cfg.SuspicionMode != "llm" {
		t.Errorf("expected SuspicionMode=llm, got %s", cfg.SuspicionMode)
	}
	if cfg.TrimToTranscriptBoundaries {
		t.Error("expected TrimToTranscriptBoundaries=false")
	}
	// 非法值回退默认
	if cfg.BatchSize != 8 {
		t.Errorf("expected BatchSize to fall back to 8, got %d", cfg.BatchSize)
	}
}

func TestSegmentationConfigValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*SegmentationConfig)
	}{
		{"negative min length", func(c *SegmentationConfig) { c.MinLenSec = -1 }},
		{"max not above min", func(c *SegmentationConfig) { c.MaxLenSec = c.MinLenSec }},
		{"scene threshold over 1", func(c *SegmentationConfig) { c.SceneThreshold = 1.5 }},
		{"zero sample interval", func(c *SegmentationConfig) { c.SampleIntervalSec = 0 }},
		{"zero batch size", func(c *SegmentationConfig) { c.BatchSize = 0 }},
		{"zero iterations", func(c *SegmentationConfig) { c.MaxIterations = 0 }},
		{"merge factor at 1", func(c *SegmentationConfig) { c.MergeThresholdFactor = 1.0 }},
		{"bad suspicion mode", func(c *SegmentationConfig) { c.SuspicionMode = "aggressive" }},
		{"zero llm timeout", func(c *SegmentationConfig) { c.LLMTimeoutSec = 0 }},
	}
	for _, tc := range cases {
		cfg := DefaultSegmentationConfig()
		tc.mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}

func TestDefaultPlannerConfigValid(t *testing.T) {
	cfg := DefaultPlannerConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default planner config should be valid: %v", err)
	}
	if cfg.PlanningMode != "segmentation" {
		t.Errorf("unexpected default planning mode: %s", cfg.PlanningMode)
	}
	if cfg.SuspicionCacheTTLSec != 86400 {
		t.Errorf("unexpected default cache TTL: %d", cfg.SuspicionCacheTTLSec)
	}
}

func TestPlannerConfigFromEnv(t *testing.T) {
	t.Setenv("ANALYSIS_PLANNING_MODE", "hybrid")
	t.Setenv("PLANNER_LLM_MAX_POINTS", "12")
	t.Setenv("SUSPICION_LLM_CONF_THRESHOLD", "0.75")

	cfg := PlannerConfigFromEnv()
	if cfg.PlanningMode != "hybrid" {
		t.Errorf("expected PlanningMode=hybrid, got %s", cfg.PlanningMode)
	}
	if cfg.PlannerLLMMaxPoints != 12 {
		t.Errorf("expected PlannerLLMMaxPoints=12, got %d", cfg.PlannerLLMMaxPoints)
	}
	if cfg.SuspicionConfThreshold != 0.75 {
		t.Errorf("expected SuspicionConfThreshold=0.75, got %.2f", cfg.SuspicionConfThreshold)
	}
}

func TestPlannerConfigValidation(t *testing.T) {
	cfg := DefaultPlannerConfig()
	cfg.PlanningMode = "random"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for invalid planning mode")
	}

	cfg = DefaultPlannerConfig()
	cfg.SuspicionConfThreshold = 1.2
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for out-of-range confidence threshold")
	}

	cfg = DefaultPlannerConfig()
	cfg.PlannerMinGapSec = -1
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for negative min gap")
	}
}
