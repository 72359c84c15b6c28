package config

import (
	"fmt"
	"os"
	"strconv"
)

// SegmentationConfig 控制视频分段算法的参数，加载后不再修改
type SegmentationConfig struct {
	// Segment duration constraints
	MinLenSec float64
	MaxLenSec float64

	// Visual boundary detection
	SceneThreshold    float64
	SampleIntervalSec float64
	BatchSize         int

	// Transcript processing
	MinSentenceChars int

	// Iteration controls
	MaxIterations        int
	MergeThresholdFactor float64

	// Non-overlap normalization
	NonOverlapToleranceSec     float64
	MaxLenSoftFactor           float64
	TrimToTranscriptBoundaries bool
	ContextEvidencePadSec      float64
	DropTinyAfterTrimFactor    float64

	// Segment analysis
	SafeSampleSec       float64
	SuspiciousSampleSec float64
	MaxFramesPerSegment int
	SuspicionMode       string // keywords|llm|off
	LLMTimeoutSec       float64
}

// DefaultSegmentationConfig 返回默认参数
func DefaultSegmentationConfig() SegmentationConfig {
	return SegmentationConfig{
		MinLenSec:                  5.0,
		MaxLenSec:                  16.0,
		SceneThreshold:             0.85,
		SampleIntervalSec:          2.0,
		BatchSize:                  8,
		MinSentenceChars:           20,
		MaxIterations:              7,
		MergeThresholdFactor:       1.2,
		NonOverlapToleranceSec:     0.20,
		MaxLenSoftFactor:           1.15,
		TrimToTranscriptBoundaries: true,
		ContextEvidencePadSec:      1.5,
		DropTinyAfterTrimFactor:    0.5,
		SafeSampleSec:              3.0,
		SuspiciousSampleSec:        5.0,
		MaxFramesPerSegment:        10,
		SuspicionMode:              "keywords",
		LLMTimeoutSec:              30.0,
	}
}

// SegmentationConfigFromEnv 从环境变量读取配置，缺省回退到默认值
func SegmentationConfigFromEnv() SegmentationConfig {
	cfg := DefaultSegmentationConfig()
	cfg.MinLenSec = getEnvFloat("SEG_MIN_LEN_SEC", cfg.MinLenSec)
	cfg.MaxLenSec = getEnvFloat("SEG_MAX_LEN_SEC", cfg.MaxLenSec)
	cfg.SceneThreshold = getEnvFloat("SEG_SCENE_THRESHOLD", cfg.SceneThreshold)
	cfg.SampleIntervalSec = getEnvFloat("SEG_SAMPLE_INTERVAL_SEC", cfg.SampleIntervalSec)
	cfg.BatchSize = getEnvInt("SEG_BATCH_SIZE", cfg.BatchSize)
	cfg.MinSentenceChars = getEnvInt("SEG_MIN_SENTENCE_CHARS", cfg.MinSentenceChars)
	cfg.MaxIterations = getEnvInt("SEG_MAX_ITERATIONS", cfg.MaxIterations)
	cfg.MergeThresholdFactor = getEnvFloat("SEG_MERGE_THRESHOLD_FACTOR", cfg.MergeThresholdFactor)
	cfg.NonOverlapToleranceSec = getEnvFloat("SEG_NON_OVERLAP_TOLERANCE_SEC", cfg.NonOverlapToleranceSec)
	cfg.MaxLenSoftFactor = getEnvFloat("SEG_MAX_LEN_SOFT_FACTOR", cfg.MaxLenSoftFactor)
	cfg.TrimToTranscriptBoundaries = getEnvBool("SEG_TRIM_TO_TRANSCRIPT_BOUNDARIES", cfg.TrimToTranscriptBoundaries)
	cfg.ContextEvidencePadSec = getEnvFloat("SEG_CONTEXT_EVIDENCE_PAD_SEC", cfg.ContextEvidencePadSec)
	cfg.DropTinyAfterTrimFactor = getEnvFloat("SEG_DROP_TINY_AFTER_TRIM_FACTOR", cfg.DropTinyAfterTrimFactor)
	cfg.SafeSampleSec = getEnvFloat("SEG_SAFE_SAMPLE_SEC", cfg.SafeSampleSec)
	cfg.SuspiciousSampleSec = getEnvFloat("SEG_SUS_SAMPLE_SEC", cfg.SuspiciousSampleSec)
	cfg.MaxFramesPerSegment = getEnvInt("MAX_FRAMES_PER_SEG", cfg.MaxFramesPerSegment)
	cfg.SuspicionMode = getEnvOrDefault("SUSPICION_MODE", cfg.SuspicionMode)
	cfg.LLMTimeoutSec = getEnvFloat("SEG_LLM_TIMEOUT_SEC", cfg.LLMTimeoutSec)
	return cfg
}

// Validate 校验参数合法性，非法配置属于启动期致命错误
func (c *SegmentationConfig) Validate() error {
	if c.MinLenSec <= 0 {
		return fmt.Errorf("min_len_sec must be positive")
	}
	if c.MaxLenSec <= c.MinLenSec {
		return fmt.Errorf("max_len_sec must be greater than min_len_sec")
	}
	if c.SceneThreshold <= 0 || c.SceneThreshold > 1 {
		return fmt.Errorf("scene_threshold must be between 0 and 1")
	}
	if c.SampleIntervalSec <= 0 {
		return fmt.Errorf("sample_interval_sec must be positive")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive")
	}
	if c.MinSentenceChars < 0 {
		return fmt.Errorf("min_sentence_chars must be non-negative")
	}
	if c.MaxIterations <= 0 {
		return fmt.Errorf("max_iterations must be positive")
	}
	if c.MergeThresholdFactor <= 1.0 {
		return fmt.Errorf("merge_threshold_factor must be greater than 1.0")
	}
	switch c.SuspicionMode {
	case "keywords", "llm", "off":
	default:
		return fmt.Errorf("suspicion_mode must be 'keywords', 'llm', or 'off'")
	}
	if c.LLMTimeoutSec <= 0 {
		return fmt.Errorf("llm_timeout_sec must be positive")
	}
	return nil
}

// PlannerConfig 控制可疑度打分与探测点规划
type PlannerConfig struct {
	// Planning mode
	PlanningMode string // segmentation|llm|hybrid

	// Suspicion selector
	SuspicionLLMTimeoutSec  float64
	SuspicionConfThreshold  float64
	SuspicionLLMMaxSegments int
	SuspicionMinTextChars   int
	SuspicionCacheTTLSec    int

	// Planner
	PlannerLLMMaxPoints   int
	PlannerMinGapSec      float64
	PlannerMaxExtraFrames int
}

// DefaultPlannerConfig 返回默认参数
func DefaultPlannerConfig() PlannerConfig {
	return PlannerConfig{
		PlanningMode:            "segmentation",
		SuspicionLLMTimeoutSec:  8.0,
		SuspicionConfThreshold:  0.6,
		SuspicionLLMMaxSegments: 50,
		SuspicionMinTextChars:   80,
		SuspicionCacheTTLSec:    86400,
		PlannerLLMMaxPoints:     5,
		PlannerMinGapSec:        8.0,
		PlannerMaxExtraFrames:   120,
	}
}

// PlannerConfigFromEnv 从环境变量读取规划配置
func PlannerConfigFromEnv() PlannerConfig {
	cfg := DefaultPlannerConfig()
	cfg.PlanningMode = getEnvOrDefault("ANALYSIS_PLANNING_MODE", cfg.PlanningMode)
	cfg.SuspicionLLMTimeoutSec = getEnvFloat("SUSPICION_LLM_TIMEOUT_SEC", cfg.SuspicionLLMTimeoutSec)
	cfg.SuspicionConfThreshold = getEnvFloat("SUSPICION_LLM_CONF_THRESHOLD", cfg.SuspicionConfThreshold)
	cfg.SuspicionLLMMaxSegments = getEnvInt("SUSPICION_LLM_MAX_SEGMENTS", cfg.SuspicionLLMMaxSegments)
	cfg.SuspicionMinTextChars = getEnvInt("SUSPICION_LLM_MIN_TEXT_CHARS", cfg.SuspicionMinTextChars)
	cfg.SuspicionCacheTTLSec = getEnvInt("SUSPICION_LLM_CACHE_TTL_SEC", cfg.SuspicionCacheTTLSec)
	cfg.PlannerLLMMaxPoints = getEnvInt("PLANNER_LLM_MAX_POINTS", cfg.PlannerLLMMaxPoints)
	cfg.PlannerMinGapSec = getEnvFloat("PLANNER_MIN_GAP_SEC", cfg.PlannerMinGapSec)
	cfg.PlannerMaxExtraFrames = getEnvInt("PLANNER_MAX_EXTRA_FRAMES", cfg.PlannerMaxExtraFrames)
	return cfg
}

// Validate 校验规划配置
func (c *PlannerConfig) Validate() error {
	switch c.PlanningMode {
	case "segmentation", "llm", "hybrid":
	default:
		return fmt.Errorf("planning_mode must be 'segmentation', 'llm', or 'hybrid'")
	}
	if c.SuspicionLLMTimeoutSec <= 0 {
		return fmt.Errorf("suspicion_llm_timeout_sec must be positive")
	}
	if c.SuspicionConfThreshold < 0 || c.SuspicionConfThreshold > 1 {
		return fmt.Errorf("suspicion_llm_conf_threshold must be between 0 and 1")
	}
	if c.SuspicionLLMMaxSegments < 0 {
		return fmt.Errorf("suspicion_llm_max_segments must be non-negative")
	}
	if c.SuspicionMinTextChars < 0 {
		return fmt.Errorf("suspicion_llm_min_text_chars must be non-negative")
	}
	if c.SuspicionCacheTTLSec < 0 {
		return fmt.Errorf("suspicion_llm_cache_ttl_sec must be non-negative")
	}
	if c.PlannerLLMMaxPoints < 0 {
		return fmt.Errorf("planner_llm_max_points must be non-negative")
	}
	if c.PlannerMinGapSec < 0 {
		return fmt.Errorf("planner_min_gap_sec must be non-negative")
	}
	if c.PlannerMaxExtraFrames < 0 {
		return fmt.Errorf("planner_max_extra_frames must be non-negative")
	}
	return nil
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}
