package core

import (
	"encoding/json"
	"log"
	"os"
	"time"
)

// MetricsCollector 结构化指标采集，OBS_METRICS=true 时输出 METRICS: 开头的JSON行
type MetricsCollector struct {
	Enabled bool
}

// NewMetricsCollector 创建采集器
func NewMetricsCollector() *MetricsCollector {
	enabled := os.Getenv("OBS_METRICS") == "true"
	if enabled {
		log.Printf("Observability metrics enabled")
	}
	return &MetricsCollector{Enabled: enabled}
}

func (m *MetricsCollector) emit(payload map[string]interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("metrics marshal failed: %v", err)
		return
	}
	log.Printf("METRICS: %s", data)
}

// MeasureOperation 记录一次操作的耗时，返回结束函数
func (m *MetricsCollector) MeasureOperation(operation string, context map[string]interface{}) func(err error) {
	if !m.Enabled {
		return func(error) {}
	}
	start := time.Now()
	startTimestamp := start.Format(time.RFC3339)
	return func(err error) {
		payload := map[string]interface{}{
			"log_timestamp": startTimestamp,
			"type":          "operation_timing",
			"operation":     operation,
			"latency_ms":    time.Since(start).Milliseconds(),
			"status":        "success",
		}
		if err != nil {
			payload["status"] = "error"
			payload["error"] = err.Error()
		}
		for k, v := range context {
			payload[k] = v
		}
		m.emit(payload)
	}
}

// LogSegmentMetrics 输出单个分段的分析指标
func (m *MetricsCollector) LogSegmentMetrics(videoID string, segmentIndex int, segmentStart, segmentEnd float64,
	latencyMS int64, numFrames int, suspicionMode string, isSuspicious bool, decision Decision) {
	if !m.Enabled {
		return
	}
	latencySec := float64(latencyMS) / 1000.0
	if latencySec < 0.001 {
		latencySec = 0.001
	}
	payload := map[string]interface{}{
		"timestamp": time.Now().Format(time.RFC3339),
		"type":      "segment_analysis",
		"video_id":  videoID,
		"segment": map[string]interface{}{
			"index":      segmentIndex,
			"start":      segmentStart,
			"end":        segmentEnd,
			"duration":   segmentEnd - segmentStart,
			"suspicious": isSuspicious,
		},
		"performance": map[string]interface{}{
			"latency_ms":        latencyMS,
			"frames_analyzed":   numFrames,
			"frames_per_second": float64(numFrames) / latencySec,
		},
		"analysis": map[string]interface{}{
			"suspicion_mode": suspicionMode,
			"is_harmful":     decision.IsHarmful,
			"confidence":     decision.Confidence,
			"categories":     decision.Categories,
		},
	}
	if decision.TokenUsage != nil {
		payload["tokens"] = map[string]interface{}{
			"prompt_tokens":     decision.TokenUsage.PromptTokens,
			"completion_tokens": decision.TokenUsage.CompletionTokens,
		}
	}
	m.emit(payload)
}

// LogVideoMetrics 输出整段视频的汇总指标
func (m *MetricsCollector) LogVideoMetrics(videoID string, totalLatencyMS int64, segmentsCount, framesAnalyzed,
	harmfulEventsCount int, planningMode, modelUsed string) {
	if !m.Enabled {
		return
	}
	m.emit(map[string]interface{}{
		"timestamp": time.Now().Format(time.RFC3339),
		"type":      "video_analysis_complete",
		"video_id":  videoID,
		"performance": map[string]interface{}{
			"total_latency_ms":   totalLatencyMS,
			"segments_processed": segmentsCount,
			"frames_analyzed":    framesAnalyzed,
			"harmful_events":     harmfulEventsCount,
		},
		"configuration": map[string]interface{}{
			"planning_mode": planningMode,
			"model_used":    modelUsed,
		},
	})
}
