package processors

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"videoModerate/core"
)

// reportFile 视频目录下的报告文件名
const reportFile = "safety_report.json"

// BuildReport 组装v2格式报告
func BuildReport(videoID string, events []core.HarmfulEvent, modelUsed, planningMode, analysisRunID string) *core.Report {
	log.Printf("Building v2 report for video %s with %d harmful events", videoID, len(events))
	if events == nil {
		events = []core.HarmfulEvent{}
	}
	if planningMode == "" {
		planningMode = "segmentation"
	}
	return &core.Report{
		FormatVersion: 2,
		VideoID:       videoID,
		PlanningMode:  planningMode,
		HarmfulEvents: events,
		ModelUsed:     modelUsed,
		AnalysisRunID: analysisRunID,
	}
}

// SaveReport 将报告写入视频目录
func SaveReport(report *core.Report, videoDir string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %v", err)
	}
	path := filepath.Join(videoDir, reportFile)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to save report for video %s: %v", report.VideoID, err)
	}
	log.Printf("V2 report saved to %s", path)
	return nil
}

// ValidateReport 校验报告符合v2格式约定
func ValidateReport(report *core.Report) error {
	if report == nil {
		return fmt.Errorf("report is nil")
	}
	if report.FormatVersion != 2 {
		return fmt.Errorf("invalid format_version: %d, expected 2", report.FormatVersion)
	}
	if report.VideoID == "" {
		return fmt.Errorf("missing video_id")
	}
	if report.PlanningMode == "" {
		return fmt.Errorf("missing planning_mode")
	}
	for i, event := range report.HarmfulEvents {
		if err := validateHarmfulEvent(event); err != nil {
			return fmt.Errorf("event %d: %w", i, err)
		}
	}
	return nil
}

func validateHarmfulEvent(event core.HarmfulEvent) error {
	if event.AnalysisMode != "region" {
		return fmt.Errorf("analysis_mode must be 'region', got %q", event.AnalysisMode)
	}
	if event.NumFrames <= 0 {
		return fmt.Errorf("num_frames must be positive, got %d", event.NumFrames)
	}
	if event.SegmentStart == "" || event.SegmentEnd == "" {
		return fmt.Errorf("missing segment bounds")
	}
	data := event.AnalysisData
	if data.Confidence < 0 || data.Confidence > 100 {
		return fmt.Errorf("confidence must be 0-100, got %d", data.Confidence)
	}
	return nil
}
