package tools

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"videoModerate/core"
	"videoModerate/utils"
)

// FrameExtractor 按时间戳抽帧
type FrameExtractor interface {
	ExtractFrames(videoPath string, timestamps []float64, outDir string) ([]core.Frame, error)
}

// FFmpegFrameExtractor 基于ffmpeg的抽帧实现
type FFmpegFrameExtractor struct{}

// NewFFmpegFrameExtractor 创建抽帧器
func NewFFmpegFrameExtractor() *FFmpegFrameExtractor {
	return &FFmpegFrameExtractor{}
}

// ExtractFrames 在指定时间戳抽取帧，单帧失败时跳过而不中断整体
func (e *FFmpegFrameExtractor) ExtractFrames(videoPath string, timestamps []float64, outDir string) ([]core.Frame, error) {
	if len(timestamps) == 0 {
		return nil, nil
	}
	if err := utils.EnsureDir(outDir); err != nil {
		return nil, fmt.Errorf("无法创建帧目录: %v", err)
	}

	frames := make([]core.Frame, 0, len(timestamps))
	for _, ts := range timestamps {
		framePath := filepath.Join(outDir, fmt.Sprintf("frame_%d.jpg", int(ts*1000)))
		args := []string{
			"-ss", strconv.FormatFloat(ts, 'f', 3, 64),
			"-i", videoPath,
			"-frames:v", "1",
			"-q:v", "2",
			"-y",
			framePath,
		}
		if err := utils.RunFFmpeg(args); err != nil {
			log.Printf("抽帧失败 ts=%.1fs: %v", ts, err)
			continue
		}
		if !utils.FileExists(framePath) {
			continue
		}
		frames = append(frames, core.Frame{TimestampSec: ts, Path: framePath})
	}

	if len(frames) == 0 {
		return nil, fmt.Errorf("no frames extracted from %s", videoPath)
	}
	return frames, nil
}

// ProbeVideo 通过ffprobe读取视频元信息
func ProbeVideo(path string) (core.VideoInfo, error) {
	var info core.VideoInfo
	if _, err := os.Stat(path); err != nil {
		return info, fmt.Errorf("video file not accessible: %v", err)
	}

	out, err := utils.RunCommand("ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,r_frame_rate",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1",
		path)
	if err != nil {
		return info, fmt.Errorf("ffprobe failed: %v", err)
	}

	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		switch key {
		case "duration":
			info.DurationSec, _ = strconv.ParseFloat(value, 64)
		case "width":
			info.Width, _ = strconv.Atoi(value)
		case "height":
			info.Height, _ = strconv.Atoi(value)
		case "r_frame_rate":
			info.FPS = parseFrameRate(value)
		}
	}

	if info.DurationSec <= 0 {
		return info, fmt.Errorf("invalid duration for %s", path)
	}
	return info, nil
}

// parseFrameRate 解析 "30000/1001" 形式的帧率
func parseFrameRate(value string) float64 {
	num, den, ok := strings.Cut(value, "/")
	if !ok {
		f, _ := strconv.ParseFloat(value, 64)
		return f
	}
	n, err1 := strconv.ParseFloat(num, 64)
	d, err2 := strconv.ParseFloat(den, 64)
	if err1 != nil || err2 != nil || d == 0 {
		return 0
	}
	return n / d
}

// SampleTimestamps 在[start,end)内按固定间隔生成采样时间戳，数量不超过cap
func SampleTimestamps(start, end, interval float64, cap int) []float64 {
	var timestamps []float64
	current := start
	for current < end && len(timestamps) < cap {
		timestamps = append(timestamps, current)
		current += interval
	}
	return timestamps
}
