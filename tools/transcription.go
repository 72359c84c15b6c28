package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"videoModerate/config"
	"videoModerate/core"
	"videoModerate/utils"
)

// Transcriber 语音转写接口
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (*core.Transcript, error)
}

// WhisperTranscriber 基于Whisper接口的转写实现
type WhisperTranscriber struct {
	cli   *openai.Client
	model string
}

// NewWhisperTranscriber 创建转写客户端
func NewWhisperTranscriber(cfg *config.Config) *WhisperTranscriber {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return &WhisperTranscriber{
		cli:   openai.NewClientWithConfig(clientConfig),
		model: cfg.WhisperModel,
	}
}

// Transcribe 转写整段音频，返回全文、词级时间戳与分句
func (w *WhisperTranscriber) Transcribe(ctx context.Context, audioPath string) (*core.Transcript, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	resp, err := w.cli.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		FilePath: audioPath,
		Format:   openai.AudioResponseFormatVerboseJSON,
		TimestampGranularities: []openai.TranscriptionTimestampGranularity{
			openai.TranscriptionTimestampGranularityWord,
			openai.TranscriptionTimestampGranularitySegment,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("transcription failed: %w", err)
	}

	transcript := &core.Transcript{FullText: resp.Text}
	for _, word := range resp.Words {
		transcript.Words = append(transcript.Words, core.WordStamp{
			Word: word.Word,
			Time: word.Start,
		})
	}
	for _, seg := range resp.Segments {
		transcript.Segments = append(transcript.Segments, core.Segment{
			Start: seg.Start,
			End:   seg.End,
			Text:  seg.Text,
		})
	}

	log.Printf("转写完成: %d 词, %d 句", len(transcript.Words), len(transcript.Segments))
	return transcript, nil
}

// transcriptFile 视频目录下的转写缓存文件名
const transcriptFile = "transcript.json"

// LoadCachedTranscript 读取已缓存的转写结果，不存在时返回nil
func LoadCachedTranscript(videoDir string) *core.Transcript {
	path := filepath.Join(videoDir, transcriptFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var transcript core.Transcript
	if err := json.Unmarshal(data, &transcript); err != nil {
		log.Printf("转写缓存损坏 %s: %v", path, err)
		return nil
	}
	return &transcript
}

// SaveTranscript 缓存转写结果到视频目录
func SaveTranscript(videoDir string, transcript *core.Transcript) error {
	if err := utils.EnsureDir(videoDir); err != nil {
		return err
	}
	data, err := json.MarshalIndent(transcript, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal transcript: %v", err)
	}
	return os.WriteFile(filepath.Join(videoDir, transcriptFile), data, 0644)
}

// ExtractAudioClip 抽取指定时段的音频片段，返回wav路径
func ExtractAudioClip(videoPath string, start, end float64) (string, error) {
	videoDir := filepath.Dir(videoPath)
	clipsDir := filepath.Join(videoDir, "audio_clips")
	if err := utils.EnsureDir(clipsDir); err != nil {
		return "", fmt.Errorf("无法创建音频目录: %v", err)
	}

	clipPath := filepath.Join(clipsDir, fmt.Sprintf("clip_%d_%d.wav", int(start*1000), int(end*1000)))
	if utils.FileExists(clipPath) {
		return clipPath, nil
	}

	args := []string{
		"-i", videoPath,
		"-ss", strconv.FormatFloat(start, 'f', 3, 64),
		"-t", strconv.FormatFloat(end-start, 'f', 3, 64),
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", "16000",
		"-ac", "1",
		"-y",
		clipPath,
	}
	if err := utils.RunFFmpeg(args); err != nil {
		return "", err
	}

	info, err := os.Stat(clipPath)
	if err != nil || info.Size() == 0 {
		return "", fmt.Errorf("audio clip extraction produced empty file: %s", clipPath)
	}
	return clipPath, nil
}
