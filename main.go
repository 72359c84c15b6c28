package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"videoModerate/config"
	"videoModerate/processors"
	"videoModerate/tools"
)

func main() {
	videoPath := flag.String("video", "", "待分析视频文件路径")
	videoID := flag.String("video-id", "", "视频ID (默认取文件名)")
	flag.Parse()

	if *videoPath == "" {
		fmt.Println("Usage: videoModerate -video <path> [-video-id <id>]")
		flag.PrintDefaults()
		os.Exit(1)
	}
	if _, err := os.Stat(*videoPath); err != nil {
		log.Fatalf("视频文件不存在: %s", *videoPath)
	}

	id := *videoID
	if id == "" {
		base := filepath.Base(*videoPath)
		id = strings.TrimSuffix(base, filepath.Ext(base))
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Printf("配置无效: %v", err)
		config.PrintConfigInstructions()
		os.Exit(1)
	}

	pipeline, err := processors.NewPipeline(cfg)
	if err != nil {
		log.Fatalf("初始化流水线失败: %v", err)
	}
	defer pipeline.Close()
	defer tools.CloseAllEmbedders()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	report, err := pipeline.AnalyzeVideo(ctx, id, *videoPath)
	if err != nil {
		log.Fatalf("视频分析失败: %v", err)
	}

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		log.Fatalf("序列化报告失败: %v", err)
	}
	fmt.Println(string(out))
}
