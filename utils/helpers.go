package utils

import (
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// NewID 生成唯一ID
func NewID() string {
	// 使用时间戳和随机数生成唯一ID
	timestamp := time.Now().UnixNano()
	randomBytes := make([]byte, 4)
	rand.Read(randomBytes)
	randomHex := fmt.Sprintf("%x", randomBytes)
	return fmt.Sprintf("%d_%s", timestamp, randomHex)
}

// CopyFile 复制文件
func CopyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("无法打开源文件 %s: %v", src, err)
	}
	defer sourceFile.Close()

	dstDir := filepath.Dir(dst)
	if err := os.MkdirAll(dstDir, 0755); err != nil {
		return fmt.Errorf("无法创建目标目录: %v", err)
	}

	destFile, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("无法创建目标文件 %s: %v", dst, err)
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return fmt.Errorf("复制文件内容失败: %v", err)
	}
	return nil
}

// FFmpegBinary 返回ffmpeg可执行文件路径
func FFmpegBinary() string {
	if bin := os.Getenv("FFMPEG_BINARY"); bin != "" {
		return bin
	}
	return "ffmpeg"
}

// RunFFmpeg 执行FFmpeg命令
func RunFFmpeg(args []string) error {
	cmd := exec.Command(FFmpegBinary(), args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		// 只保留末尾输出，FFmpeg的banner没有诊断价值
		msg := string(output)
		if len(msg) > 512 {
			msg = msg[len(msg)-512:]
		}
		return fmt.Errorf("ffmpeg failed: %v: %s", err, strings.TrimSpace(msg))
	}
	return nil
}

// RunCommand 执行外部命令并返回输出
func RunCommand(name string, args ...string) (string, error) {
	cmd := exec.Command(name, args...)
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("command %s failed: %v", name, err)
	}
	return string(output), nil
}

// EnsureDir 确保目录存在
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0755)
}

// FileExists 检查文件是否存在
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// FormatTimestamp 将秒数格式化为 HH:MM:SS.mmm
func FormatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	hours := int(seconds) / 3600
	minutes := (int(seconds) % 3600) / 60
	secs := seconds - float64(hours*3600+minutes*60)
	return fmt.Sprintf("%02d:%02d:%06.3f", hours, minutes, secs)
}

// Clamp01 将值限制在[0,1]范围内
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
