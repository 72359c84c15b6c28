package processors

import (
	"log"
	"regexp"
	"sort"
	"strings"

	"videoModerate/core"
)

var sentenceSplitRe = regexp.MustCompile(`[^.!?。！？]+[.!?。！？]*\s*`)

// SplitSentences 基于标点的分句。语料里没有更合适的分句库，正则足够覆盖审核文本
func SplitSentences(text string) []string {
	matches := sentenceSplitRe.FindAllString(text, -1)
	sentences := make([]string, 0, len(matches))
	for _, m := range matches {
		m = strings.TrimSpace(m)
		if m != "" {
			sentences = append(sentences, m)
		}
	}
	return sentences
}

const wordPunctCutset = `.,!?;:"()[]{}`

// BuildTranscriptSegments 将转写结果整理为有序分段。
// utterances 优先；没有时用全文加词级时间戳定位句子区间。
func BuildTranscriptSegments(utterances []core.Segment, fullText string, words []core.WordStamp, minChars int) []core.Segment {
	log.Printf("Building transcript segments")

	if len(utterances) > 0 {
		return segmentsFromUtterances(utterances, minChars)
	}
	if fullText != "" && len(words) > 0 {
		return segmentsFromFullText(fullText, words, minChars)
	}
	log.Printf("No valid transcript input provided")
	return nil
}

func segmentsFromUtterances(utterances []core.Segment, minChars int) []core.Segment {
	log.Printf("Processing %d utterance segments", len(utterances))
	var result []core.Segment

	for _, seg := range utterances {
		text := strings.TrimSpace(seg.Text)
		if len(text) < minChars {
			continue
		}

		start := seg.Start
		end := seg.End
		duration := end - start

		// 长度适中的直接保留，过长的按句子切分
		if len([]rune(text)) <= 200 || duration <= 10.0 {
			result = append(result, core.Segment{Start: start, End: end, Text: text})
			continue
		}

		sentences := SplitSentences(text)
		if len(sentences) <= 1 {
			result = append(result, core.Segment{Start: start, End: end, Text: text})
			continue
		}

		// 按字符数比例分配时间
		timePerChar := 0.0
		if len(text) > 0 {
			timePerChar = duration / float64(len(text))
		}
		currentTime := start
		for _, sentence := range sentences {
			if currentTime >= end {
				break
			}
			trimmed := strings.TrimSpace(sentence)
			if len(trimmed) < minChars {
				continue
			}
			sentenceDuration := float64(len(sentence)) * timePerChar
			if sentenceDuration < 1.0 {
				sentenceDuration = 1.0
			}
			sentenceEnd := currentTime + sentenceDuration
			if sentenceEnd > end {
				sentenceEnd = end
			}
			if sentenceEnd > currentTime {
				result = append(result, core.Segment{Start: currentTime, End: sentenceEnd, Text: trimmed})
			}
			currentTime = sentenceEnd
		}
	}

	filtered := result[:0]
	for _, seg := range result {
		if seg.End > seg.Start {
			filtered = append(filtered, seg)
		}
	}
	result = filtered

	sort.Slice(result, func(i, j int) bool { return result[i].Start < result[j].Start })
	log.Printf("Built %d transcript segments from utterances", len(result))
	return result
}

func segmentsFromFullText(fullText string, words []core.WordStamp, minChars int) []core.Segment {
	log.Printf("Processing full text with %d word timestamps", len(words))

	sentences := SplitSentences(fullText)
	var result []core.Segment

	// 词到时间的映射，同一个词可能出现多次
	wordTimeMap := make(map[string][]float64)
	for _, w := range words {
		clean := strings.Trim(strings.ToLower(w.Word), wordPunctCutset)
		if clean == "" {
			continue
		}
		wordTimeMap[clean] = append(wordTimeMap[clean], w.Time)
	}

	fullTextLower := strings.ToLower(fullText)
	charPos := 0

	for _, sentence := range sentences {
		if len(strings.TrimSpace(sentence)) < minChars {
			continue
		}

		// 单调游标定位句子在全文中的位置
		idx := strings.Index(fullTextLower[charPos:], strings.ToLower(sentence))
		if idx == -1 {
			continue
		}
		charPos += idx + len(sentence)

		var sentenceWords []string
		for _, w := range strings.Fields(strings.ToLower(sentence)) {
			clean := strings.Trim(w, wordPunctCutset)
			if clean != "" {
				sentenceWords = append(sentenceWords, clean)
			}
		}
		if len(sentenceWords) == 0 {
			continue
		}

		startTime, startOK := firstWordTime(sentenceWords, wordTimeMap)
		endTime, endOK := lastWordTime(sentenceWords, wordTimeMap)
		if startOK && endOK && endTime > startTime {
			result = append(result, core.Segment{Start: startTime, End: endTime, Text: strings.TrimSpace(sentence)})
		}
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Start < result[j].Start })
	log.Printf("Built %d transcript segments from full text", len(result))
	return result
}

func firstWordTime(sentenceWords []string, wordTimeMap map[string][]float64) (float64, bool) {
	for _, word := range sentenceWords {
		times := wordTimeMap[word]
		if len(times) == 0 {
			continue
		}
		minTime := times[0]
		for _, t := range times[1:] {
			if t < minTime {
				minTime = t
			}
		}
		return minTime, true
	}
	return 0, false
}

func lastWordTime(sentenceWords []string, wordTimeMap map[string][]float64) (float64, bool) {
	for i := len(sentenceWords) - 1; i >= 0; i-- {
		times := wordTimeMap[sentenceWords[i]]
		if len(times) == 0 {
			continue
		}
		maxTime := times[0]
		for _, t := range times[1:] {
			if t > maxTime {
				maxTime = t
			}
		}
		// 末词加上估计时长
		return maxTime + 1.0, true
	}
	return 0, false
}

// SegmentTranscript 按词级时间戳截取某段时间内的文本，无时间戳时按比例近似
func SegmentTranscript(fullText string, words []core.WordStamp, start, end float64) string {
	var segmentText string
	if len(words) == 0 {
		if fullText == "" {
			log.Printf("No transcript available for segment [%.1fs-%.1fs]", start, end)
			return ""
		}
		// 粗略按时间比例截取，假设视频不超过5分钟
		log.Printf("Using approximate proportional slicing for segment [%.1fs-%.1fs] - word timestamps unavailable", start, end)
		durationRatio := (end - start) / 300.0
		if durationRatio > 1.0 {
			durationRatio = 1.0
		}
		runes := []rune(fullText)
		textLen := len(runes)
		startChar := int(start / 300.0 * float64(textLen))
		endChar := startChar + int(durationRatio*float64(textLen))
		if startChar > textLen {
			startChar = textLen
		}
		if endChar > textLen {
			endChar = textLen
		}
		segmentText = string(runes[startChar:endChar])
	} else {
		var segmentWords []string
		for _, w := range words {
			if w.Time >= start && w.Time <= end {
				segmentWords = append(segmentWords, w.Word)
			}
		}
		segmentText = strings.Join(segmentWords, " ")
	}

	if runes := []rune(segmentText); len(runes) > 1000 {
		segmentText = string(runes[:1000]) + "..."
	}
	return segmentText
}
