package jsonutil

import (
	"strings"

	"github.com/tidwall/gjson"
)

// 从模型的自由文本输出中剥出 JSON：优先代码块围栏，其次裸对象/数组。
// 剥出的片段必须通过 gjson 校验才算命中，括号配平但语法烂掉的不放行。
// 分类器与各 Worker 的叙述合成都依赖这里，模型输出不保证干净。

const codeFence = "```"

func ExtractJSON(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if block, ok := extractFromFence(raw); ok && gjson.Valid(block) {
		return block, true
	}
	if obj, ok := extractDelimited(raw, '{', '}'); ok && gjson.Valid(obj) {
		return obj, true
	}
	if arr, ok := extractDelimited(raw, '[', ']'); ok && gjson.Valid(arr) {
		return arr, true
	}
	return "", false
}

func extractFromFence(raw string) (string, bool) {
	start := strings.Index(raw, codeFence)
	if start == -1 {
		return "", false
	}
	rest := raw[start+len(codeFence):]
	end := strings.Index(rest, codeFence)
	if end == -1 {
		return "", false
	}
	block := strings.TrimLeft(rest[:end], "\r\n")
	// 去掉围栏语言标注行（```json）
	if idx := strings.Index(block, "\n"); idx != -1 {
		first := strings.TrimSpace(block[:idx])
		if first != "" && !strings.ContainsAny(first, "[{") {
			block = block[idx+1:]
		}
	}
	block = strings.TrimSpace(block)
	if block == "" {
		return "", false
	}
	if obj, ok := extractDelimited(block, '{', '}'); ok {
		return obj, true
	}
	if arr, ok := extractDelimited(block, '[', ']'); ok {
		return arr, true
	}
	return block, true
}

func extractDelimited(raw string, open, close byte) (string, bool) {
	start := strings.IndexByte(raw, open)
	if start == -1 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		c := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return raw[start : i+1], true
			}
		}
	}
	return "", false
}
