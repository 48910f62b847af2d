package common

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// GenerateUUID 生成 UUID
func GenerateUUID() string {
	return uuid.New().String()
}

// 使用者輸入的數字只取開頭的數值部分，例如 "2 cups" -> 2
var (
	leadingFloatPattern = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)
	leadingIntPattern   = regexp.MustCompile(`^[+-]?\d+`)
)

// ParseLeadingFloat 解析字串開頭的浮點數，找不到數值時 ok 為 false
func ParseLeadingFloat(s string) (float64, bool) {
	m := leadingFloatPattern.FindString(strings.TrimSpace(s))
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ParseLeadingInt 解析字串開頭的整數（"400.7" -> 400）
func ParseLeadingInt(s string) (int, bool) {
	m := leadingIntPattern.FindString(strings.TrimSpace(s))
	if m == "" {
		return 0, false
	}
	v, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return v, true
}

// FloatOr 解析失敗時回傳預設值
func FloatOr(s string, fallback float64) float64 {
	if v, ok := ParseLeadingFloat(s); ok {
		return v
	}
	return fallback
}
