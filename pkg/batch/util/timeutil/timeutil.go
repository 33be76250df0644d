// Package timeutil はタイムスタンプ文字列の柔軟な解析と、成果物で使う固定書式への整形を提供します。
package timeutil

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Layout は成果物に書き出すタイムスタンプの書式です。
const Layout = "2006-01-02 15:04:05"

// Parse は value を loc のタイムスタンプとして解析します。
// 空文字列や解析できない値の場合は nil を返します。呼び出し側はこれを欠損として扱います。
func Parse(value string, loc *time.Location) *time.Time {
	v := strings.TrimSpace(value)
	if v == "" || v == "NaN" || v == "NaT" {
		return nil
	}
	if loc == nil {
		loc = time.UTC
	}
	t, err := dateparse.ParseIn(v, loc)
	if err != nil {
		return nil
	}
	return &t
}

// Format は t を Layout で整形します。nil の場合は空文字列を返します。
func Format(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(Layout)
}
