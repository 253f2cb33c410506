// =============================================================================
// 🧪 测试辅助函数
// =============================================================================
// 提供通用的测试辅助函数和断言
//
// 使用方法:
//
//	testutil.AssertRecordsAligned(t, records, 3, "price", 2)
//	testutil.AssertEventuallyTrue(t, func() bool { return condition }, 5*time.Second)
// =============================================================================
package testutil

import (
	"context"
	"encoding/json"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/BaSui01/pageflow/browser"
)

// =============================================================================
// 🎯 上下文辅助
// =============================================================================

// TestContext 返回带超时的测试上下文
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// TestContextWithTimeout 返回带自定义超时的测试上下文
func TestContextWithTimeout(t *testing.T, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}

// CancelledContext 返回已取消的上下文
func CancelledContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

// =============================================================================
// 🔍 断言辅助
// =============================================================================

// AssertJSONEqual 断言两个值的 JSON 表示相等
func AssertJSONEqual(t *testing.T, expected, actual any) {
	t.Helper()

	expectedJSON, err := json.Marshal(expected)
	if err != nil {
		t.Fatalf("failed to marshal expected: %v", err)
	}

	actualJSON, err := json.Marshal(actual)
	if err != nil {
		t.Fatalf("failed to marshal actual: %v", err)
	}

	if string(expectedJSON) != string(actualJSON) {
		t.Errorf("JSON mismatch:\nexpected: %s\nactual: %s", expectedJSON, actualJSON)
	}
}

// AssertRecordsAligned 断言记录数为 n，且 field 仅前 m 条非空，其余为空字符串
func AssertRecordsAligned(t *testing.T, records []browser.Record, n int, field string, m int) {
	t.Helper()

	if len(records) != n {
		t.Errorf("record count mismatch: expected %d, got %d", n, len(records))
		return
	}
	for i, rec := range records {
		v, ok := rec[field]
		if !ok {
			t.Errorf("record[%d] missing field %q", i, field)
			continue
		}
		if i < m && v == "" {
			t.Errorf("record[%d].%s: expected a value, got empty", i, field)
		}
		if i >= m && v != "" {
			t.Errorf("record[%d].%s: expected empty padding, got %q", i, field, v)
		}
	}
}

// AssertLogOrder 断言执行日志的每一条以对应前缀开头
func AssertLogOrder(t *testing.T, log []string, prefixes ...string) {
	t.Helper()

	if len(log) != len(prefixes) {
		t.Errorf("log length mismatch: expected %d, got %d (%q)", len(prefixes), len(log), log)
		return
	}
	for i := range prefixes {
		if !strings.HasPrefix(log[i], prefixes[i]) {
			t.Errorf("log[%d]: expected prefix %q, got %q", i, prefixes[i], log[i])
		}
	}
}

// AssertEventuallyTrue 断言条件最终为真
func AssertEventuallyTrue(t *testing.T, condition func() bool, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Errorf("condition did not become true within %v", timeout)
}

// AssertEventuallyEqual 断言值最终相等
func AssertEventuallyEqual(t *testing.T, expected any, getter func() any, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	var lastValue any

	for time.Now().Before(deadline) {
		lastValue = getter()
		if reflect.DeepEqual(expected, lastValue) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Errorf("value did not become %v within %v, last value: %v", expected, timeout, lastValue)
}

// =============================================================================
// 🔧 测试数据辅助
// =============================================================================

// MustJSON 将值转换为 JSON 字符串，失败时 panic
func MustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(data)
}

// MustParseJSON 解析 JSON 字符串，失败时 panic
func MustParseJSON[T any](s string) T {
	var v T
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		panic(err)
	}
	return v
}

// TempArtifactDir 返回测试结束后自动删除的截图目录
func TempArtifactDir(t *testing.T) string {
	t.Helper()
	return t.TempDir()
}
