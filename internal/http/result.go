package httpapi

// Fail 错误响应体
func Fail(message string) map[string]any {
	return map[string]any{
		"success": false,
		"error":   message,
	}
}
