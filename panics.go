package monitoring

import (
	"fmt"
	"runtime"
	"sort"
	"strings"
)

// PanicLogger receives a recovered panic with its trimmed stack.
type PanicLogger func(funcName string, err any, stack []byte, fields ...map[string]any)

// MakePanicHandler returns a function meant to be deferred directly:
//
//	defer recoverPanic("purge", map[string]any{"job": "sessions"})
func MakePanicHandler(logger PanicLogger) func(funcName string, fields ...map[string]any) {
	if logger == nil {
		logger = func(string, any, []byte, ...map[string]any) {}
	}
	return func(funcName string, fields ...map[string]any) {
		if err := recover(); err != nil {
			stack := make([]byte, 8096)
			n := runtime.Stack(stack, false)
			logger(funcName, err, cleanStackTrace(stack[:n]), fields...)
		}
	}
}

// FormatPanic renders a recovered panic as a multi-line report.
func FormatPanic(funcName string, err any, stack []byte, fields ...map[string]any) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "recovered from panic in %s\n", funcName)
	fmt.Fprintf(&sb, "Error: %v (%T)\n", err, err)

	if len(fields) > 0 && len(fields[0]) > 0 {
		sb.WriteString("Context:\n")
		keys := make([]string, 0, len(fields[0]))
		for k := range fields[0] {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&sb, "  %s: %v\n", k, fields[0][k])
		}
	}

	sb.WriteString("Stack Trace:\n")
	sb.Write(stack)
	return sb.String()
}

func cleanStackTrace(stack []byte) []byte {
	lines := strings.Split(string(stack), "\n")

	panicLine := -1
	for i, line := range lines {
		if strings.Contains(line, "panic(") {
			panicLine = i
			break
		}
	}

	// drop the panic() frame and its file reference
	if panicLine >= 0 && panicLine+2 < len(lines) {
		lines = lines[panicLine+2:]
	}

	return []byte(strings.Join(lines, "\n"))
}
