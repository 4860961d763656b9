package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"time"
)

// stderr receives ERROR and FATAL lines; swapped in tests.
var stderr io.Writer = os.Stderr

// writeLog renders one line: "[ts] [LEVEL] name: msg | k=v k=v".
// Fields are sorted by key so output is stable.
func (l *Logger) writeLog(level, msg string, fields map[string]interface{}) {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] [%s] %s: %s", GetTimestamp(), level, l.name, msg)

	if len(fields) > 0 {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" |")
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, fields[k])
		}
	}

	if level == levelError || level == levelFatal {
		fmt.Fprintln(stderr, b.String())
		return
	}
	log.Println(b.String())
}

func (l *Logger) logf(level, msg string, args ...interface{}) {
	formatted := msg
	if len(args) > 0 {
		formatted = fmt.Sprintf(msg, args...)
	}
	l.writeLog(level, formatted, l.merge(nil))
}

// GetTimestamp returns the RFC3339 timestamp for a log line, or the value of
// LOG_TIMESTAMP when set.
func GetTimestamp() string {
	if override := os.Getenv("LOG_TIMESTAMP"); override != "" {
		return override
	}
	return time.Now().Format(time.RFC3339)
}
