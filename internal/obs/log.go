package obs

import (
	"encoding/json"
	"log"
	"os"
	"sync"
)

var (
	loggerOnce sync.Once
	logger     *log.Logger

	alarmOnce sync.Once
	alarm     *log.Logger
)

// Logger returns the shared structured logger used across the service.
// Lines are emitted as single JSON objects with no prefix.
func Logger() *log.Logger {
	loggerOnce.Do(func() {
		logger = log.New(os.Stdout, "", 0)
	})
	return logger
}

// Alarm returns the out-of-band logger used when the audit log itself is
// unavailable. It writes to stderr so the condition stays visible even if
// the normal log pipeline shares the audit log's fate.
func Alarm() *log.Logger {
	alarmOnce.Do(func() {
		alarm = log.New(os.Stderr, "", 0)
	})
	return alarm
}

// LogRequest emits a structured JSON log line with common HTTP fields.
func LogRequest(entry map[string]any) {
	data, err := json.Marshal(entry)
	if err != nil {
		Logger().Println(`{"ts":"error","level":"error","msg":"log marshal failed"}`)
		return
	}
	Logger().Println(string(data))
}
