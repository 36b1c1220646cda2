package testutil

import (
	"fmt"
	"net/mail"
	"sync"
	"testing"
	"time"

	"github.com/digitalmadrasa/madrasa/core"
)

// Config returns a configuration for tests, independent of the environment.
func Config(t *testing.T) *core.Config {
	t.Helper()
	return &core.Config{
		Env:             "TEST",
		Build:           "test",
		AppName:         "Digital Madrasa",
		TestMode:        true,
		WorkDir:         core.Getwd(),
		FrontendBaseURL: "https://digitalmadrasa.test",
		TemplateSource:  core.TemplateSourceRemote,
		Server: core.ServerConfig{
			Host:               "localhost",
			Address:            ":0",
			ShutdownTimeout:    time.Second,
			SecretKey:          "test-secret-key",
			JWTExpirationDelta: time.Hour,
			BodyLimit:          "64M",
		},
		Backend: core.BackendConfig{BaseURL: "http://backend.test/api/v1", Timeout: 5 * time.Second},
		Storage: core.StorageConfig{
			UploadBaseURL:    "http://backend.test/api/v1",
			CDNBaseURL:       "https://cdn.test",
			PresignThreshold: 50 * 1024 * 1024,
		},
		Render: core.RenderConfig{
			Width:             400,
			Height:            283,
			ExportScale:       2,
			BestEffortTimeout: 500 * time.Millisecond,
		},
		Email: core.EmailConfig{
			DefaultFrom: mail.Address{Name: "Digital Madrasa", Address: "noreply@digitalmadrasa.test"},
		},
	}
}

type Entry struct {
	Level string
	Msg   string
	Args  []interface{}
}

// Logger records entries; Fatal panics.
type Logger struct {
	mu      sync.Mutex
	Entries []Entry
}

var _ core.Logger = (*Logger)(nil)

func (l *Logger) log(level, msg string, args []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Entries = append(l.Entries, Entry{Level: level, Msg: msg, Args: args})
}

func (l *Logger) Debug(msg string, args ...interface{}) { l.log("debug", msg, args) }
func (l *Logger) Info(msg string, args ...interface{})  { l.log("info", msg, args) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.log("warn", msg, args) }
func (l *Logger) Error(msg string, args ...interface{}) { l.log("error", msg, args) }
func (l *Logger) Fatal(msg string, args ...interface{}) {
	l.log("fatal", msg, args)
	panic(fmt.Sprintf("fatal: %s", msg))
}

// Count returns how many entries were logged at level.
func (l *Logger) Count(level string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	var n int
	for _, e := range l.Entries {
		if e.Level == level {
			n++
		}
	}
	return n
}
