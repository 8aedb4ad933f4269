package logger

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
)

// Logger writes category-tagged lines to stdout with colored levels and,
// when LOG_FILE is set, mirrors them uncolored into a log file.
type Logger struct {
	mu      sync.Mutex
	file    *os.File
	debugOn bool
}

var (
	infoColor  = color.New(color.FgGreen)
	warnColor  = color.New(color.FgYellow)
	errorColor = color.New(color.FgRed)
	debugColor = color.New(color.FgCyan)
	fatalColor = color.New(color.FgRed, color.Bold)
)

func NewLogger() *Logger {
	l := &Logger{
		debugOn: os.Getenv("LOG_DEBUG") == "true",
	}

	if path := os.Getenv("LOG_FILE"); path != "" {
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err == nil {
			l.file = f
		}
	}

	return l
}

func (l *Logger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
}

func (l *Logger) write(level string, c *color.Color, category, message string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ts := time.Now().Format("2006-01-02 15:04:05.000")
	c.Printf("[%s] %-5s [%s] %s\n", ts, level, category, message)

	if l.file != nil {
		fmt.Fprintf(l.file, "[%s] %-5s [%s] %s\n", ts, level, category, message)
	}
}

func (l *Logger) Info(category, message string) {
	l.write("INFO", infoColor, category, message)
}

func (l *Logger) Warn(category, message string) {
	l.write("WARN", warnColor, category, message)
}

func (l *Logger) Error(category, message string) {
	l.write("ERROR", errorColor, category, message)
}

func (l *Logger) Debug(category, message string) {
	if !l.debugOn {
		return
	}
	l.write("DEBUG", debugColor, category, message)
}

func (l *Logger) Fatal(category, message string) {
	l.write("FATAL", fatalColor, category, message)
	l.Close()
	os.Exit(1)
}

// Domain-specific helpers keep call sites short and the tags consistent.

func (l *Logger) LogProcess(stage, message string) {
	l.Info(stage, message)
}

func (l *Logger) LogAPI(method, path, status, duration string) {
	l.Info("API", fmt.Sprintf("%s %s - %s (%s)", method, path, status, duration))
}

func (l *Logger) LogDatabase(operation, table, message string) {
	l.Debug("DATABASE", fmt.Sprintf("[%s:%s] %s", operation, table, message))
}

func (l *Logger) LogKafka(operation, topic, message string) {
	l.Info("KAFKA", fmt.Sprintf("[%s:%s] %s", operation, topic, message))
}

func (l *Logger) LogRegistration(operation, registrationID, message string) {
	l.Info("REGISTRATION", fmt.Sprintf("[%s:%s] %s", operation, registrationID, message))
}

func (l *Logger) LogPayment(operation, paymentID, message string) {
	l.Info("PAYMENT", fmt.Sprintf("[%s:%s] %s", operation, paymentID, message))
}

func (l *Logger) LogSecurity(event, message string) {
	l.Warn("SECURITY", fmt.Sprintf("[%s] %s", event, message))
}
