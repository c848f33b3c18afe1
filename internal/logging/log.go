// Package logging wraps pterm with a site-id-aware prefix and a run id,
// the way 1ureka-roj1/internal/util/log.go wraps pterm's leveled printers
// with a package-level init() configuring pterm.DefaultLogger.
package logging

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/pterm/pterm"
)

func init() {
	pterm.DefaultLogger.ShowTime = true
	pterm.DefaultLogger.TimeFormat = "02 Jan 2006 15:04:05"
}

// RunID identifies this process for the lifetime of the run, so an
// operator correlating logs across several sites in one deployment can tell
// which lines came from which process — stamped once at package init, the
// way jingkaihe-matchlock/pkg/api/config.go stamps a uuid onto Config.ID.
var RunID = uuid.New().String()[:8]

// Logger prefixes every line with the local site id and the run id.
type Logger struct {
	siteID string
}

// New returns a Logger prefixed with siteID.
func New(siteID uint32) *Logger {
	return &Logger{siteID: fmt.Sprintf("site-%d", siteID)}
}

func (l *Logger) prefix(format string) string {
	return fmt.Sprintf("[%s/%s] %s", l.siteID, RunID, format)
}

func (l *Logger) Debug(format string, args ...interface{}) {
	pterm.Debug.Printfln(l.prefix(format), args...)
}

func (l *Logger) Info(format string, args ...interface{}) {
	pterm.Info.Printfln(l.prefix(format), args...)
}

func (l *Logger) Success(format string, args ...interface{}) {
	pterm.Success.Printfln(l.prefix(format), args...)
}

func (l *Logger) Warning(format string, args ...interface{}) {
	pterm.Warning.Printfln(l.prefix(format), args...)
}

func (l *Logger) Error(format string, args ...interface{}) {
	pterm.Error.Printfln(l.prefix(format), args...)
}

// EnableDebug configures the logger to show debug messages, matching
// 1ureka-roj1/internal/util/log.go's EnableDebug.
func EnableDebug() {
	pterm.DefaultLogger.Level = pterm.LogLevelDebug
	pterm.EnableDebugMessages()
}
