package commands

import (
	"log"
	"os"
	"path/filepath"
	"strings"
)

// initRunLog truncates and reopens the store's prek.log for this run; every
// invocation starts a fresh log. The returned logger is best-effort: a nil
// logger is returned when the file can't be opened.
func initRunLog(storeRoot string) *log.Logger {
	path := filepath.Join(storeRoot, "prek.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600) // #nosec G304 -- store-internal path
	if err != nil {
		return nil
	}
	logger := log.New(f, "", log.LstdFlags)
	logger.Printf("prek %s: %s", Version, strings.Join(os.Args[1:], " "))
	return logger
}

// logf writes to the run log when one is open.
func logf(logger *log.Logger, format string, args ...any) {
	if logger != nil {
		logger.Printf(format, args...)
	}
}
