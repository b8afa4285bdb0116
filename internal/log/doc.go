// Package log contains the Logger used by the entire application. The Logger is a wrapper around zap.SugaredLogger.
// Entries go to stdout and to a lumberjack-rotated file so a long running server does not grow one unbounded log.
// There should be a single instance of the Logger in the application, and it should be injected into any structs that need to log.
package log
