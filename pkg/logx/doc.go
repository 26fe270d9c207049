// Package logx provides structured logging for the bot.
//
// It wraps zerolog behind a small Field-based API so callers do not
// depend on zerolog directly. The Service supports live reconfiguration
// of level and sinks (console, file) without invalidating loggers that
// were handed out earlier.
package logx
