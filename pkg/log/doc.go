// Package log provides named per-service loggers backed by zap.
//
// Every line is prefixed with the service marker `[name>]`:
//
//	l := log.ForService("importer/firefox")
//	l.Infof("imported %d visits", n)
//	l.Debugf("row: %v", row) // only when debug is enabled
//
// Debug output can be enabled globally (SetGlobalDebug, wired to the --debug
// flag) or for a single service (EnableDebugFor). SetOutput redirects every
// logger, including those created earlier, which tests use to capture output
// in a bytes.Buffer.
//
// The package name collides with the standard library log package. Alias one
// of them when both are needed.
package log
