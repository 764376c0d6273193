// Package logging configures slog for contentidx. Records are written as
// JSON to a size-rotated file under ~/.contentidx/logs/ and, when asked,
// to stderr. The --debug flag lowers the level to debug.
package logging
