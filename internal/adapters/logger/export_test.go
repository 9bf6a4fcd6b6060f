package logger

// FormatError exports formatError for white-box testing.
var FormatError = formatError
