package app

// StopReason labels why the app is shutting down; it shows up in the final
// log lines and nowhere else.
type StopReason string

const (
	StopSignal     StopReason = "signal"
	StopFatalError StopReason = "fatal_error"
)
