package types

type RunMode string

const (
	// ModeLocal runs the API server, the capture sweeper and the message
	// router in one process
	ModeLocal RunMode = "local"
	// ModeAPI runs just the API server and the message router
	ModeAPI RunMode = "api"
	// ModeSweeper runs just the deferred-capture sweeper
	ModeSweeper RunMode = "sweeper"
)

type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
)
