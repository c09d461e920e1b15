package main

// Exit codes
const (
	ExitSuccess     = 0 // Success
	ExitError       = 1 // General error (invalid arguments, runtime failure, store unavailable)
	ExitConfigError = 2 // Configuration error (unreadable config file, invalid settings)
	ExitDataError   = 3 // Data error (missing input file, validation failure, unknown id)
	ExitRateLimited = 4 // Request quota exceeded for this IP
)
