package media

// Export internal functions for testing.
// This file is only compiled during tests (suffix _test.go).

// ParseDuration exports parseDuration for testing.
var ParseDuration = parseDuration
