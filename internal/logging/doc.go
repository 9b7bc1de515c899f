// Package logging provides leveled, printf-style logging for the media server.
//
// The level is read once from the environment: DEBUG=true forces debug output,
// otherwise LOG_LEVEL selects one of debug, info, warn, error (default info).
package logging
