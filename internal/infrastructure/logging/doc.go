// Package logging builds devicehub's structured logger on log/slog.
//
// Every entry carries service=devicehub and the build version. Format is
// json or text, level is debug, info, warn or error, and output is stdout
// or stderr, all from the logging section of the config file.
//
// Attributes named password, token, ticket, authorization and the like
// are replaced with [REDACTED] before they are written.
package logging
