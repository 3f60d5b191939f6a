// Package errors provides structured, actionable errors for the spindle
// server and CLI.
//
// Each error carries a code from the registry that maps to a category, a
// short message and a longer explanation:
//
//	E1xx  config     loading and validating spindle.toml
//	E2xx  document   mounting and rendering applications
//	E3xx  fetch      requests made on behalf of applications
//	E4xx  protocol   live session wire errors
//	E5xx  publish    writing rendered pages to a target
//
// # Usage
//
//	err := errors.New("E101").
//	    WithDetail(`server.addr "localhost" has no port`).
//	    WithSuggestion(`Use host:port, for example ":8080"`)
//
//	errors.PrintError(err)
//	// ERROR E101: Invalid configuration value
//	//
//	//   server.addr "localhost" has no port
//	//
//	//   Hint: Use host:port, for example ":8080"
//
// The server renders the same errors as HTML pages with WriteHTML.
package errors
