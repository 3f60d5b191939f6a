// Package server serves spindle applications over HTTP.
//
// A Server mounts one application twice: every GET request is rendered to
// HTML on the server, and the live endpoint upgrades to a websocket where
// the same application runs against the browser's document.
//
// # Routes
//
//	GET /healthz         liveness and the number of open sessions
//	GET /metrics         Prometheus metrics, when metrics are enabled
//	GET /_spindle/ws     live sessions (Config.WSPath)
//	GET /*               server-side rendered pages
//
// Request paths are cleaned before rendering. A path that changes when
// cleaned is answered with a permanent redirect to the canonical form, and
// an application that navigates while rendering produces a temporary
// redirect to where it ended up.
//
// # Usage
//
//	srv := server.New(demo.Mount, server.DefaultConfig(),
//	    server.WithMetrics(m, registry),
//	)
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package server
