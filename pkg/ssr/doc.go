// Package ssr renders spindle applications on the server.
//
// A headless Driver replays document commands into a Tree instead of a
// browser. Once the application has gone idle (every fetch it started has
// come back) the tree is serialized to HTML. Fetches made during a render are
// de-duplicated and may be served from a FetchCache shared across renders.
package ssr
