// Package config loads spindle.toml.
//
// A missing file is not an error: every field has a default, and the
// SPINDLE_ADDR and SPINDLE_REDIS_ADDR environment variables override the
// file.
//
// # File Structure
//
//	[server]
//	addr = ":8080"
//	read_timeout = "15s"
//	write_timeout = "15s"
//	ws_path = "/_spindle/ws"
//	client_script = "/_spindle/client.js"
//
//	[render]
//	pretty = false
//	fetch_timeout = "5s"
//
//	[render.env]
//	api = "https://api.example.com"
//
//	[cache]
//	backend = "redis"
//	redis_addr = "localhost:6379"
//	ttl = "30s"
//
//	[publish]
//	bucket = "my-site"
//	prefix = "pages/"
//	region = "eu-west-1"
//
//	[log]
//	level = "info"
package config
