// Package publish renders application pages ahead of time and writes them to
// a directory or an S3 bucket.
//
// Each page path maps to a key ending in index.html, so the output can be
// served by any static file server:
//
//	/           index.html
//	/about      about/index.html
//	/items/42   items/42/index.html
package publish
