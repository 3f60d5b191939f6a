package errors

import "sort"

// Template defines a registered error type.
type Template struct {
	Category Category
	Message  string
	Detail   string
	Status   int
}

// registry maps error codes to their templates.
var registry = map[string]Template{
	// ============================================
	// Config Errors (E100-E199)
	// ============================================

	"E100": {
		Category: CategoryConfig,
		Message:  "Cannot read configuration file",
		Detail:   "spindle.toml could not be opened or is not valid TOML.",
		Status:   500,
	},
	"E101": {
		Category: CategoryConfig,
		Message:  "Invalid configuration value",
		Detail:   "A value in spindle.toml or the environment is out of range.",
		Status:   500,
	},
	"E102": {
		Category: CategoryConfig,
		Message:  "Unknown cache backend",
		Detail:   "cache.backend must be \"memory\" or \"redis\".",
		Status:   500,
	},
	"E103": {
		Category: CategoryConfig,
		Message:  "Unknown configuration key",
		Detail:   "spindle.toml contains a key that is not recognised.",
		Status:   500,
	},

	// ============================================
	// Document Errors (E200-E299)
	// ============================================

	"E200": {
		Category: CategoryDocument,
		Message:  "Page not found",
		Detail:   "No application page matches the requested path.",
		Status:   404,
	},
	"E201": {
		Category: CategoryDocument,
		Message:  "Render failed",
		Detail:   "The application panicked or returned no root node while mounting.",
		Status:   500,
	},
	"E202": {
		Category: CategoryDocument,
		Message:  "Document shell incomplete",
		Detail:   "A full document needs <html>, <head> and <body> elements.",
		Status:   500,
	},
	"E203": {
		Category: CategoryDocument,
		Message:  "Invalid request path",
		Detail:   "The path contains a backslash, a NUL byte, a malformed escape or climbs above the root.",
		Status:   400,
	},

	// ============================================
	// Fetch Errors (E300-E399)
	// ============================================

	"E300": {
		Category: CategoryFetch,
		Message:  "Fetch failed",
		Detail:   "A request made on behalf of the application did not complete.",
		Status:   502,
	},
	"E301": {
		Category: CategoryFetch,
		Message:  "Fetch cache unavailable",
		Detail:   "The shared fetch cache could not be reached. Requests are still performed.",
		Status:   500,
	},

	// ============================================
	// Protocol Errors (E400-E499)
	// ============================================

	"E400": {
		Category: CategoryProtocol,
		Message:  "Invalid frame",
		Detail:   "A live session received a frame it could not decode.",
		Status:   400,
	},
	"E401": {
		Category: CategoryProtocol,
		Message:  "Handshake rejected",
		Detail:   "The browser speaks an incompatible protocol version or the server is at capacity.",
		Status:   400,
	},

	// ============================================
	// Publish Errors (E500-E599)
	// ============================================

	"E500": {
		Category: CategoryPublish,
		Message:  "Publish failed",
		Detail:   "A rendered page could not be written to the publish target.",
		Status:   500,
	},
	"E501": {
		Category: CategoryPublish,
		Message:  "No publish target",
		Detail:   "Set publish.dir or publish.bucket, or pass --out.",
		Status:   500,
	},
}

// Lookup returns the template registered under code.
func Lookup(code string) (Template, bool) {
	t, ok := registry[code]
	return t, ok
}

// Codes returns every registered code in order.
func Codes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
