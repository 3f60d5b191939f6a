package dom

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// CssClassPrefix starts every generated class name.
const CssClassPrefix = "autocss_"

// CssClass returns the class name generated for a rule body. Equal bodies
// always map to the same class, so each distinct rule is inserted once.
func CssClass(body string) string {
	return CssClassPrefix + strconv.FormatUint(xxhash.Sum64String(body), 36)
}
