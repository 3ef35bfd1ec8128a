package textutil

import (
	"regexp"
	"strings"
)

// whitespace, dashes, quotes and the hebrew geresh/gershayim
var separatorRegex = regexp.MustCompile(`[\s\-_'"` + "`" + `׳״.,()]+`)

// NormalizeName lowercases name and strips the separators and quote marks that
// place names are inconsistently written with, so that "Tel Aviv-Yafo" and
// "tel aviv yafo" normalize the same.
func NormalizeName(name string) string {
	name = strings.ToLower(name)
	return separatorRegex.ReplaceAllString(name, "")
}
