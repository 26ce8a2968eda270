package scipindex

import (
	"regexp"
	"strings"
)

// compileRegex compiles a case-insensitive regular expression for
// /regex/ find_symbols patterns.
func compileRegex(expr string) (*regexp.Regexp, error) {
	return regexp.Compile("(?i)" + expr)
}

// compileGlob translates a `*` glob into an anchored, case-insensitive
// regular expression. `*` matches any run of characters; everything
// else is treated literally.
func compileGlob(glob string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("(?i)^")
	for _, r := range glob {
		if r == '*' {
			b.WriteString(".*")
		} else {
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}
