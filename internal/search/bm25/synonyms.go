package bm25

import "sort"

// thesaurus is a small, static, bidirectional synonym table for
// programming/documentation vocabulary, per spec §4.3. Each direction is its
// own map entry and ExpandQueryTerms looks terms up directly, so a few
// entries (such as "cli" and "api") expand one way only.
var thesaurus = map[string][]string{
	"config":        {"configuration", "settings"},
	"configuration": {"config", "settings"},
	"settings":      {"config", "configuration"},
	"auth":          {"authentication", "authorization"},
	"authentication": {"auth", "login"},
	"authorization":  {"auth", "permissions"},
	"login":          {"authentication", "signin"},
	"signin":         {"login"},
	"func":           {"function", "method"},
	"function":       {"func", "method"},
	"method":         {"function", "func"},
	"err":            {"error", "exception"},
	"error":          {"err", "exception"},
	"exception":      {"error", "err"},
	"dir":            {"directory", "folder"},
	"directory":      {"dir", "folder"},
	"folder":         {"directory", "dir"},
	"doc":            {"document", "documentation"},
	"docs":           {"documentation"},
	"documentation":  {"docs", "doc"},
	"param":          {"parameter", "argument"},
	"parameter":      {"param", "argument"},
	"arg":            {"argument", "param"},
	"argument":       {"arg", "parameter"},
	"env":            {"environment"},
	"environment":    {"env"},
	"repo":           {"repository"},
	"repository":     {"repo"},
	"db":             {"database"},
	"database":       {"db"},
	"lib":            {"library", "package"},
	"library":        {"lib", "package"},
	"package":        {"library", "module"},
	"init":           {"initialize", "setup"},
	"initialize":     {"init", "setup"},
	"setup":          {"init", "configure"},
	"config file":    {"configuration file"},
	"cli":            {"command line", "terminal"},
	"api":            {"interface", "endpoint"},
	"var":            {"variable"},
	"variable":       {"var"},
	"const":          {"constant"},
	"constant":       {"const"},
	"impl":           {"implementation"},
	"implementation": {"impl"},
}

// ExpandQueryTerms returns the deterministic, deduplicated union of
// thesaurus synonyms for every term in terms.
func ExpandQueryTerms(terms []string) []string {
	seen := map[string]struct{}{}
	var expanded []string
	for _, term := range terms {
		for _, syn := range thesaurus[term] {
			if _, ok := seen[syn]; ok {
				continue
			}
			seen[syn] = struct{}{}
			expanded = append(expanded, syn)
		}
	}
	sort.Strings(expanded)
	return expanded
}
