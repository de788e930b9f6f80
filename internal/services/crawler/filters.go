package crawler

import (
	"regexp"
	"strings"

	"github.com/ternarybob/arbor"
)

// FilterResult contains filtering outcome and metadata.
type FilterResult struct {
	ShouldEnqueue bool
	Reason        string
	ExcludedBy    string
}

// LinkFilter applies a tenant's URL whitelist/blacklist prefixes plus
// optional regex include/exclude patterns, per spec §4.5/§4.6
// should_process_url / should_enqueue_url.
type LinkFilter struct {
	whitelistPrefixes []string
	blacklistPrefixes []string
	includeRegexes    []*regexp.Regexp
	excludeRegexes    []*regexp.Regexp
	logger            arbor.ILogger
}

// NewLinkFilter compiles a tenant's prefix and pattern filters.
func NewLinkFilter(whitelistPrefixes, blacklistPrefixes, includePatterns, excludePatterns []string, logger arbor.ILogger) *LinkFilter {
	filter := &LinkFilter{
		whitelistPrefixes: whitelistPrefixes,
		blacklistPrefixes: blacklistPrefixes,
		logger:            logger,
	}

	for _, pattern := range includePatterns {
		if re, err := regexp.Compile(pattern); err == nil {
			filter.includeRegexes = append(filter.includeRegexes, re)
		} else if logger != nil {
			logger.Warn().Err(err).Str("pattern", pattern).Msg("failed to compile include pattern")
		}
	}
	for _, pattern := range excludePatterns {
		if re, err := regexp.Compile(pattern); err == nil {
			filter.excludeRegexes = append(filter.excludeRegexes, re)
		} else if logger != nil {
			logger.Warn().Err(err).Str("pattern", pattern).Msg("failed to compile exclude pattern")
		}
	}

	return filter
}

// FilterURL applies blacklist, whitelist, then regex rules, in that order.
func (f *LinkFilter) FilterURL(url string) FilterResult {
	if len(f.blacklistPrefixes) > 0 {
		for _, prefix := range f.blacklistPrefixes {
			if strings.HasPrefix(url, prefix) {
				return FilterResult{ShouldEnqueue: false, Reason: "matches blacklist prefix", ExcludedBy: prefix}
			}
		}
	}
	if len(f.whitelistPrefixes) > 0 {
		matched := false
		for _, prefix := range f.whitelistPrefixes {
			if strings.HasPrefix(url, prefix) {
				matched = true
				break
			}
		}
		if !matched {
			return FilterResult{ShouldEnqueue: false, Reason: "does not match whitelist prefix"}
		}
	}

	if len(f.excludeRegexes) > 0 {
		for _, re := range f.excludeRegexes {
			if re.MatchString(url) {
				return FilterResult{ShouldEnqueue: false, Reason: "matches exclude pattern", ExcludedBy: re.String()}
			}
		}
	}
	if len(f.includeRegexes) > 0 {
		matched := false
		for _, re := range f.includeRegexes {
			if re.MatchString(url) {
				matched = true
				break
			}
		}
		if !matched {
			return FilterResult{ShouldEnqueue: false, Reason: "does not match include patterns"}
		}
	}

	return FilterResult{ShouldEnqueue: true}
}

// FilterLinks partitions urls into enqueueable and rejected sets.
func (f *LinkFilter) FilterLinks(urls []string) (filtered, rejected []string) {
	filtered = make([]string, 0, len(urls))
	rejected = make([]string, 0)
	for _, url := range urls {
		if f.FilterURL(url).ShouldEnqueue {
			filtered = append(filtered, url)
		} else {
			rejected = append(rejected, url)
		}
	}
	return filtered, rejected
}
