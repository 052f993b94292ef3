package crawler

import "strings"

// domainAllowlist matches hosts against configured domains. A domain matches
// itself and every subdomain; "*.example.com" and ".example.com" are accepted
// as aliases for "example.com".
type domainAllowlist struct {
	exact    map[string]struct{}
	suffixes []string
}

func newDomainAllowlist(domains []string) *domainAllowlist {
	matcher := &domainAllowlist{
		exact: make(map[string]struct{}),
	}
	for _, raw := range domains {
		value := strings.TrimSpace(strings.ToLower(raw))
		value = strings.TrimPrefix(value, "*.")
		value = strings.TrimPrefix(value, ".")
		if value == "" {
			continue
		}
		if _, ok := matcher.exact[value]; ok {
			continue
		}
		matcher.exact[value] = struct{}{}
		matcher.suffixes = append(matcher.suffixes, "."+value)
	}
	return matcher
}

// Allows reports whether host is an allow-listed domain or a subdomain of one.
// An empty allow-list admits nothing.
func (a *domainAllowlist) Allows(host string) bool {
	if a == nil {
		return false
	}
	host = strings.TrimSpace(strings.ToLower(host))
	if host == "" {
		return false
	}
	if _, exact := a.exact[host]; exact {
		return true
	}
	for _, suffix := range a.suffixes {
		if strings.HasSuffix(host, suffix) {
			return true
		}
	}
	return false
}
