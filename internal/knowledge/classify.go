package knowledge

import "strings"

// domainKeywords maps each domain tag to the substrings that select it.
// First match wins, checked in a fixed order.
var domainKeywords = []struct {
	tag      string
	keywords []string
}{
	{"frontend", []string{"frontend", "react", "css", "ui", "component", "jsx", "tsx"}},
	{"backend", []string{"backend", "api", "server", "database", "sql", "endpoint"}},
	{"devops", []string{"deploy", "docker", "ci", "pipeline", "infra", "kubernetes", "k8s"}},
	{"security", []string{"security", "auth", "token", "vulnerability", "csrf", "xss", "injection"}},
	{"testing", []string{"test", "pytest", "coverage", "assertion", "mock", "fixture"}},
}

// ClassifyDomain tags content with a coarse domain category so
// retrieval can pre-filter candidates before any similarity math.
func ClassifyDomain(content string) string {
	lower := strings.ToLower(content)
	for _, d := range domainKeywords {
		for _, kw := range d.keywords {
			if strings.Contains(lower, kw) {
				return d.tag
			}
		}
	}
	return "general"
}
