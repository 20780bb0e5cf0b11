package config

import "strconv"

const (
	TierPrimary  = 1
	TierFallback = 2
)

// Endpoint is one configured RPC address and its priority class.
type Endpoint struct {
	Name string
	URL  string
	Tier int
}

// Endpoints lists primary URLs before fallback URLs, each in configured order.
func (c Chain) Endpoints() []Endpoint {
	out := make([]Endpoint, 0, len(c.RPCURLs)+len(c.FallbackRPCURLs))
	out = appendTier(out, "primary", TierPrimary, c.RPCURLs)
	out = appendTier(out, "fallback", TierFallback, c.FallbackRPCURLs)
	return out
}

func appendTier(out []Endpoint, prefix string, tier int, urls []string) []Endpoint {
	n := 0
	for _, url := range urls {
		if url == "" {
			continue
		}
		n++
		out = append(out, Endpoint{Name: prefix + "-" + strconv.Itoa(n), URL: url, Tier: tier})
	}
	return out
}
