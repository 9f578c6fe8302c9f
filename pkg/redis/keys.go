package redis

import "strings"

// Every key the marketplace writes lives under agm:<purpose>:...
const keyNamespace = "agm"

const (
	purposeIdempotency = "idempotency"
	purposeRateLimit   = "rate_limit"
	purposeWebhook     = "webhook"
)

// IdempotencyKey names the replay record for one client key within scope.
func (c *Client) IdempotencyKey(scope, id string) string {
	return joinKey(purposeIdempotency, scope, id)
}

// RateLimitKey names a rate limit counter.
func (c *Client) RateLimitKey(scope string) string {
	return joinKey(purposeRateLimit, scope)
}

// WebhookKey names the guard for one processed gateway delivery.
func (c *Client) WebhookKey(provider, id string) string {
	return joinKey(purposeWebhook, provider, id)
}

func joinKey(parts ...string) string {
	var b strings.Builder
	b.WriteString(keyNamespace)
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		b.WriteByte(':')
		b.WriteString(part)
	}
	return b.String()
}
