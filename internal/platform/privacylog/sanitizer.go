package privacylog

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
)

const redactedValue = "[REDACTED]"

var (
	endpointKeys = map[string]struct{}{
		"rpc_url":  {},
		"url":      {},
		"endpoint": {},
	}
	sensitiveKeyParts = []string{"private_key", "privatekey", "mnemonic", "seed", "passphrase", "password", "secret", "token", "authorization"}
)

// SanitizingHandler redacts sensitive attributes by key. Every string or
// error value additionally has the configured endpoints scrubbed, since
// transport errors quote the full request URL under arbitrary keys.
type SanitizingHandler struct {
	next      slog.Handler
	endpoints []string
}

func WrapHandler(next slog.Handler, endpoints ...string) slog.Handler {
	if next == nil {
		return nil
	}
	kept := make([]string, 0, len(endpoints))
	for _, endpoint := range endpoints {
		if endpoint = strings.TrimSpace(endpoint); endpoint != "" {
			kept = append(kept, endpoint)
		}
	}
	return &SanitizingHandler{next: next, endpoints: kept}
}

func (h *SanitizingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *SanitizingHandler) Handle(ctx context.Context, rec slog.Record) error {
	out := slog.NewRecord(rec.Time, rec.Level, rec.Message, rec.PC)
	rec.Attrs(func(attr slog.Attr) bool {
		out.AddAttrs(SanitizeAttr(h.scrubAttr(attr)))
		return true
	})
	return h.next.Handle(ctx, out)
}

func (h *SanitizingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	scrubbed := make([]slog.Attr, 0, len(attrs))
	for _, attr := range attrs {
		scrubbed = append(scrubbed, h.scrubAttr(attr))
	}
	return &SanitizingHandler{next: h.next.WithAttrs(sanitizeAttrs(scrubbed)), endpoints: h.endpoints}
}

func (h *SanitizingHandler) WithGroup(name string) slog.Handler {
	return &SanitizingHandler{next: h.next.WithGroup(name), endpoints: h.endpoints}
}

func (h *SanitizingHandler) scrubAttr(attr slog.Attr) slog.Attr {
	if len(h.endpoints) == 0 {
		return attr
	}
	value := attr.Value.Resolve()
	switch value.Kind() {
	case slog.KindString:
		return slog.String(attr.Key, h.scrubText(value.String()))
	case slog.KindGroup:
		group := value.Group()
		out := make([]any, 0, len(group))
		for _, member := range group {
			out = append(out, h.scrubAttr(member))
		}
		return slog.Group(attr.Key, out...)
	case slog.KindAny:
		if err, ok := value.Any().(error); ok {
			return slog.String(attr.Key, h.scrubText(err.Error()))
		}
	}
	return attr
}

func (h *SanitizingHandler) scrubText(text string) string {
	for _, endpoint := range h.endpoints {
		text = ScrubEndpoint(text, endpoint)
	}
	return text
}

func SanitizeAttr(attr slog.Attr) slog.Attr {
	key := strings.TrimSpace(attr.Key)
	lowerKey := strings.ToLower(key)
	if isSensitiveKey(lowerKey) {
		return slog.String(key, redactedValue)
	}
	if isEndpointKey(lowerKey) {
		return slog.String(key, RedactURL(valueToString(attr.Value)))
	}
	if attr.Value.Kind() == slog.KindGroup {
		group := attr.Value.Group()
		return slog.Any(key, sanitizeGroupValue(group))
	}
	return attr
}

func SanitizeArgs(args ...any) []any {
	if len(args) == 0 {
		return nil
	}
	out := make([]any, 0, len(args))
	for i := 0; i < len(args); i++ {
		key, ok := args[i].(string)
		if !ok || i+1 >= len(args) {
			out = append(out, args[i])
			continue
		}
		value := args[i+1]
		i++
		lowerKey := strings.ToLower(strings.TrimSpace(key))
		switch {
		case isSensitiveKey(lowerKey):
			out = append(out, key, redactedValue)
		case isEndpointKey(lowerKey):
			out = append(out, key, RedactURL(fmt.Sprint(value)))
		default:
			out = append(out, key, value)
		}
	}
	return out
}

// RedactURL keeps scheme and host of an RPC endpoint. Hosted providers put the
// API key in userinfo, path or query, so all three are dropped.
func RedactURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	u, err := url.Parse(trimmed)
	if err != nil || u.Host == "" {
		return redactedValue
	}
	out := u.Scheme + "://" + u.Host
	if u.User != nil || (u.Path != "" && u.Path != "/") || u.RawQuery != "" {
		out += "/" + redactedValue
	}
	return out
}

// ScrubEndpoint replaces every occurrence of endpoint in text with its
// redacted form. Transport errors quote the full request URL.
func ScrubEndpoint(text, endpoint string) string {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return text
	}
	redacted := RedactURL(endpoint)
	if redacted == endpoint {
		return text
	}
	return strings.ReplaceAll(text, endpoint, redacted)
}

func sanitizeAttrs(attrs []slog.Attr) []slog.Attr {
	out := make([]slog.Attr, 0, len(attrs))
	for _, attr := range attrs {
		out = append(out, SanitizeAttr(attr))
	}
	return out
}

func sanitizeGroupValue(attrs []slog.Attr) map[string]any {
	out := make(map[string]any, len(attrs))
	for _, attr := range sanitizeAttrs(attrs) {
		switch attr.Value.Kind() {
		case slog.KindString:
			out[attr.Key] = attr.Value.String()
		case slog.KindInt64:
			out[attr.Key] = attr.Value.Int64()
		case slog.KindUint64:
			out[attr.Key] = attr.Value.Uint64()
		case slog.KindFloat64:
			out[attr.Key] = attr.Value.Float64()
		case slog.KindBool:
			out[attr.Key] = attr.Value.Bool()
		case slog.KindDuration:
			out[attr.Key] = attr.Value.Duration().String()
		case slog.KindTime:
			out[attr.Key] = attr.Value.Time().UTC().Format("2006-01-02T15:04:05.000000000Z")
		default:
			out[attr.Key] = attr.Value.Any()
		}
	}
	return out
}

func isEndpointKey(key string) bool {
	_, ok := endpointKeys[key]
	return ok
}

func isSensitiveKey(key string) bool {
	for _, part := range sensitiveKeyParts {
		if strings.Contains(key, part) {
			return true
		}
	}
	return false
}

func valueToString(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	default:
		return fmt.Sprint(v.Any())
	}
}
