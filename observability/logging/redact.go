package logging

import (
	"log/slog"
	"regexp"
	"strings"
)

// RedactedValue replaces credentials in log output.
const RedactedValue = "[REDACTED]"

// Attribute keys whose values may carry credentials. Ledger identifiers such
// as escrow, reference, mint and program keys are public and pass through.
var credentialKeys = map[string]struct{}{
	"dsn":           {},
	"journal_dsn":   {},
	"headers":       {},
	"authorization": {},
	"password":      {},
	"secret":        {},
}

var dsnKeys = map[string]struct{}{
	"dsn":         {},
	"journal_dsn": {},
}

// Matches keyword DSN passwords (password=x, password='x y') and the
// password query parameter of URL DSNs.
var passwordParam = regexp.MustCompile(`(?i)(password\s*=\s*)('[^']*'|[^\s&]+)`)

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// IsCredential reports whether values logged under key are masked.
func IsCredential(key string) bool {
	_, ok := credentialKeys[normalizeKey(key)]
	return ok
}

// MaskValue returns the canonical redacted placeholder for non-empty values.
func MaskValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return value
	}
	return RedactedValue
}

// RedactDSN masks the password of a journal connection string while keeping
// the driver, host and database visible. SQLite paths carry no credentials
// and are returned unchanged.
func RedactDSN(dsn string) string {
	out := dsn
	if scheme, rest, ok := strings.Cut(dsn, "://"); ok {
		authority := rest
		if end := strings.IndexAny(rest, "/?"); end >= 0 {
			authority = rest[:end]
		}
		if at := strings.LastIndex(authority, "@"); at >= 0 {
			if user, _, hasPassword := strings.Cut(authority[:at], ":"); hasPassword {
				out = scheme + "://" + user + ":" + RedactedValue + rest[at:]
			}
		}
	}
	return passwordParam.ReplaceAllString(out, "${1}"+RedactedValue)
}

// MaskField builds a slog.Attr for key, masking the value when the key names
// a credential. DSNs keep everything but their password.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" || !IsCredential(key) {
		return slog.String(key, value)
	}
	if _, ok := dsnKeys[normalizeKey(key)]; ok {
		return slog.String(key, RedactDSN(value))
	}
	return slog.String(key, RedactedValue)
}

// redactAttr is applied by Setup to every string attribute so credentials are
// masked even when a caller logs them with slog.String.
func redactAttr(attr slog.Attr) slog.Attr {
	if attr.Value.Kind() != slog.KindString || !IsCredential(attr.Key) {
		return attr
	}
	return MaskField(attr.Key, attr.Value.String())
}
