package domain

import (
	"log/slog"
	"strings"
)

// Proxy is a parsed scheme://[user[:pass]@]host[:port] address.
// The zero value means "no proxy".
type Proxy struct {
	Scheme   string
	Host     string
	Port     string
	Username string
	Password string
}

// ParseProxy splits a proxy URL into its parts. It never fails: input without
// "://" yields the zero Proxy and a logged parse error.
func ParseProxy(raw string) Proxy {
	var p Proxy

	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok {
		if raw != "" {
			slog.Error("parse proxy url", "err", "missing scheme separator", "proxy_url", raw)
		}
		return p
	}
	p.Scheme = scheme

	hostPart := rest
	if creds, after, found := strings.Cut(rest, "@"); found {
		hostPart = after
		p.Username, p.Password, _ = strings.Cut(creds, ":")
	}

	if host, port, found := strings.Cut(hostPart, ":"); found {
		p.Host = host
		p.Port, _, _ = strings.Cut(port, "/")
	} else {
		p.Host, _, _ = strings.Cut(hostPart, "/")
	}

	return p
}

// Empty reports whether no proxy should be attached upstream.
func (p Proxy) Empty() bool {
	return p.Host == ""
}

// String renders scheme://[user[:pass]@]host[:port].
func (p Proxy) String() string {
	if p.Empty() {
		return ""
	}
	var b strings.Builder
	b.WriteString(p.Scheme)
	b.WriteString("://")
	if p.Username != "" {
		b.WriteString(p.Username)
		if p.Password != "" {
			b.WriteByte(':')
			b.WriteString(p.Password)
		}
		b.WriteByte('@')
	}
	b.WriteString(p.Host)
	if p.Port != "" {
		b.WriteByte(':')
		b.WriteString(p.Port)
	}
	return b.String()
}
