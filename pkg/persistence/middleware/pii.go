package middleware

import (
	"context"
	"regexp"

	"github.com/aretw0/convo/pkg/domain"
	"github.com/aretw0/convo/pkg/ports"
)

// Mask replaces redacted values.
const Mask = "***"

type piiMiddleware struct {
	next     ports.SessionStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware masks, at any depth, context values whose key matches one
// of the patterns. Masking is lossy: later nodes read the mask, so use it only
// for keys no template, condition or action needs after the turn that wrote them.
func NewPIIMiddleware(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.SessionStore) ports.SessionStore {
		return &piiMiddleware{next: next, patterns: patterns}
	}
}

func (m *piiMiddleware) Save(ctx context.Context, session *domain.Session) error {
	cloned := session.Clone()
	for k, v := range cloned.Context {
		cloned.Context[k] = m.mask(k, v)
	}
	return m.next.Save(ctx, cloned)
}

func (m *piiMiddleware) Load(ctx context.Context, sessionID string) (*domain.Session, error) {
	return m.next.Load(ctx, sessionID)
}

func (m *piiMiddleware) Delete(ctx context.Context, sessionID string) error {
	return m.next.Delete(ctx, sessionID)
}

func (m *piiMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func (m *piiMiddleware) matches(key string) bool {
	for _, p := range m.patterns {
		if p.MatchString(key) {
			return true
		}
	}
	return false
}

// mask works on a cloned value, so nested maps may be edited in place.
func (m *piiMiddleware) mask(key string, v domain.Value) domain.Value {
	if m.matches(key) {
		return domain.String(Mask)
	}
	switch {
	case v.IsMap():
		fields := v.Fields()
		for k, sub := range fields {
			fields[k] = m.mask(k, sub)
		}
	case v.IsList():
		items := v.Items()
		for i, item := range items {
			items[i] = m.mask("", item)
		}
	}
	return v
}
