package runtime

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/drblury/faultline/internal/runtime/event"
	"github.com/drblury/faultline/internal/runtime/severity"
)

// Scope holds data applied to every event captured by a client. Values the
// event already carries win over scope values.
type Scope struct {
	mu          sync.RWMutex
	user        map[string]any
	tags        map[string]string
	extra       map[string]any
	contexts    map[string]map[string]any
	fingerprint []string
	transaction string
	level       *severity.Severity
}

func NewScope() *Scope {
	return &Scope{}
}

// SetUser replaces the user context.
func (s *Scope) SetUser(user map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = maps.Clone(user)
}

func (s *Scope) SetTag(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tags == nil {
		s.tags = map[string]string{}
	}
	s.tags[key] = value
}

func (s *Scope) SetTags(tags map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tags == nil {
		s.tags = make(map[string]string, len(tags))
	}
	maps.Copy(s.tags, tags)
}

func (s *Scope) RemoveTag(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tags, key)
}

func (s *Scope) SetExtra(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.extra == nil {
		s.extra = map[string]any{}
	}
	s.extra[key] = value
}

// SetContext stores a named context such as "app" or "device".
func (s *Scope) SetContext(name string, values map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.contexts == nil {
		s.contexts = map[string]map[string]any{}
	}
	s.contexts[name] = maps.Clone(values)
}

func (s *Scope) SetFingerprint(fingerprint []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fingerprint = slices.Clone(fingerprint)
}

func (s *Scope) SetTransaction(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transaction = name
}

// SetLevel forces the level of every plain event.
func (s *Scope) SetLevel(level severity.Severity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.level = &level
}

// Clear drops everything set on the scope.
func (s *Scope) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user, s.tags, s.extra, s.contexts = nil, nil, nil, nil
	s.fingerprint, s.transaction, s.level = nil, "", nil
}

// ApplyTo copies scope data into evt without overwriting fields the event
// already populated. The scope level applies to plain events only.
func (s *Scope) ApplyTo(evt *event.Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.user) > 0 {
		if evt.User == nil {
			evt.User = make(map[string]any, len(s.user))
		}
		fillAbsent(evt.User, s.user)
	}
	for k, v := range s.tags {
		if _, ok := evt.Tags[k]; !ok {
			evt.SetTag(k, v)
		}
	}
	for k, v := range s.extra {
		if _, ok := evt.Extra[k]; !ok {
			evt.SetExtra(k, v)
		}
	}
	for name, values := range s.contexts {
		for k, v := range values {
			evt.FillContext(name, k, v)
		}
	}
	if len(evt.Fingerprint) == 0 && len(s.fingerprint) > 0 {
		evt.Fingerprint = slices.Clone(s.fingerprint)
	}
	if evt.Transaction == "" {
		evt.Transaction = s.transaction
	}
	if s.level != nil && evt.Type() == event.TypeEvent {
		evt.Level = *s.level
	}
}

func fillAbsent(dst, src map[string]any) {
	for k, v := range src {
		if _, ok := dst[k]; !ok {
			dst[k] = v
		}
	}
}

// ScopeMiddleware applies the client scope to each event.
func ScopeMiddleware() MiddlewareRegistration {
	return MiddlewareRegistration{
		Name:     "scope",
		Priority: PriorityScope,
		Builder: func(c *Client) (Stage, error) {
			return func(ctx context.Context, evt *event.Event, hint *Hint, next Next) (*event.Event, error) {
				c.scope.ApplyTo(evt)
				return next(ctx, evt, hint)
			}, nil
		},
	}
}
