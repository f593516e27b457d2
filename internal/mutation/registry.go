package mutation

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrUnknownType indicates a mutation type with no registered definition.
	ErrUnknownType = errors.New("unknown mutation type")
	// ErrInvalidPayload indicates a payload that failed its type's validation.
	ErrInvalidPayload = errors.New("invalid mutation payload")
)

// Validator checks a raw JSON payload for a single mutation type.
type Validator func(payload json.RawMessage) error

// Definition binds a mutation type to its remote route and payload validator.
type Definition struct {
	Type     string
	Method   string
	Path     string
	Validate Validator
}

// Registry maps mutation types to their definitions. It is safe for
// concurrent use.
type Registry struct {
	mu    sync.RWMutex
	types map[string]Definition
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]Definition)}
}

// DefaultRegistry returns a registry holding the built-in mutation types.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, def := range builtins() {
		if err := r.Register(def); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds or replaces a mutation definition.
func (r *Registry) Register(def Definition) error {
	def.Type = strings.TrimSpace(def.Type)
	if def.Type == "" {
		return errors.New("mutation type is required")
	}
	if strings.TrimSpace(def.Path) == "" {
		return fmt.Errorf("mutation %s: path is required", def.Type)
	}
	if def.Method == "" {
		def.Method = http.MethodPost
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[def.Type] = def
	return nil
}

// Lookup returns the definition for typ.
func (r *Registry) Lookup(typ string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.types[typ]
	return def, ok
}

// Types lists registered mutation types in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.types))
	for typ := range r.types {
		out = append(out, typ)
	}
	sort.Strings(out)
	return out
}

// Validate checks payload against the definition registered for typ.
func (r *Registry) Validate(typ string, payload json.RawMessage) error {
	def, ok := r.Lookup(typ)
	if !ok {
		return fmt.Errorf("%w: %w %q", ErrInvalidPayload, ErrUnknownType, typ)
	}
	if !json.Valid(payload) {
		return fmt.Errorf("%w: %s payload is not valid JSON", ErrInvalidPayload, typ)
	}
	if def.Validate == nil {
		return nil
	}
	if err := def.Validate(payload); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidPayload, typ, err)
	}
	return nil
}
