// Package registry tracks which namespaces currently have a live handle.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

var (
	// ErrAlreadyOpen is matched by errors.Is against *AlreadyOpenError.
	ErrAlreadyOpen = errors.New("registry: namespace already open")

	// ErrUnknownToken is returned when unregistering a token that is not live.
	ErrUnknownToken = errors.New("registry: unknown token")

	// ErrLeaked is matched by errors.Is against *LeakError.
	ErrLeaked = errors.New("registry: leaked namespaces")
)

// AlreadyOpenError reports a second registration of a live namespace.
type AlreadyOpenError struct {
	Namespace string
}

func (e *AlreadyOpenError) Error() string {
	return fmt.Sprintf("namespace '%s' already open", e.Namespace)
}

// Is lets errors.Is(err, ErrAlreadyOpen) match.
func (e *AlreadyOpenError) Is(target error) bool {
	return target == ErrAlreadyOpen
}

// LeakError lists the namespaces still open when none were expected.
type LeakError struct {
	Namespaces []string
}

func (e *LeakError) Error() string {
	quoted := make([]string, len(e.Namespaces))
	for i, ns := range e.Namespaces {
		quoted[i] = "'" + ns + "'"
	}
	return "leaked namespaces " + strings.Join(quoted, ", ")
}

// Is lets errors.Is(err, ErrLeaked) match.
func (e *LeakError) Is(target error) bool {
	return target == ErrLeaked
}

// Token is the proof of a registration. The zero Token is never live.
type Token struct {
	Namespace string
	id        uuid.UUID
}

// Registry is the table of open namespaces. A Registry is safe for concurrent
// use; the zero value is not, use New.
type Registry struct {
	mu   sync.Mutex
	open map[string]uuid.UUID
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{open: make(map[string]uuid.UUID)}
}

// Register claims namespace. It fails with *AlreadyOpenError while another
// registration for the same namespace is live.
func (r *Registry) Register(namespace string) (Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.open[namespace]; ok {
		return Token{}, &AlreadyOpenError{Namespace: namespace}
	}
	id := uuid.New()
	r.open[namespace] = id
	return Token{Namespace: namespace, id: id}, nil
}

// MustRegister is Register that panics on a double open. Two live handles on
// one namespace would interleave writes on disk, so this is never recoverable.
func (r *Registry) MustRegister(namespace string) Token {
	token, err := r.Register(namespace)
	if err != nil {
		panic(err)
	}
	return token
}

// Unregister releases the slot held by token.
func (r *Registry) Unregister(token Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.open[token.Namespace]
	if !ok || id != token.id || token.id == uuid.Nil {
		return fmt.Errorf("%w: namespace '%s'", ErrUnknownToken, token.Namespace)
	}
	delete(r.open, token.Namespace)
	return nil
}

// Len returns the number of live registrations.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.open)
}

// OpenChildren returns the open namespaces nested below namespace, sorted.
// Every open namespace other than the root is a child of the root "".
func (r *Registry) OpenChildren(namespace string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var children []string
	for ns := range r.open {
		if ns == namespace {
			continue
		}
		if namespace == "" || strings.HasPrefix(ns, namespace+"/") {
			children = append(children, ns)
		}
	}
	sort.Strings(children)
	return children
}

// AssertNoneOpen returns a *LeakError naming every namespace still open.
func (r *Registry) AssertNoneOpen() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.open) == 0 {
		return nil
	}
	leaked := make([]string, 0, len(r.open))
	for ns := range r.open {
		leaked = append(leaked, ns)
	}
	sort.Strings(leaked)
	return &LeakError{Namespaces: leaked}
}

