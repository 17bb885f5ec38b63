// Package function defines the boundary between the expression runtime and the
// library functions it can call: parameter declarations, the static type a
// call produces, and a registry that validates arguments before dispatch.
package function

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"pipecore/internal/value"
)

var (
	// ErrUnknownFunction is returned when a call names an unregistered function.
	ErrUnknownFunction = errors.New("unknown function")
	// ErrDuplicateFunction is returned when an identifier is registered twice.
	ErrDuplicateFunction = errors.New("function already registered")
	// ErrMissingArgument is returned when a required parameter is not supplied.
	ErrMissingArgument = errors.New("missing required argument")
	// ErrUnknownArgument is returned when a call passes an undeclared keyword.
	ErrUnknownArgument = errors.New("unknown argument")
	// ErrArgumentKind is returned when an argument's kind is not accepted by its parameter.
	ErrArgumentKind = errors.New("argument kind mismatch")
)

// Parameter declares one keyword argument.
type Parameter struct {
	Keyword  string
	Kind     value.Kind
	Required bool
}

// TypeDef is the static result type of a call.
type TypeDef struct {
	// Fallible marks functions whose calls may return an error at runtime.
	Fallible bool
	Kind     value.Kind
}

// Example documents one call of a function.
type Example struct {
	Title  string
	Source string
	Result string
}

// Function is a library function callable from the expression runtime.
type Function interface {
	Identifier() string
	Parameters() []Parameter
	Examples() []Example
	TypeDef() TypeDef
	Call(args Arguments) (value.Value, error)
}

// Arguments maps keywords to evaluated argument values.
type Arguments map[string]value.Value

// Required returns the argument for keyword.
// Params: keyword parameter name.
// Returns: value or ErrMissingArgument.
func (a Arguments) Required(keyword string) (value.Value, error) {
	v, ok := a[keyword]
	if !ok || v == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingArgument, keyword)
	}
	return v, nil
}

// Optional returns the argument for keyword when present.
func (a Arguments) Optional(keyword string) (value.Value, bool) {
	v, ok := a[keyword]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// Error is the failure of one function call.
type Error struct {
	Function string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("function call error for %q: %v", e.Function, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Registry holds functions by identifier. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	functions map[string]Function
}

// NewRegistry creates a registry holding fns.
// Params: fns functions to register.
// Returns: registry or the first registration error.
func NewRegistry(fns ...Function) (*Registry, error) {
	registry := &Registry{functions: make(map[string]Function, len(fns))}
	for _, fn := range fns {
		if err := registry.Register(fn); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// Register adds fn under its identifier.
// Params: fn function to add.
// Returns: ErrDuplicateFunction when the identifier is taken.
func (r *Registry) Register(fn Function) error {
	name := fn.Identifier()
	if name == "" {
		return errors.New("function identifier is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.functions[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateFunction, name)
	}
	r.functions[name] = fn
	return nil
}

// Lookup returns the function registered as name.
func (r *Registry) Lookup(name string) (Function, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.functions[name]
	return fn, ok
}

// Names returns registered identifiers in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.functions))
	for name := range r.functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Call validates args against the parameters of name and invokes it.
// Params: name function identifier; args keyword arguments.
// Returns: call result or *Error wrapping the cause.
func (r *Registry) Call(name string, args Arguments) (value.Value, error) {
	fn, ok := r.Lookup(name)
	if !ok {
		return nil, &Error{Function: name, Err: ErrUnknownFunction}
	}
	if err := checkArguments(fn.Parameters(), args); err != nil {
		return nil, &Error{Function: name, Err: err}
	}

	out, err := fn.Call(args)
	if err != nil {
		var callErr *Error
		if errors.As(err, &callErr) {
			return nil, err
		}
		return nil, &Error{Function: name, Err: err}
	}
	return out, nil
}

func checkArguments(params []Parameter, args Arguments) error {
	declared := make(map[string]Parameter, len(params))
	for _, param := range params {
		declared[param.Keyword] = param
	}

	for keyword := range args {
		if _, ok := declared[keyword]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownArgument, keyword)
		}
	}

	for _, param := range params {
		arg, ok := args.Optional(param.Keyword)
		if !ok {
			if param.Required {
				return fmt.Errorf("%w: %s", ErrMissingArgument, param.Keyword)
			}
			continue
		}
		if !param.Kind.IsSuperset(arg.Kind()) {
			return fmt.Errorf("%w: %s expects %s, got %s", ErrArgumentKind, param.Keyword, param.Kind, arg.Kind())
		}
	}
	return nil
}
