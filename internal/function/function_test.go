package function

import (
	"errors"
	"strings"
	"testing"

	"pipecore/internal/value"
)

type upcase struct {
	calls int
	fail  error
}

func (f *upcase) Identifier() string { return "upcase" }

func (f *upcase) Parameters() []Parameter {
	return []Parameter{
		{Keyword: "value", Kind: value.BytesKind(), Required: true},
		{Keyword: "suffix", Kind: value.Or(value.BytesKind(), value.NullKind())},
	}
}

func (f *upcase) Examples() []Example {
	return []Example{{Title: "upcase", Source: `upcase("a")`, Result: `"A"`}}
}

func (f *upcase) TypeDef() TypeDef {
	return TypeDef{Fallible: f.fail != nil, Kind: value.BytesKind()}
}

func (f *upcase) Call(args Arguments) (value.Value, error) {
	f.calls++
	if f.fail != nil {
		return nil, f.fail
	}
	raw, err := args.Required("value")
	if err != nil {
		return nil, err
	}
	out := strings.ToUpper(string(raw.(value.Bytes)))
	if suffix, ok := args.Optional("suffix"); ok {
		if text, isBytes := suffix.(value.Bytes); isBytes {
			out += string(text)
		}
	}
	return value.Bytes(out), nil
}

// TestRegistry_RegisterLookupNames verifies registration bookkeeping.
// Params: testing.T for assertions.
// Returns: none.
func TestRegistry_RegisterLookupNames(t *testing.T) {
	registry, err := NewRegistry(&upcase{})
	if err != nil {
		t.Fatalf("NewRegistry() error: %v", err)
	}
	if _, ok := registry.Lookup("upcase"); !ok {
		t.Fatalf("registered function not found")
	}
	if _, ok := registry.Lookup("downcase"); ok {
		t.Fatalf("unregistered function found")
	}
	if err := registry.Register(&upcase{}); !errors.Is(err, ErrDuplicateFunction) {
		t.Fatalf("expected ErrDuplicateFunction, got %v", err)
	}
	if names := registry.Names(); len(names) != 1 || names[0] != "upcase" {
		t.Fatalf("unexpected names: %v", names)
	}
}

// TestRegistry_CallValidatesArguments verifies argument checks run before dispatch.
// Params: testing.T for assertions.
// Returns: none.
func TestRegistry_CallValidatesArguments(t *testing.T) {
	fn := &upcase{}
	registry, err := NewRegistry(fn)
	if err != nil {
		t.Fatalf("NewRegistry() error: %v", err)
	}

	cases := []struct {
		name string
		fn   string
		args Arguments
		want error
	}{
		{name: "unknown function", fn: "nope", args: Arguments{}, want: ErrUnknownFunction},
		{name: "missing", fn: "upcase", args: Arguments{}, want: ErrMissingArgument},
		{name: "unknown keyword", fn: "upcase", args: Arguments{"value": value.Bytes("a"), "x": value.Null{}}, want: ErrUnknownArgument},
		{name: "wrong kind", fn: "upcase", args: Arguments{"value": value.Integer(1)}, want: ErrArgumentKind},
	}

	for _, tc := range cases {
		_, err := registry.Call(tc.fn, tc.args)
		var callErr *Error
		if !errors.As(err, &callErr) || callErr.Function != tc.fn {
			t.Fatalf("%s: expected *Error for %q, got %v", tc.name, tc.fn, err)
		}
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
	if fn.calls != 0 {
		t.Fatalf("invalid calls reached the function %d times", fn.calls)
	}

	out, err := registry.Call("upcase", Arguments{"value": value.Bytes("ab"), "suffix": value.Bytes("!")})
	if err != nil {
		t.Fatalf("Call() error: %v", err)
	}
	if out != value.Bytes("AB!") {
		t.Fatalf("unexpected result %v", out)
	}
}

// TestRegistry_CallWrapsFailure verifies runtime failures surface as *Error.
// Params: testing.T for assertions.
// Returns: none.
func TestRegistry_CallWrapsFailure(t *testing.T) {
	cause := errors.New("boom")
	registry, err := NewRegistry(&upcase{fail: cause})
	if err != nil {
		t.Fatalf("NewRegistry() error: %v", err)
	}

	_, err = registry.Call("upcase", Arguments{"value": value.Bytes("a")})
	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
	if !strings.Contains(err.Error(), `"upcase"`) {
		t.Fatalf("error does not name the function: %v", err)
	}
}
