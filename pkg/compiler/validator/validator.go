// Package validator checks show specs before they are compiled: struct
// constraints, source and destination schemes, and SSRF protection for
// remote sources.
package validator

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/chicogong/slidegraph/pkg/schemas"
	"github.com/chicogong/slidegraph/pkg/storage"
	"github.com/chicogong/slidegraph/pkg/transitions"
)

// ErrInvalidSpec is wrapped by every error Validate returns.
var ErrInvalidSpec = errors.New("invalid show spec")

// FieldError describes one rejected field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error collects every problem found in a spec.
type Error struct {
	Fields []FieldError
}

func (e *Error) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return fmt.Sprintf("%v: %s", ErrInvalidSpec, strings.Join(parts, "; "))
}

func (e *Error) Unwrap() error {
	return ErrInvalidSpec
}

// Validator validates ShowSpecs
type Validator struct {
	structs *validator.Validate
	lookup  LookupFunc
	schemes []string
}

// Option configures a Validator.
type Option func(*Validator)

// WithLookup replaces DNS resolution for SSRF checks.
func WithLookup(fn LookupFunc) Option {
	return func(v *Validator) {
		v.lookup = fn
	}
}

// WithSchemes restricts the accepted source and destination schemes.
func WithSchemes(schemes ...string) Option {
	return func(v *Validator) {
		v.schemes = schemes
	}
}

func New(opts ...Option) *Validator {
	structs := validator.New(validator.WithRequiredStructEnabled())
	structs.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	v := &Validator{
		structs: structs,
		lookup:  defaultLookup,
		schemes: storage.AllowedSchemes,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate checks spec and returns an *Error listing every problem.
func (v *Validator) Validate(ctx context.Context, spec *schemas.ShowSpec) error {
	if spec == nil {
		return &Error{Fields: []FieldError{{Field: "spec", Message: "is required"}}}
	}

	var fields []FieldError

	if err := v.structs.StructCtx(ctx, spec); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("%w: %v", ErrInvalidSpec, err)
		}
		for _, fe := range verrs {
			fields = append(fields, FieldError{Field: trimRoot(fe.Namespace()), Message: describe(fe)})
		}
	}

	for i, node := range spec.Nodes {
		if node.Source == "" {
			continue
		}
		if err := v.checkURI(ctx, node.Source, true); err != nil {
			fields = append(fields, FieldError{Field: fmt.Sprintf("nodes[%d].source", i), Message: err.Error()})
		}
	}

	if spec.Output != nil && spec.Output.Destination != "" {
		if err := v.checkURI(ctx, spec.Output.Destination, false); err != nil {
			fields = append(fields, FieldError{Field: "output.destination", Message: err.Error()})
		}
	}

	if len(fields) > 0 {
		return &Error{Fields: fields}
	}
	return nil
}

func (v *Validator) checkURI(ctx context.Context, uri string, source bool) error {
	scheme, _, err := storage.ParseURI(uri)
	if err != nil {
		return err
	}

	allowed := false
	for _, s := range v.schemes {
		if s == scheme {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("scheme '%s' not allowed", scheme)
	}

	if source && (scheme == "http" || scheme == "https") {
		if err := validateHTTPURI(ctx, uri, v.lookup); err != nil {
			return fmt.Errorf("security check failed: %w", err)
		}
	}
	return nil
}

// Warnings lists requests the compiler will silently adjust: unknown
// effects become fade and short transitions are lengthened.
func Warnings(spec *schemas.ShowSpec) []string {
	var out []string
	for i, e := range spec.Edges {
		if transitions.IsCut(e.Effect) {
			continue
		}
		if _, ok := transitions.Lookup(e.Effect); !ok {
			out = append(out, fmt.Sprintf("edges[%d]: unknown effect %q, using %s", i, e.Effect, transitions.DefaultEffect))
		}
		if e.Duration.Duration < transitions.MinDuration {
			out = append(out, fmt.Sprintf("edges[%d]: duration %s raised to %s", i, e.Duration.Duration, transitions.MinDuration))
		}
	}
	return out
}

func trimRoot(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		return rest
	}
	return namespace
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
