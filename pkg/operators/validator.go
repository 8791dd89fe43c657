package operators

import (
	"fmt"
	"regexp"
	"slices"
	"time"
)

// ParamError reports a statement parameter that failed validation.
type ParamError struct {
	Param  string
	Reason string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("parameter %q: %s", e.Param, e.Reason)
}

// ValidateParams checks params against the operator's declared Params:
// required ones must be present, present ones must convert and satisfy
// their rules, and undeclared names are rejected.
func ValidateParams(op Operator, params map[string]any) error {
	declared := op.Describe().Params
	for i := range declared {
		p := &declared[i]
		v, ok := params[p.Name]
		if !ok {
			if p.Required {
				return &ParamError{Param: p.Name, Reason: "required"}
			}
			continue
		}
		if err := checkParam(p, v); err != nil {
			return &ParamError{Param: p.Name, Reason: err.Error()}
		}
	}

	for name := range params {
		if !slices.ContainsFunc(declared, func(p Param) bool { return p.Name == name }) {
			return &ParamError{Param: name, Reason: "unknown parameter"}
		}
	}
	return nil
}

func checkParam(p *Param, raw any) error {
	v, err := Convert(raw, p.Type)
	if err != nil {
		return err
	}

	if p.Min != nil || p.Max != nil {
		var n float64
		switch x := v.(type) {
		case int:
			n = float64(x)
		case float64:
			n = x
		case time.Duration:
			n = x.Seconds()
		default:
			return fmt.Errorf("bounds do not apply to %s values", p.Type)
		}
		if p.Min != nil && n < *p.Min {
			return fmt.Errorf("%v is below the minimum %v", n, *p.Min)
		}
		if p.Max != nil && n > *p.Max {
			return fmt.Errorf("%v is above the maximum %v", n, *p.Max)
		}
	}

	switch x := v.(type) {
	case string:
		if p.OneOf != nil && !slices.Contains(p.OneOf, x) {
			return fmt.Errorf("%q is not one of %v", x, p.OneOf)
		}
		if p.Pattern != "" {
			re, err := regexp.Compile(p.Pattern)
			if err != nil {
				return fmt.Errorf("bad pattern %q: %w", p.Pattern, err)
			}
			if !re.MatchString(x) {
				return fmt.Errorf("%q does not match %s", x, p.Pattern)
			}
		}
	case []string:
		if p.MaxItems > 0 && len(x) > p.MaxItems {
			return fmt.Errorf("at most %d items allowed, got %d", p.MaxItems, len(x))
		}
	}

	if p.Check != nil {
		return p.Check(v)
	}
	return nil
}

// ValidateArity checks the number of input and output labels of a statement
// against the descriptor.
func ValidateArity(desc *OperatorDescriptor, inputs, outputs int) error {
	switch {
	case inputs < desc.MinInputs:
		return fmt.Errorf("%s: needs at least %d inputs, got %d", desc.Name, desc.MinInputs, inputs)
	case desc.MaxInputs > 0 && inputs > desc.MaxInputs:
		return fmt.Errorf("%s: accepts at most %d inputs, got %d", desc.Name, desc.MaxInputs, inputs)
	case desc.Outputs > 0 && outputs != desc.Outputs:
		return fmt.Errorf("%s: writes %d outputs, got %d labels", desc.Name, desc.Outputs, outputs)
	}
	return nil
}
