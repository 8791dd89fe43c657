package operators

// ParamType names how a statement parameter is converted before its rules
// apply.
type ParamType string

const (
	TypeString     ParamType = "string"
	TypeInt        ParamType = "int"
	TypeFloat      ParamType = "float"
	TypeDuration   ParamType = "duration" // "1.5s", 1.5, "00:00:01.500"
	TypeEnum       ParamType = "enum"
	TypeStringList ParamType = "string_list"
)

// Param declares one statement parameter and the rules its value must meet.
type Param struct {
	Name     string
	Type     ParamType
	Required bool
	Doc      string

	// Min and Max bound numeric values. Durations compare in seconds.
	Min, Max *float64
	// OneOf lists the accepted values of an enum.
	OneOf []string
	// Pattern is a regular expression a string value must match.
	Pattern string
	// MaxItems caps a string list; 0 means no cap.
	MaxItems int
	// Check runs last, on the converted value.
	Check func(any) error
}

// Bound returns a pointer for Param.Min and Param.Max literals.
func Bound(f float64) *float64 { return &f }
