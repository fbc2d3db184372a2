package expressions

import "fmt"

// BasicOp is the operator tag of an operation node.
type BasicOp int

const (
	OpInvalid BasicOp = iota
	OpGreaterThan
	OpLessThan
	OpGreaterThanOrEqual
	OpLessThanOrEqual
	OpEqual
	OpNotEqual
	OpLogicalAnd
	OpLogicalOr
	OpAddition
	OpSubtraction
	OpMultiplication
	OpDivision
	OpExp
	OpLog
	OpLog10
	OpAbs
)

var opSymbols = map[BasicOp]string{
	OpGreaterThan:        ">",
	OpLessThan:           "<",
	OpGreaterThanOrEqual: ">=",
	OpLessThanOrEqual:    "<=",
	OpEqual:              "==",
	OpNotEqual:           "!=",
	OpLogicalAnd:         "&&",
	OpLogicalOr:          "||",
	OpAddition:           "+",
	OpSubtraction:        "-",
	OpMultiplication:     "*",
	OpDivision:           "/",
	OpExp:                "exp",
	OpLog:                "log",
	OpLog10:              "log10",
	OpAbs:                "abs",
}

// functionNames maps operators to the native function registry.
var functionNames = map[BasicOp]string{
	OpGreaterThan:        "greater_than",
	OpLessThan:           "less_than",
	OpGreaterThanOrEqual: "greater_than_or_equal_to",
	OpLessThanOrEqual:    "less_than_or_equal_to",
	OpEqual:              "equal",
	OpNotEqual:           "not_equal",
	OpLogicalAnd:         "and",
	OpLogicalOr:          "or",
	OpAddition:           "add",
	OpSubtraction:        "subtract",
	OpMultiplication:     "multiply",
	OpDivision:           "divide",
	OpExp:                "exp",
	OpLog:                "log",
	OpLog10:              "log10",
	OpAbs:                "abs",
}

// String returns the operator symbol ("&&", ">=", "log10", ...).
func (op BasicOp) String() string {
	if s, ok := opSymbols[op]; ok {
		return s
	}
	return fmt.Sprintf("BasicOp(%d)", int(op))
}

// ParseOp resolves an operator symbol as produced by BasicOp.String.
func ParseOp(s string) (BasicOp, error) {
	for op, sym := range opSymbols {
		if sym == s {
			return op, nil
		}
	}
	return OpInvalid, fmt.Errorf("unknown operator %q", s)
}

// FunctionName returns the native function implementing the operator.
func (op BasicOp) FunctionName() string {
	return functionNames[op]
}

// Valid reports whether op is a member of the operator enumeration.
func (op BasicOp) Valid() bool {
	return op >= OpGreaterThan && op <= OpAbs
}

// IsComparison reports whether op is one of >, <, >=, <=, ==, !=.
func (op BasicOp) IsComparison() bool {
	return op >= OpGreaterThan && op <= OpNotEqual
}

// IsLogical reports whether op is && or ||.
func (op BasicOp) IsLogical() bool {
	return op == OpLogicalAnd || op == OpLogicalOr
}

// IsArithmetic reports whether op is +, -, * or /.
func (op BasicOp) IsArithmetic() bool {
	return op >= OpAddition && op <= OpDivision
}

// IsUnary reports whether op takes a single operand.
func (op BasicOp) IsUnary() bool {
	return op >= OpExp && op <= OpAbs
}

// resultKind applies the typing rules shared by lowering and native tree construction.
// Numeric operands are promoted along int < float < double.
func resultKind(op BasicOp, left, right Kind) (Kind, error) {
	switch {
	case op.IsComparison():
		if left == KindBool || right == KindBool {
			if left != right || (op != OpEqual && op != OpNotEqual) {
				return KindUnknown, fmt.Errorf("%w: %s %s %s", ErrTypeMismatch, left, op, right)
			}
			return KindBool, nil
		}
		if _, err := promote(op, left, right); err != nil {
			return KindUnknown, err
		}
		return KindBool, nil
	case op.IsLogical():
		if left != KindBool || right != KindBool {
			return KindUnknown, fmt.Errorf("%w: %s %s %s", ErrTypeMismatch, left, op, right)
		}
		return KindBool, nil
	case op.IsArithmetic():
		return promote(op, left, right)
	case op == OpAbs:
		if !left.Numeric() {
			return KindUnknown, fmt.Errorf("%w: %s(%s)", ErrTypeMismatch, op, left)
		}
		return left, nil
	case op.IsUnary():
		if !left.Numeric() {
			return KindUnknown, fmt.Errorf("%w: %s(%s)", ErrTypeMismatch, op, left)
		}
		return KindDouble, nil
	default:
		return KindUnknown, fmt.Errorf("%w: invalid operator %d", ErrMalformedTree, int(op))
	}
}

// promote returns the common numeric kind of two operands.
func promote(op BasicOp, left, right Kind) (Kind, error) {
	if !left.Numeric() || !right.Numeric() {
		return KindUnknown, fmt.Errorf("%w: %s %s %s", ErrTypeMismatch, left, op, right)
	}
	if left == KindDouble || right == KindDouble {
		return KindDouble, nil
	}
	if left == KindFloat || right == KindFloat {
		return KindFloat, nil
	}
	return KindInt, nil
}
