package duckdb

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/viraaj-s/AliceO2/native"
)

// Encoder renders native expression graphs as DuckDB SQL.
type Encoder struct {
	// ColumnMapping maps field names to the column names used in SQL.
	// Mapped names are always quoted. Fields not in the map use their own
	// names, quoted when needed.
	ColumnMapping map[string]string
}

// EncodeCondition renders the condition as the body of a WHERE clause.
func (e *Encoder) EncodeCondition(cond *native.Condition) (string, error) {
	return e.Encode(cond.Root())
}

// Encode renders one graph node.
func (e *Encoder) Encode(n native.Node) (string, error) {
	switch n := n.(type) {
	case *native.FieldNode:
		return e.encodeField(n), nil
	case *native.LiteralNode:
		return encodeLiteral(n)
	case *native.FunctionNode:
		return e.encodeFunction(n)
	default:
		return "", &native.CompileError{Node: fmt.Sprintf("%T", n), Reason: "unknown node type"}
	}
}

func (e *Encoder) encodeField(f *native.FieldNode) string {
	if mapped, ok := e.ColumnMapping[f.Field.Name]; ok {
		return `"` + strings.ReplaceAll(mapped, `"`, `""`) + `"`
	}
	return quoteIdentifier(f.Field.Name)
}

func (e *Encoder) encodeFunction(f *native.FunctionNode) (string, error) {
	args := make([]string, len(f.Args))
	for i, a := range f.Args {
		encoded, err := e.Encode(a)
		if err != nil {
			return "", err
		}
		args[i] = encoded
	}

	if op, ok := binaryOperators[f.Name]; ok && len(args) == 2 {
		if f.Name == native.FuncDivide && isInteger(f) {
			// DuckDB's "/" on integers yields a double.
			op = "//"
		}
		return "(" + args[0] + " " + op + " " + args[1] + ")", nil
	}

	switch {
	case len(args) != 1:
	case f.Name == native.FuncCastFloat4:
		return "CAST(" + args[0] + " AS FLOAT)", nil
	case f.Name == native.FuncCastFloat8:
		return "CAST(" + args[0] + " AS DOUBLE)", nil
	case f.Name == native.FuncLog:
		return "ln(" + args[0] + ")", nil
	case f.Name == native.FuncExp, f.Name == native.FuncLog10, f.Name == native.FuncAbs:
		return f.Name + "(" + args[0] + ")", nil
	}
	return "", &native.CompileError{Node: f.String(), Reason: "no DuckDB rendering"}
}

var binaryOperators = map[string]string{
	native.FuncGreaterThan:        ">",
	native.FuncLessThan:           "<",
	native.FuncGreaterThanOrEqual: ">=",
	native.FuncLessThanOrEqual:    "<=",
	native.FuncEqual:              "=",
	native.FuncNotEqual:           "<>",
	native.FuncAnd:                "AND",
	native.FuncOr:                 "OR",
	native.FuncAdd:                "+",
	native.FuncSubtract:           "-",
	native.FuncMultiply:           "*",
	native.FuncDivide:             "/",
}

func isInteger(f *native.FunctionNode) bool {
	return f.Ret != nil && sqlType(f.Ret.ID()) == "INTEGER"
}

// encodeLiteral casts every numeric literal so DuckDB does not infer DECIMAL
// or widen float literals to double.
func encodeLiteral(l *native.LiteralNode) (string, error) {
	switch v := l.Value.(type) {
	case int32:
		return "CAST(" + strconv.FormatInt(int64(v), 10) + " AS INTEGER)", nil
	case bool:
		if v {
			return "TRUE", nil
		}
		return "FALSE", nil
	case float32:
		return "CAST(" + formatFloat(float64(v), 32) + " AS FLOAT)", nil
	case float64:
		return "CAST(" + formatFloat(v, 64) + " AS DOUBLE)", nil
	default:
		return "", &native.CompileError{Node: l.String(), Reason: fmt.Sprintf("unsupported literal type %T", v)}
	}
}

func formatFloat(v float64, bits int) string {
	switch {
	case math.IsNaN(v):
		return "'nan'"
	case math.IsInf(v, 1):
		return "'inf'"
	case math.IsInf(v, -1):
		return "'-inf'"
	}
	return strconv.FormatFloat(v, 'g', -1, bits)
}

// quoteIdentifier returns a quoted identifier if needed.
// DuckDB uses double quotes for identifiers.
func quoteIdentifier(name string) string {
	if needsQuoting(name) {
		return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	}
	return name
}

func needsQuoting(name string) bool {
	if len(name) == 0 {
		return true
	}

	c := name[0]
	if !isLetter(c) && c != '_' {
		return true
	}
	for i := 1; i < len(name); i++ {
		c = name[i]
		if !isLetter(c) && !isDigit(c) && c != '_' {
			return true
		}
	}

	switch strings.ToUpper(name) {
	case "SELECT", "FROM", "WHERE", "AND", "OR", "NOT", "NULL", "TRUE", "FALSE",
		"TABLE", "AS", "IN", "IS", "LIKE", "BETWEEN", "CASE", "WHEN", "THEN",
		"ELSE", "END", "ORDER", "BY", "GROUP", "LIMIT", "CAST", "DEFAULT":
		return true
	}
	return false
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
