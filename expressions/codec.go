package expressions

import (
	"fmt"

	"github.com/valyala/fastjson"

	"github.com/viraaj-s/AliceO2/internal/msgpack"
)

// NodeDefinition is the serializable form of an expression tree, used to
// configure filters from files and to ship them to remote workers.
//
// Exactly one shape is valid per node:
//
//	{"op": ">", "args": [<left>, <right>]}   operation, one arg for unary ops
//	{"column": "x", "kind": "float"}          binding
//	{"kind": "float", "value": 1.5}           literal
type NodeDefinition struct {
	Op     string           `msgpack:"op,omitempty"`
	Column string           `msgpack:"column,omitempty"`
	Kind   string           `msgpack:"kind,omitempty"`
	Value  any              `msgpack:"value"`
	Args   []NodeDefinition `msgpack:"args,omitempty"`
}

// Definition returns the serializable form of the subtree rooted at n.
// n is only read, not consumed.
func Definition(n *Node) NodeDefinition {
	switch self := n.self.(type) {
	case LiteralNode:
		return NodeDefinition{Kind: self.Value.Kind().String(), Value: self.Value.Any()}
	case BindingNode:
		return NodeDefinition{Column: self.Name, Kind: self.Kind.String()}
	case OpNode:
		def := NodeDefinition{Op: self.Op.String()}
		for _, c := range []*Node{n.left, n.right} {
			if c != nil {
				def.Args = append(def.Args, Definition(c))
			}
		}
		return def
	default:
		return NodeDefinition{}
	}
}

// Node builds a fresh expression tree from the definition.
func (d NodeDefinition) Node() (*Node, error) {
	switch {
	case d.Op != "":
		op, err := ParseOp(d.Op)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedTree, err)
		}
		want := 2
		if op.IsUnary() {
			want = 1
		}
		if len(d.Args) != want {
			return nil, fmt.Errorf("%w: %s takes %d arguments, got %d", ErrMalformedTree, op, want, len(d.Args))
		}
		left, err := d.Args[0].Node()
		if err != nil {
			return nil, err
		}
		var right *Node
		if want == 2 {
			if right, err = d.Args[1].Node(); err != nil {
				return nil, err
			}
		}
		return NewOp(op, left, right)
	case d.Column != "":
		kind, err := ParseKind(d.Kind)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", d.Column, err)
		}
		return Bind(d.Column, kind), nil
	case d.Value != nil:
		kind, err := ParseKind(d.Kind)
		if err != nil {
			return nil, err
		}
		v, err := convertValue(d.Value, kind)
		if err != nil {
			return nil, err
		}
		return LitValue(v), nil
	default:
		return nil, fmt.Errorf("%w: node has neither op, column nor value", ErrMalformedTree)
	}
}

// MarshalMsgpack encodes the filter for transport.
func (f *Filter) MarshalMsgpack() ([]byte, error) {
	return msgpack.Encode(Definition(f.Root()))
}

// UnmarshalFilterMsgpack decodes a filter produced by Filter.MarshalMsgpack.
func UnmarshalFilterMsgpack(data []byte) (*Filter, error) {
	var def NodeDefinition
	if err := msgpack.Decode(data, &def); err != nil {
		return nil, err
	}
	root, err := def.Node()
	if err != nil {
		return nil, err
	}
	return NewFilter(root), nil
}

var jsonParsers fastjson.ParserPool

// ParseFilterJSON decodes a JSON filter definition.
func ParseFilterJSON(data []byte) (*Filter, error) {
	p := jsonParsers.Get()
	defer jsonParsers.Put(p)

	v, err := p.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("invalid filter JSON: %w", err)
	}
	def, err := jsonDefinition(v, "root")
	if err != nil {
		return nil, err
	}
	root, err := def.Node()
	if err != nil {
		return nil, err
	}
	return NewFilter(root), nil
}

func jsonDefinition(v *fastjson.Value, path string) (NodeDefinition, error) {
	if v.Type() != fastjson.TypeObject {
		return NodeDefinition{}, fmt.Errorf("%s: expected object, got %s", path, v.Type())
	}
	def := NodeDefinition{
		Op:     string(v.GetStringBytes("op")),
		Column: string(v.GetStringBytes("column")),
		Kind:   string(v.GetStringBytes("kind")),
	}
	if raw := v.Get("value"); raw != nil {
		switch raw.Type() {
		case fastjson.TypeNumber:
			f, err := raw.Float64()
			if err != nil {
				return NodeDefinition{}, fmt.Errorf("%s.value: %w", path, err)
			}
			def.Value = f
		case fastjson.TypeTrue:
			def.Value = true
		case fastjson.TypeFalse:
			def.Value = false
		default:
			return NodeDefinition{}, fmt.Errorf("%s.value: %w: %s", path, ErrUnsupportedType, raw.Type())
		}
	}
	for i, a := range v.GetArray("args") {
		arg, err := jsonDefinition(a, fmt.Sprintf("%s.args[%d]", path, i))
		if err != nil {
			return NodeDefinition{}, err
		}
		def.Args = append(def.Args, arg)
	}
	return def, nil
}

// MarshalJSON encodes the filter in the definition format read by ParseFilterJSON.
func (f *Filter) MarshalJSON() ([]byte, error) {
	var a fastjson.Arena
	return jsonValue(&a, Definition(f.Root())).MarshalTo(nil), nil
}

func jsonValue(a *fastjson.Arena, d NodeDefinition) *fastjson.Value {
	o := a.NewObject()
	if d.Op != "" {
		o.Set("op", a.NewString(d.Op))
		args := a.NewArray()
		for i, arg := range d.Args {
			args.SetArrayItem(i, jsonValue(a, arg))
		}
		o.Set("args", args)
		return o
	}
	if d.Column != "" {
		o.Set("column", a.NewString(d.Column))
	}
	o.Set("kind", a.NewString(d.Kind))
	switch v := d.Value.(type) {
	case int32:
		o.Set("value", a.NewNumberInt(int(v)))
	case float32:
		o.Set("value", a.NewNumberFloat64(float64(v)))
	case float64:
		o.Set("value", a.NewNumberFloat64(v))
	case bool:
		if v {
			o.Set("value", a.NewTrue())
		} else {
			o.Set("value", a.NewFalse())
		}
	}
	return o
}
