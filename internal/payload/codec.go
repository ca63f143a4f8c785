package payload

import (
	"encoding/json"
	"fmt"
)

// The wire encoding is a small tagged union so the Value tree survives a
// trip through a byte pipe between processes. Plain JSON cannot distinguish
// a tensor from a map, so every node carries a type tag.

type wireNode struct {
	T      string          `json:"t"`
	V      json.RawMessage `json:"v,omitempty"`
	Device string          `json:"device,omitempty"`
	Shape  []int           `json:"shape,omitempty"`
	Data   []float64       `json:"data,omitempty"`
}

const (
	wireNil    = "nil"
	wireBool   = "bool"
	wireInt    = "int"
	wireFloat  = "float"
	wireString = "str"
	wireList   = "list"
	wireMap    = "map"
	wireTensor = "tensor"
	wireArray  = "array"
)

// Marshal encodes a Value into its wire form.
func Marshal(v Value) ([]byte, error) {
	node, err := encode(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(node)
}

// Unmarshal decodes a Value from its wire form.
func Unmarshal(data []byte) (Value, error) {
	var node wireNode
	if err := json.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("payload: decode: %w", err)
	}
	return decode(node)
}

func encode(v Value) (wireNode, error) {
	switch x := v.(type) {
	case nil:
		return wireNode{T: wireNil}, nil
	case bool:
		return wireScalar(wireBool, x)
	case int:
		return wireScalar(wireInt, int64(x))
	case int32:
		return wireScalar(wireInt, int64(x))
	case int64:
		return wireScalar(wireInt, x)
	case float32:
		return wireScalar(wireFloat, float64(x))
	case float64:
		return wireScalar(wireFloat, x)
	case string:
		return wireScalar(wireString, x)
	case Tensor:
		return wireNode{T: wireTensor, Device: string(x.Device), Shape: x.Shape, Data: x.Data}, nil
	case HostArray:
		return wireNode{T: wireArray, Shape: x.Shape, Data: x.Data}, nil
	case []Value:
		nodes := make([]wireNode, len(x))
		for i, e := range x {
			n, err := encode(e)
			if err != nil {
				return wireNode{}, err
			}
			nodes[i] = n
		}
		return wireScalar(wireList, nodes)
	case map[string]Value:
		nodes := make(map[string]wireNode, len(x))
		for k, e := range x {
			n, err := encode(e)
			if err != nil {
				return wireNode{}, err
			}
			nodes[k] = n
		}
		return wireScalar(wireMap, nodes)
	default:
		return wireNode{}, fmt.Errorf("payload: unsupported value type %T", v)
	}
}

func wireScalar(tag string, v any) (wireNode, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return wireNode{}, fmt.Errorf("payload: encode %s: %w", tag, err)
	}
	return wireNode{T: tag, V: raw}, nil
}

func decode(node wireNode) (Value, error) {
	switch node.T {
	case wireNil:
		return nil, nil
	case wireBool:
		var b bool
		if err := unwrap(node, &b); err != nil {
			return nil, err
		}
		return b, nil
	case wireInt:
		var i int64
		if err := unwrap(node, &i); err != nil {
			return nil, err
		}
		return i, nil
	case wireFloat:
		var f float64
		if err := unwrap(node, &f); err != nil {
			return nil, err
		}
		return f, nil
	case wireString:
		var s string
		if err := unwrap(node, &s); err != nil {
			return nil, err
		}
		return s, nil
	case wireTensor:
		return Tensor{Device: Device(node.Device), Shape: node.Shape, Data: node.Data}, nil
	case wireArray:
		return HostArray{Shape: node.Shape, Data: node.Data}, nil
	case wireList:
		var nodes []wireNode
		if err := unwrap(node, &nodes); err != nil {
			return nil, err
		}
		out := make([]Value, len(nodes))
		for i, n := range nodes {
			v, err := decode(n)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case wireMap:
		var nodes map[string]wireNode
		if err := unwrap(node, &nodes); err != nil {
			return nil, err
		}
		out := make(map[string]Value, len(nodes))
		for k, n := range nodes {
			v, err := decode(n)
			if err != nil {
				return nil, err
			}
			out[k] = v
		}
		return out, nil
	default:
		return nil, fmt.Errorf("payload: unknown wire tag %q", node.T)
	}
}

func unwrap(node wireNode, dst any) error {
	if err := json.Unmarshal(node.V, dst); err != nil {
		return fmt.Errorf("payload: decode %s: %w", node.T, err)
	}
	return nil
}

// MarshalJSON encodes the queue as an ordered list of wire nodes.
func (q *Queue) MarshalJSON() ([]byte, error) {
	nodes := make([]wireNode, len(q.items))
	for i, v := range q.items {
		n, err := encode(v)
		if err != nil {
			return nil, err
		}
		nodes[i] = n
	}
	return json.Marshal(nodes)
}

// UnmarshalJSON decodes a queue previously encoded with MarshalJSON.
func (q *Queue) UnmarshalJSON(data []byte) error {
	var nodes []wireNode
	if err := json.Unmarshal(data, &nodes); err != nil {
		return fmt.Errorf("payload: decode queue: %w", err)
	}
	q.items = q.items[:0]
	for _, n := range nodes {
		v, err := decode(n)
		if err != nil {
			return err
		}
		q.items = append(q.items, v)
	}
	return nil
}
