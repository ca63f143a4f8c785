// Package payload provides the transport-safe value model for results that
// cross the worker/orchestrator process boundary.
//
// A Value is an arbitrarily nested tree of scalars, strings, lists, maps,
// tensors, and host arrays. Workers produce Values; before a Value is handed
// to the result channel it must be moved to host-resident form so that no
// device-backed storage leaks across the process boundary.
package payload

import "fmt"

// Device identifies where a tensor's storage lives.
type Device string

const (
	// DeviceHost is host (CPU) memory. Only host-resident tensors are safe
	// to transport.
	DeviceHost Device = "host"
)

// Value is a payload tree node. Valid dynamic types:
//
//	nil, bool, int64, float64, string, []Value, map[string]Value, Tensor, HostArray
//
// Helper constructors normalize Go ints and float32s into the canonical
// scalar types.
type Value any

// Tensor is a device-tagged numeric array. Tensors on a non-host device must
// be moved to host memory before transport.
type Tensor struct {
	Device Device
	Shape  []int
	Data   []float64
}

// HostArray is the transport-safe numeric representation of a tensor.
// It carries no device tag; it is always host-resident.
type HostArray struct {
	Shape []int
	Data  []float64
}

// Scalar wraps a single float64 in a rank-0 tensor on the given device.
func Scalar(device Device, v float64) Tensor {
	return Tensor{Device: device, Data: []float64{v}}
}

// Item returns the single element of a rank-0 or one-element tensor.
func (t Tensor) Item() (float64, bool) {
	if len(t.Data) != 1 {
		return 0, false
	}
	return t.Data[0], true
}

// OnHost reports whether the tensor's storage is host-resident.
func (t Tensor) OnHost() bool {
	return t.Device == DeviceHost || t.Device == ""
}

// ToHost returns a host-resident copy of the tensor.
func (t Tensor) ToHost() Tensor {
	out := Tensor{Device: DeviceHost, Shape: cloneInts(t.Shape), Data: cloneFloats(t.Data)}
	return out
}

// AsArray converts the tensor to its transport-safe array form.
func (t Tensor) AsArray() HostArray {
	return HostArray{Shape: cloneInts(t.Shape), Data: cloneFloats(t.Data)}
}

// AsTensor converts a host array back to a host-resident tensor.
func (a HostArray) AsTensor() Tensor {
	return Tensor{Device: DeviceHost, Shape: cloneInts(a.Shape), Data: cloneFloats(a.Data)}
}

// Apply walks v recursively and replaces every Tensor leaf with fn(t).
// Containers are rebuilt, never mutated in place, so the input remains
// usable by the caller.
func Apply(v Value, fn func(Tensor) Value) Value {
	switch x := v.(type) {
	case Tensor:
		return fn(x)
	case []Value:
		out := make([]Value, len(x))
		for i, e := range x {
			out[i] = Apply(e, fn)
		}
		return out
	case map[string]Value:
		out := make(map[string]Value, len(x))
		for k, e := range x {
			out[k] = Apply(e, fn)
		}
		return out
	default:
		return normalizeScalar(v)
	}
}

// MoveToHost returns a copy of v with every tensor moved to host memory.
// Non-tensor leaves pass through unchanged.
func MoveToHost(v Value) Value {
	return Apply(v, func(t Tensor) Value { return t.ToHost() })
}

// ToHostArrays returns a copy of v with every tensor converted to its
// transport-safe HostArray form. This is the representation that crosses the
// result channel inside the metrics queue.
func ToHostArrays(v Value) Value {
	return Apply(v, func(t Tensor) Value { return t.AsArray() })
}

// FromHostArrays is the inverse of ToHostArrays: every HostArray leaf
// becomes a host-resident tensor again.
func FromHostArrays(v Value) Value {
	switch x := v.(type) {
	case HostArray:
		return x.AsTensor()
	case []Value:
		out := make([]Value, len(x))
		for i, e := range x {
			out[i] = FromHostArrays(e)
		}
		return out
	case map[string]Value:
		out := make(map[string]Value, len(x))
		for k, e := range x {
			out[k] = FromHostArrays(e)
		}
		return out
	default:
		return normalizeScalar(v)
	}
}

// normalizeScalar maps convenience Go scalar types onto the canonical ones.
func normalizeScalar(v Value) Value {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case float32:
		return float64(x)
	case nil, bool, int64, float64, string, Tensor, HostArray, []Value, map[string]Value:
		return v
	default:
		panic(fmt.Sprintf("payload: unsupported value type %T", v))
	}
}

func cloneInts(s []int) []int {
	if s == nil {
		return nil
	}
	out := make([]int, len(s))
	copy(out, s)
	return out
}

func cloneFloats(s []float64) []float64 {
	if s == nil {
		return nil
	}
	out := make([]float64, len(s))
	copy(out, s)
	return out
}
