package payload

import (
	"reflect"
	"testing"
)

func TestMoveToHostConvertsNestedTensors(t *testing.T) {
	v := map[string]Value{
		"loss": Scalar("cuda:0", 0.42),
		"nested": []Value{
			Tensor{Device: "cuda:1", Shape: []int{2}, Data: []float64{1, 2}},
			"label",
			int64(7),
		},
	}

	out := MoveToHost(v).(map[string]Value)

	loss := out["loss"].(Tensor)
	if !loss.OnHost() {
		t.Errorf("expected loss on host, got device %q", loss.Device)
	}
	nested := out["nested"].([]Value)
	inner := nested[0].(Tensor)
	if !inner.OnHost() {
		t.Errorf("expected nested tensor on host, got device %q", inner.Device)
	}
	if !reflect.DeepEqual(inner.Data, []float64{1, 2}) {
		t.Errorf("tensor data changed: %v", inner.Data)
	}
	if nested[1] != "label" || nested[2] != int64(7) {
		t.Errorf("non-tensor leaves changed: %v", nested)
	}
}

func TestMoveToHostDoesNotMutateInput(t *testing.T) {
	in := map[string]Value{"acc": Scalar("cuda:0", 0.9)}
	MoveToHost(in)

	if in["acc"].(Tensor).Device != "cuda:0" {
		t.Error("input tree was mutated")
	}
}

func TestHostArrayRoundTrip(t *testing.T) {
	orig := Tensor{Device: "cuda:0", Shape: []int{2, 2}, Data: []float64{1, 2, 3, 4}}

	back := FromHostArrays(ToHostArrays(Value(orig)))

	tensor, ok := back.(Tensor)
	if !ok {
		t.Fatalf("expected Tensor, got %T", back)
	}
	if !tensor.OnHost() {
		t.Errorf("expected host tensor, got device %q", tensor.Device)
	}
	if !reflect.DeepEqual(tensor.Shape, orig.Shape) || !reflect.DeepEqual(tensor.Data, orig.Data) {
		t.Errorf("round trip changed tensor: %+v", tensor)
	}
}

func TestScalarItem(t *testing.T) {
	v, ok := Scalar(DeviceHost, 3.5).Item()
	if !ok || v != 3.5 {
		t.Errorf("Item() = %v, %v", v, ok)
	}

	if _, ok := (Tensor{Data: []float64{1, 2}}).Item(); ok {
		t.Error("Item() should fail on multi-element tensor")
	}
}

func TestNormalizeScalarWidensSmallTypes(t *testing.T) {
	out := Apply(Value(map[string]Value{"n": 3, "f": float32(1.5)}), func(t Tensor) Value { return t })

	m := out.(map[string]Value)
	if m["n"] != int64(3) {
		t.Errorf("int not widened: %T", m["n"])
	}
	if m["f"] != float64(1.5) {
		t.Errorf("float32 not widened: %T", m["f"])
	}
}

func TestQueueOrdering(t *testing.T) {
	q := NewQueue()
	q.Put("a")
	q.Put("b")
	q.Put("c")

	if q.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", q.Len())
	}

	for _, want := range []string{"a", "b", "c"} {
		got, ok := q.Get()
		if !ok || got != want {
			t.Errorf("Get() = %v, %v, want %q", got, ok, want)
		}
	}

	if !q.Empty() {
		t.Error("queue should be empty after draining")
	}
	if _, ok := q.Get(); ok {
		t.Error("Get() on empty queue should report not ok")
	}
}
