package graph

import (
	"errors"
	"fmt"
)

// Dtype identifies the element type of a tensor.
type Dtype string

const (
	Float32 Dtype = "float32"
	Float64 Dtype = "float64"
	Int64   Dtype = "int64"
	Bool    Dtype = "bool"
)

// DynamicDim marks a dimension whose size is only known at run time.
const DynamicDim int64 = -1

// TensorSpec describes the type and shape of a tensor. Shape entries may be
// DynamicDim for dimensions resolved per run (batch size, sequence length).
type TensorSpec struct {
	Dtype Dtype   `json:"dtype"`
	Shape []int64 `json:"shape"`
}

// Elements returns the number of elements for a fully concrete shape, or an
// error if any dimension is dynamic.
func (s TensorSpec) Elements() (int64, error) {
	n := int64(1)
	for _, d := range s.Shape {
		if d == DynamicDim {
			return 0, fmt.Errorf("shape %v has dynamic dimensions", s.Shape)
		}
		n *= d
	}
	return n, nil
}

// Satisfies reports whether a concrete spec matches a declared spec,
// treating DynamicDim in the declaration as a wildcard.
func (s TensorSpec) Satisfies(decl TensorSpec) bool {
	if s.Dtype != decl.Dtype || len(s.Shape) != len(decl.Shape) {
		return false
	}
	for i, d := range decl.Shape {
		if d != DynamicDim && d != s.Shape[i] {
			return false
		}
	}
	return true
}

func (s TensorSpec) String() string {
	return fmt.Sprintf("%s%v", s.Dtype, s.Shape)
}

// Tensor is a concrete value: a spec plus flat row-major data. Backends that
// fabricate or transform values always keep Data sized to the spec.
type Tensor struct {
	Spec TensorSpec `json:"spec"`
	Data []float64  `json:"data"`
}

// NewTensor builds a tensor with zeroed data sized to the spec.
func NewTensor(spec TensorSpec) (Tensor, error) {
	n, err := spec.Elements()
	if err != nil {
		return Tensor{}, err
	}
	return Tensor{Spec: spec, Data: make([]float64, n)}, nil
}

// Validate checks that the data length matches the spec.
func (t Tensor) Validate() error {
	n, err := t.Spec.Elements()
	if err != nil {
		return err
	}
	if int64(len(t.Data)) != n {
		return fmt.Errorf("tensor data has %d elements, spec %s requires %d", len(t.Data), t.Spec, n)
	}
	return nil
}

// Values maps value names to concrete tensors. It is the unit of exchange
// between callers, managers, and backend sessions.
type Values map[string]Tensor

// Validate checks every tensor in the map.
func (v Values) Validate() error {
	var err error
	for name, t := range v {
		if terr := t.Validate(); terr != nil {
			err = errors.Join(err, fmt.Errorf("value %q: %w", name, terr))
		}
	}
	return err
}

// Clone returns a deep copy. Run implementations hand callers cloned values
// so a manager's internals never alias caller-visible data.
func (v Values) Clone() Values {
	out := make(Values, len(v))
	for name, t := range v {
		data := make([]float64, len(t.Data))
		copy(data, t.Data)
		shape := make([]int64, len(t.Spec.Shape))
		copy(shape, t.Spec.Shape)
		out[name] = Tensor{Spec: TensorSpec{Dtype: t.Spec.Dtype, Shape: shape}, Data: data}
	}
	return out
}
