package gnn

import (
	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/types/shapes"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/janpfeifer/molgnn/internal/ragged"
	"github.com/pkg/errors"
)

// GRU is a gated recurrent unit cell used to update node states. It can be created with NewGRU, and once
// configured, applied with Done.
//
// Calling Done repeatedly with the same context scope reuses the same weights: the context must be unchecked
// (see context.Context.Checked), as it is the case for the models' contexts.
type GRU struct {
	ctx        *context.Context
	units      int
	resetAfter bool
}

// NewGRU creates a GRU cell with the given number of units, the dimension of the state.
// Its variables are created in the given context scope.
func NewGRU(ctx *context.Context, units int) *GRU {
	return &GRU{ctx: ctx, units: units, resetAfter: true}
}

// ResetAfter configures whether the reset gate is applied after the recurrent matrix multiplication
// (the default), or before.
func (gru *GRU) ResetAfter(resetAfter bool) *GRU {
	gru.resetAfter = resetAfter
	return gru
}

// Done applies the GRU to the previous state (shaped [N, units]) and input (shaped [N, inputDim]),
// returning the new state, shaped [N, units].
//
//	z = sigmoid(x·Wz + h·Uz + bz)
//	r = sigmoid(x·Wr + h·Ur + br)
//	c = tanh(x·Wc + r * (h·Uc + bc'))   (reset after)
//	c = tanh(x·Wc + (r * h)·Uc + bc)    (reset before)
//	h' = z * h + (1 - z) * c
func (gru *GRU) Done(state, input *Node) *Node {
	if state.Rank() != 2 || state.Shape().Dim(1) != gru.units {
		panic(errors.Wrapf(ragged.ErrShapeMismatch, "GRU with %d units got state shaped %s", gru.units, state.Shape()))
	}
	if input.Rank() != 2 || input.Shape().Dim(0) != state.Shape().Dim(0) {
		panic(errors.Wrapf(ragged.ErrShapeMismatch, "GRU input shaped %s doesn't match state shaped %s",
			input.Shape(), state.Shape()))
	}
	ctx := gru.ctx
	g := state.Graph()
	dtype := state.DType()
	units := gru.units
	inputDim := input.Shape().Dim(1)

	// Weights for the 3 projections: update gate (z), reset gate (r) and candidate (c).
	inputW := ctx.VariableWithShape("input_weights", shapes.Make(dtype, inputDim, 3, units)).ValueGraph(g)
	recurrentW := ctx.VariableWithShape("recurrent_weights", shapes.Make(dtype, units, 3, units)).ValueGraph(g)
	inputB := ctx.VariableWithValue("input_biases", tensors.FromShape(shapes.Make(dtype, 3, units))).ValueGraph(g)
	recurrentB := ctx.VariableWithValue("recurrent_biases", tensors.FromShape(shapes.Make(dtype, 3, units))).ValueGraph(g)

	// n->node, i->inputDim, u->units, k->3 projections, v->units.
	xProj := Add(Einsum("ni,iku->nku", input, inputW), ExpandAxes(inputB, 0))
	projection := func(x *Node, k int) *Node {
		return Reshape(Slice(x, AxisRange(), AxisElem(k), AxisRange()), -1, units)
	}
	xz, xr, xc := projection(xProj, 0), projection(xProj, 1), projection(xProj, 2)

	hProj := Einsum("nu,ukv->nkv", state, recurrentW)
	hz, hr := projection(hProj, 0), projection(hProj, 1)
	bRec := func(k int) *Node { return Reshape(Slice(recurrentB, AxisElem(k), AxisRange()), 1, units) }
	z := Sigmoid(Add(xz, Add(hz, bRec(0))))
	r := Sigmoid(Add(xr, Add(hr, bRec(1))))

	var candidate *Node
	if gru.resetAfter {
		hc := Add(projection(hProj, 2), bRec(2))
		candidate = Tanh(Add(xc, Mul(r, hc)))
	} else {
		uc := Reshape(Slice(recurrentW, AxisRange(), AxisElem(2), AxisRange()), units, units)
		hc := Add(Einsum("nu,uv->nv", Mul(r, state), uc), bRec(2))
		candidate = Tanh(Add(xc, hc))
	}
	return Add(Mul(z, state), Mul(OneMinus(z), candidate))
}
