package acsf

import (
	"math"

	. "github.com/gomlx/gomlx/graph"
)

// Distance returns the euclidean distance between the rows of a and b (both shaped [T, 3]), shaped [T, 1].
// If eps > 0, it's added to the squared distance before the square root.
func Distance(a, b *Node, eps float64) *Node {
	squared := ExpandAxes(ReduceSum(Square(Sub(a, b)), 1), -1)
	if eps > 0 {
		squared = AddScalar(squared, eps)
	}
	return Sqrt(squared)
}

// CutoffWeight returns the smooth cutoff fc = 0.5·(cos(π·r/rc) + 1) for r < rc, and exactly 0 for r >= rc.
//
// r is shaped [T, 1] or like rc, and rc is shaped [T, m]. The result is shaped like rc.
func CutoffWeight(r, rc *Node) *Node {
	r = BroadcastToDims(r, rc.Shape().Dimensions...)
	clipped := Min(r, rc)
	fc := MulScalar(AddScalar(Cos(Div(MulScalar(clipped, math.Pi), rc)), 1), 0.5)
	return Where(GreaterOrEqual(r, rc), ZerosLike(fc), fc)
}

// GaussianRadial returns exp(-η·(r-μ)²). r is shaped [T, 1], eta and mu [T, m].
func GaussianRadial(r, eta, mu *Node) *Node {
	return Exp(Neg(Mul(eta, Square(Sub(r, mu)))))
}

// CosAngle returns the cosine of the angle between vectors u and v (both shaped [T, 3]), given their norms
// (shaped [T, 1]), shaped [T, 1]. The epsilon is added to the norms before dividing.
func CosAngle(u, v, normU, normV *Node, epsilon float64) *Node {
	dot := ExpandAxes(ReduceSum(Mul(u, v), 1), -1)
	return Div(dot, Mul(AddScalar(normU, epsilon), AddScalar(normV, epsilon)))
}

// AngularTerm returns (1 + λ·cosθ)^ζ · 2^(1-ζ), with the base clamped at 0.
// cos is shaped [T, 1], zeta and lambda [T, m].
func AngularTerm(cos, zeta, lambda *Node) *Node {
	base := MaxScalar(AddScalar(Mul(lambda, cos), 1), 0)
	scale := Exp(MulScalar(OneMinus(zeta), math.Ln2))
	return Mul(Pow(base, zeta), scale)
}

// paramComponent returns component k of per-tuple parameters shaped [T, m, K], shaped [T, m].
func paramComponent(params *Node, k int) *Node {
	numDescriptors := params.Shape().Dim(1)
	return Reshape(Slice(params, AxisRange(), AxisRange(), AxisElem(k)), -1, numDescriptors)
}
