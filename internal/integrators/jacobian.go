package integrators

import (
	"math"

	"github.com/san-kum/chembox/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

const epsilon = 2.220446049250313e-16

// NumericJacobian approximates d(rhs)/dx at (t, x) by central differences.
// It costs 2n right-hand side evaluations.
func NumericJacobian(rhs dynamo.RHSFunc, t float64, x dynamo.State) *mat.Dense {
	n := len(x)
	jac := mat.NewDense(n, n, nil)
	step := math.Cbrt(epsilon)
	xp := x.Clone()
	for j := 0; j < n; j++ {
		h := step * math.Max(math.Abs(x[j]), 1)
		orig := xp[j]

		xp[j] = orig + h
		fp := rhs(t, xp)
		xp[j] = orig - h
		fm := rhs(t, xp)
		xp[j] = orig

		for i := 0; i < n; i++ {
			jac.Set(i, j, (fp[i]-fm[i])/(2*h))
		}
	}
	return jac
}
