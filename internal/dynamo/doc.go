// Package dynamo provides the core primitives shared by the box model.
//
// The package defines the types that flow between the chemistry, the
// solvers and the batch controller:
//
//   - [State]: concentration vector in molecules/cc
//   - [System]: an ODE right-hand side with an analytic Jacobian
//   - [Problem]: one solver invocation (time origin, initial state, RHS, Jacobian)
//   - [Solver]: the stiff solver contract
//   - [SolverConfig]: immutable solver tuning, built once per run
//   - [Trajectory]: the (time, state) samples returned by a solve
//
// # Example
//
//	box, _ := chem.NewBox(ctx, kernels)
//	p := dynamo.Problem{T0: 0, X0: ctx.Initial(), RHS: box.Derive, Jac: box.Jacobian}
//	traj, err := integrators.NewRosenbrock().Solve(ctx, p, 100, dynamo.DefaultSolverConfig(box.Dim()))
//
// # Thread Safety
//
// Values in this package are plain data. A [Problem] must not be shared
// between concurrent solves unless its RHS and Jacobian are pure.
package dynamo
