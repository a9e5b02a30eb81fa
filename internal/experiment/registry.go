package experiment

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/san-kum/chembox/internal/dynamo"
	"github.com/san-kum/chembox/internal/integrators"
	"github.com/san-kum/chembox/internal/kinetics"
	"github.com/san-kum/chembox/internal/mechanism"
	"github.com/san-kum/chembox/internal/metrics"
)

// KernelFactory builds kinetic kernels for a mechanism.
type KernelFactory func(m *mechanism.Mechanism, opts kinetics.Options) (kinetics.Kernels, error)

// Registry maps configuration names to solvers, kernel implementations
// and built-in mechanisms.
type Registry struct {
	solvers map[string]func() dynamo.Solver
	kernels map[string]KernelFactory
}

func NewRegistry() *Registry {
	r := &Registry{
		solvers: make(map[string]func() dynamo.Solver),
		kernels: make(map[string]KernelFactory),
	}

	r.solvers["rosenbrock"] = func() dynamo.Solver { return integrators.NewRosenbrock() }
	r.solvers["dopri"] = func() dynamo.Solver { return integrators.NewDormandPrince() }
	r.solvers["exponential"] = func() dynamo.Solver { return integrators.NewExponential() }

	r.kernels["massaction"] = func(m *mechanism.Mechanism, opts kinetics.Options) (kinetics.Kernels, error) {
		return kinetics.NewMassAction(m, opts)
	}

	return r
}

// RegisterSolver adds or replaces a solver.
func (r *Registry) RegisterSolver(name string, fn func() dynamo.Solver) {
	r.solvers[name] = fn
}

// RegisterKernels adds or replaces a kernel implementation.
func (r *Registry) RegisterKernels(name string, fn KernelFactory) {
	r.kernels[name] = fn
}

func (r *Registry) GetSolver(name string) (dynamo.Solver, error) {
	fn, ok := r.solvers[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown solver %q (available: %v)", dynamo.ErrConfiguration, name, r.ListSolvers())
	}
	return fn(), nil
}

func (r *Registry) GetKernels(name string, m *mechanism.Mechanism, opts kinetics.Options) (kinetics.Kernels, error) {
	fn, ok := r.kernels[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown kernels %q (available: %v)", dynamo.ErrConfiguration, name, r.ListKernels())
	}
	return fn(m, opts)
}

// GetMechanism resolves a built-in name or a path to a YAML mechanism.
func (r *Registry) GetMechanism(ref string) (*mechanism.Mechanism, error) {
	if m, err := mechanism.Builtin(ref); err == nil {
		return m, nil
	}
	ext := filepath.Ext(ref)
	if ext == ".yaml" || ext == ".yml" {
		if _, err := os.Stat(ref); err == nil {
			return mechanism.Load(ref)
		}
	}
	return nil, fmt.Errorf("%w: unknown mechanism %q (built-in: %v, or a .yaml file)",
		dynamo.ErrConfiguration, ref, mechanism.BuiltinNames())
}

func (r *Registry) ListSolvers() []string {
	return sortedKeys(r.solvers)
}

func (r *Registry) ListKernels() []string {
	return sortedKeys(r.kernels)
}

func (r *Registry) ListMechanisms() []string {
	return mechanism.BuiltinNames()
}

// DefaultMetrics are attached to every run: total concentration drift,
// negative concentrations, and the peak of each plotted species.
func (r *Registry) DefaultMetrics(m *mechanism.Mechanism, peaks []string) []dynamo.Metric {
	out := []dynamo.Metric{
		metrics.NewMassDrift(nil),
		metrics.NewNegativity(1.0),
	}
	index := m.Index()
	for _, name := range peaks {
		if i, ok := index[name]; ok {
			out = append(out, metrics.NewPeak(name, i))
		}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
