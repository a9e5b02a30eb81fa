package sim_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/chembox/internal/dynamo"
	"github.com/san-kum/chembox/internal/integrators"
	"github.com/san-kum/chembox/internal/sim"
)

type call struct {
	t0       float64
	x0       dynamo.State
	duration float64
}

// fakeSolver adds one to every species per batch and can fail on demand.
type fakeSolver struct {
	calls  []call
	failAt int
	err    error
}

func (f *fakeSolver) Name() string { return "fake" }

func (f *fakeSolver) Solve(ctx context.Context, p dynamo.Problem, duration float64, cfg dynamo.SolverConfig) (*dynamo.Trajectory, error) {
	f.calls = append(f.calls, call{t0: p.T0, x0: p.X0.Clone(), duration: duration})
	if f.err != nil && len(f.calls)-1 == f.failAt {
		return nil, f.err
	}
	x := p.X0.Clone()
	for i := range x {
		x[i]++
	}
	tr := &dynamo.Trajectory{}
	tr.Append(p.T0, p.X0)
	tr.Append(p.T0+duration, x)
	return tr, nil
}

type decay struct{ k float64 }

func (d decay) Dim() int { return 2 }
func (d decay) Derive(t float64, x dynamo.State) dynamo.State {
	r := d.k * x[0]
	return dynamo.State{-r, r}
}
func (d decay) Jacobian(t float64, x dynamo.State) *mat.Dense {
	return mat.NewDense(2, 2, []float64{-d.k, 0, d.k, 0})
}

type countMetric struct{ n int }

func (c *countMetric) Name() string                     { return "count" }
func (c *countMetric) Observe(x dynamo.State, t float64) { c.n++ }
func (c *countMetric) Value() float64                   { return float64(c.n) }
func (c *countMetric) Reset()                           { c.n = 0 }

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func config(horizon, step float64) sim.Config {
	return sim.Config{
		Name:      "test",
		Horizon:   horizon,
		BatchStep: step,
		Solver:    dynamo.DefaultSolverConfig(2),
	}
}

var _ = Describe("Simulator", func() {
	var solver *fakeSolver

	BeforeEach(func() {
		solver = &fakeSolver{}
	})

	It("commits one row per batch", func() {
		s, err := sim.New(decay{1e-3}, solver, config(3600, 100), sim.WithLogger(quiet))
		Expect(err).NotTo(HaveOccurred())

		series, err := s.Run(context.Background(), dynamo.State{1, 0})
		Expect(err).NotTo(HaveOccurred())
		Expect(series.Len()).To(Equal(36))

		times := series.Times()
		for i, t := range times {
			Expect(t).To(Equal(float64(i+1) * 100))
			Expect(series.Row(i).Batch).To(Equal(i))
		}
		Expect(times[0]).To(Equal(100.0))
		Expect(times[len(times)-1]).To(Equal(3600.0))
	})

	It("starts every batch from the previously committed state", func() {
		s, err := sim.New(decay{1e-3}, solver, config(500, 100), sim.WithLogger(quiet))
		Expect(err).NotTo(HaveOccurred())

		series, err := s.Run(context.Background(), dynamo.State{5, 7})
		Expect(err).NotTo(HaveOccurred())
		Expect(solver.calls).To(HaveLen(5))

		Expect(solver.calls[0].x0).To(Equal(dynamo.State{5, 7}))
		for i := 1; i < len(solver.calls); i++ {
			Expect(solver.calls[i].x0).To(Equal(series.Row(i - 1).State))
		}
		for i, c := range solver.calls {
			Expect(c.t0).To(Equal(float64(i) * 100))
			Expect(c.duration).To(Equal(100.0))
		}
		last, ok := series.Last()
		Expect(ok).To(BeTrue())
		Expect(last.State).To(Equal(dynamo.State{10, 12}))
	})

	It("rounds a partial final batch up to a whole batch", func() {
		s, err := sim.New(decay{1e-3}, solver, config(250, 100), sim.WithLogger(quiet))
		Expect(err).NotTo(HaveOccurred())

		series, err := s.Run(context.Background(), dynamo.State{1, 0})
		Expect(err).NotTo(HaveOccurred())
		Expect(series.Times()).To(Equal([]float64{100, 200, 300}))
	})

	It("reports a failed batch with the last committed state", func() {
		boom := errors.New("boom")
		solver.failAt = 2
		solver.err = boom
		s, err := sim.New(decay{1e-3}, solver, config(1000, 100), sim.WithLogger(quiet))
		Expect(err).NotTo(HaveOccurred())

		series, err := s.Run(context.Background(), dynamo.State{1, 0})
		Expect(series).To(BeNil())
		Expect(err).To(MatchError(boom))

		var batchErr *dynamo.BatchError
		Expect(errors.As(err, &batchErr)).To(BeTrue())
		Expect(batchErr.Batch).To(Equal(2))
		Expect(batchErr.Elapsed).To(Equal(200.0))
		Expect(batchErr.State).To(Equal(dynamo.State{3, 2}))
		Expect(s.Phase()).To(Equal(sim.Finished))
	})

	It("tracks its phase and notifies observers in order", func() {
		var seen []float64
		var phases []sim.Phase
		var s *sim.Simulator
		obs := sim.ObserverFunc(func(row sim.Row) {
			seen = append(seen, row.Elapsed)
			phases = append(phases, s.Phase())
		})

		var err error
		s, err = sim.New(decay{1e-3}, solver, config(300, 100), sim.WithLogger(quiet), sim.WithObserver(obs))
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Phase()).To(Equal(sim.NotStarted))

		_, err = s.Run(context.Background(), dynamo.State{1, 0})
		Expect(err).NotTo(HaveOccurred())
		Expect(seen).To(Equal([]float64{100, 200, 300}))
		Expect(phases).To(HaveEach(sim.BatchComplete))
		Expect(s.Phase()).To(Equal(sim.Finished))
	})

	It("stops between batches when cancelled", func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		obs := sim.ObserverFunc(func(row sim.Row) {
			if row.Batch == 1 {
				cancel()
			}
		})
		s, err := sim.New(decay{1e-3}, solver, config(1000, 100), sim.WithLogger(quiet), sim.WithObserver(obs))
		Expect(err).NotTo(HaveOccurred())

		_, err = s.Run(ctx, dynamo.State{1, 0})
		Expect(err).To(MatchError(context.Canceled))
		var batchErr *dynamo.BatchError
		Expect(errors.As(err, &batchErr)).To(BeTrue())
		Expect(batchErr.Batch).To(Equal(2))
		Expect(solver.calls).To(HaveLen(2))
	})

	It("feeds committed states to metrics", func() {
		m := &countMetric{}
		s, err := sim.New(decay{1e-3}, solver, config(3600, 100), sim.WithLogger(quiet), sim.WithMetrics(m))
		Expect(err).NotTo(HaveOccurred())

		series, err := s.Run(context.Background(), dynamo.State{1, 0})
		Expect(err).NotTo(HaveOccurred())
		Expect(series.Metrics).To(HaveKeyWithValue("count", 36.0))

		// A second run starts the metric afresh.
		series, err = s.Run(context.Background(), dynamo.State{1, 0})
		Expect(err).NotTo(HaveOccurred())
		Expect(series.Metrics["count"]).To(Equal(36.0))
	})

	DescribeTable("rejects inconsistent configuration",
		func(cfg sim.Config, target error) {
			_, err := sim.New(decay{1e-3}, solver, cfg)
			Expect(err).To(MatchError(target))
		},
		Entry("horizon shorter than a batch", config(50, 100), dynamo.ErrConfiguration),
		Entry("zero batch step", config(100, 0), dynamo.ErrConfiguration),
		Entry("negative horizon", config(-100, 10), dynamo.ErrConfiguration),
		Entry("tolerances for the wrong species count", sim.Config{Horizon: 100, BatchStep: 10, Solver: dynamo.DefaultSolverConfig(3)}, dynamo.ErrDimensionMismatch),
	)

	It("rejects an initial state of the wrong size", func() {
		s, err := sim.New(decay{1e-3}, solver, config(100, 10), sim.WithLogger(quiet))
		Expect(err).NotTo(HaveOccurred())
		_, err = s.Run(context.Background(), dynamo.State{1, 0, 0})
		Expect(err).To(MatchError(dynamo.ErrDimensionMismatch))
		Expect(solver.calls).To(BeEmpty())
	})

	It("integrates first-order decay with the exponential solver", func() {
		const k = 1e-3
		s, err := sim.New(decay{k}, integrators.NewExponential(), config(3600, 100),
			sim.WithLogger(quiet), sim.WithSpecies([]string{"A", "B"}))
		Expect(err).NotTo(HaveOccurred())

		series, err := s.Run(context.Background(), dynamo.State{1e10, 0})
		Expect(err).NotTo(HaveOccurred())
		Expect(series.Species).To(Equal([]string{"A", "B"}))
		Expect(series.Len()).To(Equal(36))

		for i, row := range series.Rows() {
			want := 1e10 * math.Exp(-k*row.Elapsed)
			Expect(row.State[0]).To(BeNumerically("~", want, want*1e-9), "row %d", i)
			Expect(row.State.Sum()).To(BeNumerically("~", 1e10, 1e-2))
		}
	})
})

var _ = Describe("Config.Rows", func() {
	DescribeTable("counts started batches",
		func(horizon, step float64, want int) {
			Expect(config(horizon, step).Rows()).To(Equal(want))
		},
		Entry("whole multiple", 3600.0, 100.0, 36),
		Entry("trailing partial batch", 250.0, 100.0, 3),
		Entry("single short batch", 50.0, 100.0, 1),
		Entry("float quotient just above a whole number", 0.3, 0.1, 3),
		Entry("horizon within round-off of a multiple", 100.00000001, 100.0, 1),
		Entry("horizon clearly past a multiple", 100.001, 100.0, 2),
	)
})

var _ = Describe("Series", func() {
	It("hands out copies", func() {
		series := sim.NewSeries("s", []string{"A"}, []sim.Row{{Batch: 0, Elapsed: 10, State: dynamo.State{1}}})
		row := series.Row(0)
		row.State[0] = 99
		Expect(series.Row(0).State[0]).To(Equal(1.0))

		m := series.Matrix()
		m[0][0] = 42
		Expect(series.Column(0)).To(Equal([]float64{1}))
	})

	It("reports no last row when empty", func() {
		_, ok := sim.NewSeries("empty", nil, nil).Last()
		Expect(ok).To(BeFalse())
	})
})
