// Package viz renders box-model runs in the terminal.
//
// [Model] is a Bubble Tea program that follows a run batch by batch: it is
// fed by a [sim.Observer] and shows progress, the latest concentrations and
// a log10 chart of the focused species. [Picker] chooses a preset before a
// run. [Chart] draws a finished series for non-interactive output.
//
// # Key Bindings
//
//	Tab   - Focus next plotted species
//	T     - Cycle color themes
//	Q     - Cancel the run and quit
package viz
