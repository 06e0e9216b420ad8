// Package scenario builds ring-road scenarios.
//
// A [Loop] is a closed road of one or more lanes laid on a circle and
// split into four quarter-arc edges (bottom, right, top, left). The
// constructor checks the net params and the initial placement and rejects
// anything the simulator could not load:
//
//	loop, err := scenario.NewLoop("double_ring", vehicles, net, initial)
//	if errors.Is(err, scenario.ErrInvalidNetParams) {
//	    // lanes < 1, length <= 0, ...
//	}
//
// [Loop.InitialPositions] deals vehicles across lanes and spaces them
// uniformly or randomly inside the first length-bunching meters.
package scenario
