// Package viz replays stored ring road rollouts in the terminal.
//
// The replay is a Bubble Tea program: a braille [Canvas] shows the ring
// with every vehicle at its position, next to the fleet mean speed plotted
// with asciigraph and a sparkline of speeds in ring order, where a
// stop-and-go wave shows up as a travelling dip.
//
// # Key Bindings
//
//	Space - Pause/Resume
//	[ ]   - Step back/forward
//	+ -   - Playback rate
//	R     - Restart
//	T     - Cycle color themes
//	?     - Show help overlay
package viz
