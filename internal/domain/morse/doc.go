// Package morse contains the core domain types of the signal: symbols,
// letters, messages, timing, and the pure step schedule derived from them.
//
// The schedule is data: Schedule turns a Message into ordered (level,
// duration) steps and LevelAt answers what the output line shows at any
// elapsed time, so an emission can be replayed without hardware.
package morse
