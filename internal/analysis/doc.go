// Package analysis looks for stop-and-go waves in rollout time series.
//
//   - [PowerSpectrum]: magnitude spectrum of a detrended series
//   - [DominantPeriod]: period of the strongest oscillation
//   - [Summarize]: mean, spread and range of a metric across rollouts
//
// A jam that travels around the ring shows up as a periodic dip in the
// fleet mean speed:
//
//	period, strength := analysis.DominantPeriod(r.MeanSpeeds(), 0.1)
package analysis
