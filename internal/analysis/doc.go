// Package analysis implements the fixed battery of analyses that run over
// a session's error tensor.
//
// # Overview
//
// Four analyzers plus a statistics digest consume read-only views of one
// immutable tensor:
//
//  1. SpectralAnalyzer: resamples the LogValue series onto a uniform grid
//     and computes a normalized Fourier magnitude spectrum to surface
//     periodic error bursts.
//  2. PatternExtractor: decomposes the time-by-pair matrix with an SVD
//     and reports the singular value profile, the "explained error
//     variance" of the dominant temporal modes.
//  3. AnomalyDetector: flags events whose LogValue strictly exceeds the
//     mean plus a sigma multiple of the sample standard deviation.
//  4. TransitionModel: estimates a row-stochastic first-order propagation
//     matrix from consecutive error hand-offs between components.
//
// Analyzers never mutate the tensor and have no dependency on each other,
// so the pipeline fans them out in parallel. An analyzer that cannot run
// on the given data returns an InsufficientDataError; the pipeline records
// the skip reason and the remaining analyses complete unaffected.
//
// # Edge behavior
//
// Degenerate inputs are valid, not errors: an all-zero series produces an
// unnormalized zero spectrum, a zero-variance series produces zero
// anomalies, and a component that never propagated an error keeps an
// all-zero transition row.
package analysis
