// Package analysis derives statistics from packing runs: buffer and open-zone
// accounting for 1-D runs, gasket measurements for 2-D runs and jam
// histograms over many independent runs of one parameter set.
package analysis
