// Package layout holds the pure text-layout rules for thermal labels: paper
// profiles, greedy word wrapping and the two-line name and code splits.
package layout
