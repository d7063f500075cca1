// Package cli implements the odatad command line: serve, seed, validate and
// version.
package cli
