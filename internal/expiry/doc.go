// Package expiry classifies pharmacy lots by remaining shelf life, totals the
// value at risk and the realised losses, and suggests sale prices.
//
// Every function is pure: no clock, no I/O, no shared state. Callers inject
// the reference date and hand in records already normalised by the data
// source. Monetary sums keep full decimal precision; rounding to cents is left
// to whoever renders the numbers.
package expiry
