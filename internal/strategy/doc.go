// Package strategy classifies intercepted requests into handling classes and
// keeps a registry of class descriptors (fetch order, namespace, key mode and
// fallback chain) for diagnostics.
package strategy
