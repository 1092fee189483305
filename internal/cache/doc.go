// Package cache implements the versioned cache namespaces. A Store holds any
// number of named namespaces; each namespace maps a request key (an absolute
// URL, optionally path-only) to a stored Response. The Manager binds a Store
// to one version tag and owns namespace lifetime: handlers only borrow the
// static and runtime namespaces for the duration of a request, and the
// lifecycle controller is the only caller that deletes namespaces.
//
// Backends: memory (tests, ephemeral runs), fs (StoragePath/<namespace>/),
// sqlite and redis. All of them copy on Put and Match so stored entries are
// never mutated in place.
package cache
