// Package server hosts the Fiber HTTP ingress: request-id middleware, Host to
// origin resolution, and the Ingress handler that turns a fiber request into a
// proxy.Request, classifies it and writes the strategy result back. Before the
// lifecycle controller claims clients every request is forwarded untouched.
package server
