// Package workflow defines the declarative model for push-triggered
// workflow definitions and the deterministic operations over them:
// strict YAML loading, structural validation, canonical identity hashing,
// and job ordering.
//
// A Workflow is immutable once loaded and validated; all accessors are
// safe for concurrent use.
package workflow
