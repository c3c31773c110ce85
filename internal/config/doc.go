// Package config defines the format-agnostic settings model for the
// scheduler, along with the Loader interface for reading it from
// configuration sources. The HCL implementation lives in this package too;
// the executor consumes only the model and never sees a parser.
package config
