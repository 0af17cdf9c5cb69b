// Package types defines the shared contracts of the Tabula data engine:
// the Result type returned by commands, sentinel errors, Config, and the
// capability interfaces (file system, progress) that collaborators implement.
package types
