// Package memory provides map-backed repositories. They honour the same
// atomicity contract as the SQL stores and are used by tests and by the
// "memory" database driver.
package memory
