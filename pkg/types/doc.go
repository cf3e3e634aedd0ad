// Package types defines the record model, entity schemas, the store and
// repository interfaces, and the standard errors for casebook.
//
// A Record is one instance of a named entity ("cases", "payments", ...).
// Two stores can hold records: a RemoteStore that is authoritative when
// reachable and a local RecordStore that survives restarts. Repository is
// the facade callers use; it hides which store answered behind the
// Source carried on every returned record.
package types
