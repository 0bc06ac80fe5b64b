// Package query is the fluent query builder and the lazy result iterators
// built on top of it.
//
// A Query accumulates selected fields, where criteria, sort criteria and
// bounds into a criteria.Set, then runs one operation through an executor
// chain that ends at a backend.Adapter:
//
//	Query ──► Middleware... ──► direct executor ──► backend.Adapter
//	                               │
//	                               ├─ can-execute false: default result
//	                               └─ schema drift: Repair, retry once
//
// Reads come back as *Results, a batch that materializes rows lazily (into
// a factory-built object, a Row, or a projection of the selected fields).
// All returns a *Chunked iterator that walks an arbitrarily large result
// set chunk by chunk without ever holding more than one chunk.
//
// BUILDER ERRORS:
//
// Builder methods return *Query so calls chain. A mistake made while
// building (an unknown verb in Call, a zero sort direction, an empty option
// list) is recorded when it happens and returned by every later terminal
// operation, before the backend is contacted. Err reports it early.
//
// DYNAMIC DISPATCH:
//
// Call accepts "<verb>_<field>" method names, for example
// Call("in_user_id", ids) or Call("desc_created"). The verb is looked up in
// a fixed registry; unknown verbs fail with an *Error whose Code is
// ErrCodeUnknownMethod and whose Method names the offending call.
package query
