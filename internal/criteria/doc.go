// Package criteria holds the accumulated state of a query before it is
// handed to a backend.
//
// A Set is a plain value: selected fields (an ordered multi-map), where
// criteria, sort criteria, paging bounds and the can-execute flag. It knows
// nothing about SQL or about how results are materialized; the query package
// fills it and backends read it.
//
// WHERE VERBS:
//
//	is, not              equality / inequality (Unset compares against NULL)
//	lte, lt, gte, gt     ordering comparisons
//	in, nin              membership over a value list
//
// Each criterion may carry backend options (for example date-part
// extraction) that are passed through untouched.
//
// EMPTY VS ERROR:
//
// An empty value list for in/nin can never match anything, so the set is
// marked as not executable and backends are never consulted. An empty list
// under an option key is a caller mistake and is rejected by the builder.
//
// BOUNDS:
//
// Limit 0 means unbounded. When a page is set the offset is derived as
// (page-1)*limit. The probe limit is limit+1 and lets a bounded fetch tell
// whether more rows exist without a second query.
package criteria
