// Package pep508 parses Python dependency specifiers.
//
// A dependency specifier names a distribution, optional extras, and either
// a version constraint or a direct URL, optionally followed by an
// environment marker:
//
//	requests[security,socks]>=2.28,<3 ; python_version >= "3.8"
//	pip @ https://github.com/pypa/pip/archive/22.0.2.zip
//
// Version clauses are validated with [github.com/aquasecurity/go-pep440-version].
// Markers are kept verbatim; evaluating them is left to the resolver.
//
// Failures are reported as [*Error], which records the byte range of the
// offending input so callers can point at it:
//
//	Expected an alphanumeric character starting the extra name, found 'ö'
//	numpy[ö]==1.29
//	      ^
package pep508
