// Package rest implements a PostgREST-compatible HTTP surface over Postgres
// relations: the query-string grammar is parsed into a canonical descriptor,
// compiled into a single parameterized statement, executed, and rendered into
// the usual response envelopes.
//
// The pipeline per request is parse, resolve session, enforce row security,
// build SQL, execute, format. Every stage before execute is a pure function
// of the request and the cached schema, which keeps the builders trivially
// testable.
package rest
