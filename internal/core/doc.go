// Package core provides the domain logic of the childcare facility service.
//
// The package turns parsed open-data tables into an immutable, queryable
// [Snapshot]. It has no knowledge of HTTP or of where source text comes
// from; callers supply a [SourceLoader].
//
// # Merge
//
// A [Merger] reconciles zero or more base registries (one per facility
// category, registered in a [Registry]) with a single availability dataset:
//
//  1. Base rows create facilities keyed by their normalized number. The first
//     row seen for a number wins; later ones are counted as duplicates.
//  2. Availability rows fill empty contact fields, refresh coordinates and
//     replace ages, slots, messages and the derived weekday maps. A row for
//     an unknown number creates a facility when its coordinates parse.
//
// Rows without an identity or usable coordinates are skipped and counted in
// [MergeStats.Skipped]. A base registry missing a required column is
// skipped as a whole; the same fault in the availability dataset fails the
// merge with an error wrapping [*MissingColumnError].
//
// # Availability
//
// [Classify] answers whether a facility accepts a child of a given age on a
// given weekday. It never fails; facilities without availability data
// report [OutcomeNoData].
//
// # Service
//
// [Service] loads every source concurrently, parses them with a bounded
// worker pool, merges and atomically publishes the result. Only one refresh
// runs at a time. A failed refresh keeps the previous snapshot.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - COL001: A required column is missing
//   - SRC001-SRC005: Source download, decoding and location errors
//   - REF001-REF002: Refresh conflicts and missing data
//   - FAC001, QRY001-QRY003: Lookup and filter errors
//   - UPL004-UPL005: Cancelled or timed out requests
//   - RATE001: Rate limiting
package core
