// Package core provides the business logic for persisting test sets.
//
// A test set is a nested document describing one exam form: sections, parts,
// passage sets, passages, questions, choices and tags. This package turns that
// document into rows of a normalized relational schema. It has no transport
// dependencies and can be driven by the HTTP API, the CLI, or tests.
//
// # Architecture
//
//   - Entity model: typed records for the nine entity kinds. Parent
//     references arrive either as explicit ids or as natural keys
//     (a section label, a part label, a question number).
//   - Stage planner: [Plan] orders entity kinds so that every kind is staged
//     strictly after every kind it references.
//   - Key resolver: [Resolver] maps natural keys to the surrogate ids the
//     store assigned in earlier stages.
//   - Pipeline: [Pipeline.Run] upserts one row at a time through a [Store],
//     retrying transient failures, and stops at the first failed row.
//   - Service: [Service.SaveTestSet] wires a store connection, a submission
//     limiter, a deadline, metrics and logging around one pipeline run.
//
// # Conflict targets
//
// Questions upsert on (part_id, number) and choices on (question_id, label).
// Every other kind inserts with the store's primary-key default, or updates
// in place when the row carries an explicit id.
//
// # Failure semantics
//
// The pipeline is fail-fast and never rolls back: rows committed before a
// failure stay committed and [Result.RowsUpserted] reports exactly how many
// there were. Errors are typed, see [ConfigurationError], [ValidationError],
// [UnresolvedReferenceError], [RemoteWriteError] and [CancelledError].
//
// # Error Codes
//
// [MapError] turns any of those errors into a user-facing message with a
// support code:
//
//   - CFG001: store configuration
//   - VAL001-VAL002: document validation
//   - REF001: unresolved parent reference
//   - DB000-DB007: store write failures
//   - SUB001-SUB002: submission limits, deadlines and cancellation
package core
