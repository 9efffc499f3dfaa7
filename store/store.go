package store

// Package store provides fraudflow.RecordStore implementations: the durable
// log of approved step SQL and the final combined function, rendered as a
// single human-readable markdown document.
//
// Implementations:
//   - MemoryStore: in-memory records, no document (tests, dry runs)
//   - MarkdownStore: in-memory records re-rendered to a file on every write
//   - DynamoDBStore: single-table DynamoDB log with the rendered document
//     stored alongside the records
//
// Schema design follows single-table patterns defined in schema.go.
