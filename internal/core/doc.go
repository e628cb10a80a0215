// Package core converts label records from the labeling interface into flat CSV.
//
// The package holds all conversion logic, independent of any transport. The
// CLI, the HTTP server and tests all drive the same functions.
//
// # Pipeline
//
// Data flows one way and no stage keeps state between runs:
//
//  1. [ParseJSONL] reads line-delimited JSON. Each non-blank line is one
//     record. Malformed lines are logged and skipped.
//  2. [Flatten] projects a [Record] onto the fixed nine-column [Row].
//  3. [WriteCSV] writes the header and one row per record, in input order.
//
// [ExportFile] chains the three for a file-to-file run. It creates missing
// output directories and writes nothing when no valid records were found.
//
// # Standards
//
// A record's "standards" list is ordered. The first entry is the primary
// standard and fills the primary_standard_* columns. Every later entry is
// secondary: only its id and code are kept, joined with ", ".
//
// # Error Handling
//
// Technical errors are mapped to user-facing messages with [MapError]:
//
//   - FILE001-FILE099: input and upload problems
//   - LBL001-LBL099: label content problems
//   - REQ001-REQ099: request problems (missing parameters, cancellation)
//   - DB001-DB099: database problems
package core
