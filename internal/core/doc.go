// Package core provides the business logic for CSV upload ingestion.
//
// The package is independent of any transport: web handlers, CLI tools and
// tests all drive it through [Service], passing the requesting [Principal]
// explicitly on every call.
//
// # Ingestion
//
// [Service.Create] admits the request through the [UploadLimiter] and runs
// [Service.Ingest]:
//
//  1. Declared type and filename are checked (text/csv, ".csv")
//  2. The raw bytes are fingerprinted with SHA-256 ([ComputeFingerprint])
//  3. Known fingerprints are rejected early
//  4. [CSVValidator] parses the file and enforces a rectangular shape
//  5. The bytes go to the [BlobStore] and the upload plus all rows are
//     committed in one transaction by the [UploadRepository]
//
// Every user-correctable failure is a [*Rejection] carrying a
// [RejectionReason]. The repository's unique constraint on the fingerprint is
// the authoritative duplicate guard; losing that race also yields
// [DuplicateFile].
//
// # Access
//
// Owners see their own uploads and admins see all of them ([CanView]).
// Anything a principal may not see is reported as [ErrNotFound], so the
// existence of other users' uploads never leaks.
//
// # Error Handling
//
// [MapError] turns any error into a [UserMessage] with a support code.
// Storage failures are wrapped with context and reported as ERR000 or a
// specific DB code; their technical text stays in the logs.
package core
