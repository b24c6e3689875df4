// Package sanitizer normalizes free-form input before validation and storage.
//
// Every function is idempotent and never fails: invalid input collapses to an
// empty value that the validator then rejects.
//
// Normalization includes:
//   - Names: collapse whitespace, trim
//   - Kinds: lowercase, anything but letters and digits becomes a single underscore
//   - Identifiers: trim surrounding whitespace only, case is preserved
//   - Slices: drop duplicates and empty values after normalization
package sanitizer
