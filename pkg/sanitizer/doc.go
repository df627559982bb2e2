// Package sanitizer normalizes patient supplied text before validation and
// storage.
//
// All functions are idempotent: applying them twice gives the same result as
// applying them once. Invalid input is never rejected here; validators decide
// what is acceptable.
//
// Normalization includes:
//   - Names and free text: collapse whitespace, trim leading/trailing spaces
//   - Emails: trim, lowercase
//   - Dates and slot labels: trim only
package sanitizer
