// Package validate decides whether converted output is acceptable: container
// integrity, property agreement within tolerances, compression ratio sanity,
// and metadata carry-over including GPS coordinate verification.
package validate
