// Package value provides the opaque JSON value model carried by passport
// fields and action payloads.
//
// Values are passed through the history engine unexamined. The only thing
// the engine ever does with them is compute their canonical bytes, which
// are the input to every signature and verification.
//
// Key design constraints:
//   - Value is a sealed interface; only the types in this package implement it
//   - Numbers never round-trip through float64 on the way in (json.Number)
//   - Canonical bytes follow RFC 8785 (sorted keys, no HTML escaping, NFC strings)
//   - This package imports nothing internal
package value
