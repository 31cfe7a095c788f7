// Package ir provides the value model shared by every senselogic package.
//
// This package contains type definitions and pure functions only. All other
// internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Value is a sealed interface: Number, Text, Bool, Location, Blob
//   - Timestamps are int64 milliseconds; Forever marks "never changes"
//   - Reading lists are ordered newest-first
//   - Text literals are NFC normalized at the serialization boundary
package ir
