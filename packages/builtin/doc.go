// Package builtin provides the helper functions available as placeholders
// in scenario files.
//
// Available functions:
//   - uuid: Generate a random UUID v4
//   - now[:layout], timestamp, timestampMs: Current time
//   - random:min:max: Random integer in range
//   - randomString[:length], randomAlphanumeric[:length], randomEmail
//   - base64, base64Decode, md5, sha256, urlEncode, urlDecode
//   - env:NAME[:default]: Environment variable value
//   - expr:expression: Evaluate an expr-lang expression
//
// Functions are invoked using the $<name:args> syntax in scenario files.
package builtin
