// Package capture extracts values from recorded response text for use in
// later steps.
//
// It supports:
//   - JSON paths into response bodies (a.b, items[0].id, items.#.id)
//   - Case-insensitive lookups in recorded header lists
//
// Bodies are the text cached by earlier steps, so values referenced by
// $<cache:step:path> resolve against exactly what the server returned.
package capture
