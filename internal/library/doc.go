// Package library reads Apple Music / iTunes library exports.
//
// # Export Tree
//
// [Decode] turns a property list into a [Value] tree of [Dict], [Array], [String] and the other
// scalar kinds. Dictionaries keep their entries in an explicit order:
//   - XML property lists (what Music and iTunes write for "Export Library...") keep document order.
//   - Binary and OpenStep property lists are decoded by howett.net/plist into Go maps, which carry
//     no order, so their keys are sorted to stay deterministic between runs.
//
// # Track Extraction
//
// [ExtractTracks] walks the "Tracks" dictionary and yields one [models.Track] per entry, in the
// dictionary's order. A library without a "Tracks" key yields no tracks. An entry missing its
// Artist, Name or Album string fails the whole extraction with a [MalformedEntryError].
package library
