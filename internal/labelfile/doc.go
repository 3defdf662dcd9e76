// Package labelfile reads and writes annotation files in the labelme JSON
// layout and exports them as YAML or Parquet.
//
// A file holds the image reference (path relative to the file, size and
// optionally the encoded image itself) and the shape list. Besides the
// standard labelme keys every shape may carry fill_color, line_color,
// visible, locked and, for masks, a base64 PNG bitmap. Colours are written
// as [r, g, b, a] arrays; hex strings are accepted on input.
//
// Loading is lenient: shapes with a missing label or points, an unknown
// type or invalid geometry are skipped with a warning and the rest of the
// file loads.
package labelfile
