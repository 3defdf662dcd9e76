// Package ocr finds words and their boxes with Tesseract (gosseract/v2).
//
// It backs the "ocr" inference model kind: each recognised word becomes a
// detection of class "text".
//
// # Prerequisites
//
// Tesseract and its language data must be installed:
//   - Ubuntu/Debian: apt-get install tesseract-ocr tesseract-ocr-eng
//   - macOS: brew install tesseract
//
// A non-standard data location can be given with Options.TessdataPrefix.
//
// # Concurrency
//
// Every call creates and closes its own Tesseract client, so calls are
// independent and may run on separate goroutines. Tesseract cannot be
// interrupted; a cancelled context is only noticed before and after
// recognition.
package ocr
