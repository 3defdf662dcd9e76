// Package inference runs detection, segmentation and pose models on an image
// or a region of it and returns their raw detections in full-image
// coordinates.
//
// An Adapter holds a registry of named Backends. Adapter.Detect validates the
// request, crops the region of interest, calls the backend, and normalises
// the result: coordinates are translated back into the full image,
// detections below the confidence threshold are dropped and the rest are
// ordered by score. Every failure is an *Error whose Kind says whether the
// input was bad, the model unavailable, the backend broken, or the call timed
// out or was cancelled.
//
// # Backends
//
//   - HTTPBackend: a model server reached over HTTP (multipart PNG in, JSON out)
//   - GeminiBackend: Google Gemini vision prompted for JSON bounding boxes
//   - OCRBackend: Tesseract word boxes as class "text"
//   - BuiltinBackend: the classical detectors of package detection
//
// # HTTP protocol
//
// HTTPBackend POSTs multipart/form-data with an "image" PNG file part plus
// "model", "threshold" and zero or more "prompt" fields, and expects:
//
//	{"detections": [{
//	    "class": "person",
//	    "score": 0.93,
//	    "box": [x1, y1, x2, y2],
//	    "contours": [[[x, y], ...]],
//	    "mask": "<base64 PNG covering box>",
//	    "keypoints": [{"name": "nose", "x": 10, "y": 12, "score": 0.8}]
//	}]}
//
// Coordinates are pixels of the uploaded image; every field but class, score
// and box is optional.
package inference
