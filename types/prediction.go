package types

// Prediction is the JSON object returned by the inference service.
// It is relayed as-is; numbers are kept as json.Number to preserve formatting.
type Prediction map[string]any

// Upload is an image received from a client and forwarded for inference.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}
