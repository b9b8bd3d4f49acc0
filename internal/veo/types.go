package veo

// predictRequest is the body for the predictLongRunning call.
type predictRequest struct {
	Instances  []predictInstance `json:"instances"`
	Parameters predictParameters `json:"parameters"`
}

type predictInstance struct {
	Prompt string      `json:"prompt"`
	Image  inlineImage `json:"image"`
}

type inlineImage struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded"`
	MimeType           string `json:"mimeType"`
}

type predictParameters struct {
	Resolution    string `json:"resolution"`
	GenerateAudio bool   `json:"generateAudio"`
	StorageURI    string `json:"storageUri"`
	SampleCount   int    `json:"sampleCount"`
}

// predictResponse is the response to predictLongRunning: just the operation
// name to poll.
type predictResponse struct {
	Name string `json:"name"`
}

// fetchOperationRequest is the body for the fetchPredictOperation call.
type fetchOperationRequest struct {
	Name string `json:"name"`
}

// operationResponse is the long-running operation envelope.
type operationResponse struct {
	Name     string              `json:"name"`
	Done     bool                `json:"done"`
	Error    *operationError     `json:"error,omitempty"`
	Response *generationResponse `json:"response,omitempty"`
}

type operationError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type generationResponse struct {
	Videos []generatedVideo `json:"videos"`
}

type generatedVideo struct {
	GCSURI   string `json:"gcsUri"`
	MimeType string `json:"mimeType"`
}

// OperationResult is the client-level view of a polled operation.
type OperationResult struct {
	// Done reports whether the operation has finished.
	Done bool
	// ErrorMessage carries the backend's failure message, verbatim, when the
	// operation finished unsuccessfully.
	ErrorMessage string
	// VideoURI is the gs:// location of the generated video when the
	// operation finished successfully.
	VideoURI string
}
