package protocol

// InvokeRequest is a command sent to the host.
//
// Wire format:
//
//	{
//	  "type": "invoke",
//	  "request_id": "01J...",
//	  "command": "execute",
//	  "payload": {...}
//	}
type InvokeRequest struct {
	// Type is always "invoke"
	Type string `json:"type"`

	// RequestID uniquely identifies this request for response correlation
	RequestID string `json:"request_id"` //nolint:tagliatelle // host uses snake_case

	// Command names the host operation
	Command string `json:"command"`

	// Payload carries the command arguments
	Payload map[string]any `json:"payload"`
}

// InvokeResponse is the host's answer to an InvokeRequest.
//
// Wire format for success:
//
//	{
//	  "type": "invoke_response",
//	  "response": {
//	    "subtype": "success",
//	    "request_id": "01J...",
//	    "response": <any>
//	  }
//	}
//
// Wire format for error:
//
//	{
//	  "type": "invoke_response",
//	  "response": {
//	    "subtype": "error",
//	    "request_id": "01J...",
//	    "error": "error message"
//	  }
//	}
type InvokeResponse struct {
	// Type is always "invoke_response"
	Type string `json:"type"`

	// Response contains the nested response data including subtype, request_id,
	// and either response (for success) or error (for error)
	Response map[string]any `json:"response"`
}

// IsError checks if the response is an error response.
func (r *InvokeResponse) IsError() bool {
	if s, ok := r.Response["subtype"].(string); ok {
		return s == "error"
	}

	return false
}

// ErrorMessage extracts the error message from an error response.
func (r *InvokeResponse) ErrorMessage() string {
	if e, ok := r.Response["error"].(string); ok {
		return e
	}

	return ""
}

// Payload returns the response value from a success response. The host may
// answer with any value, including nil.
func (r *InvokeResponse) Payload() any {
	return r.Response["response"]
}

// RequestID extracts the request_id from the nested response.
func (r *InvokeResponse) RequestID() string {
	if id, ok := r.Response["request_id"].(string); ok {
		return id
	}

	return ""
}
