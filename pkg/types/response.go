package types

// Notice is a transient confirmation emitted while serving a request.
type Notice struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

type SuccessEnvelope struct {
	Data     any      `json:"data"`
	Messages []Notice `json:"messages,omitempty"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error    APIError `json:"error"`
	Messages []Notice `json:"messages,omitempty"`
}
