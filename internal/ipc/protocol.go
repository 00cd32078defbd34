// Package ipc carries owner-control commands between smartspeak processes over
// a gRPC unix socket.
package ipc

// Request is one control command sent to the owner process.
type Request struct {
	Command  string `json:"command"`
	Language string `json:"language,omitempty"`
}

// Turn is one transcript entry in a response.
type Turn struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

// Response is the owner's reply to one Request.
type Response struct {
	OK        bool   `json:"ok"`
	State     string `json:"state,omitempty"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	Language  string `json:"language,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	LastError string `json:"last_error,omitempty"`
	Turns     []Turn `json:"turns,omitempty"`
}
