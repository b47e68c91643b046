package session

// Status is the externally visible summary of a session, as published to
// the session registry.
type Status struct {
	Role      string   `json:"role"`
	State     string   `json:"state"`
	Version   string   `json:"version,omitempty"`
	Width     int      `json:"width"`
	Height    int      `json:"height"`
	Format    string   `json:"pixelFormat,omitempty"`
	Encodings []string `json:"encodings,omitempty"`
	Updates   int      `json:"updates"`
	Error     string   `json:"error,omitempty"`
}
