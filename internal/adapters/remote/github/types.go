package github

// contentResponse is the GitHub contents API representation of a file.
type contentResponse struct {
	Content string `json:"content"` // Base64, may contain newlines
	SHA     string `json:"sha"`
	Path    string `json:"path"`
	Size    int    `json:"size"`
}

// writeRequest is the payload for creating or updating a file.
type writeRequest struct {
	Message string `json:"message"`
	Content string `json:"content"` // Base64 of the document JSON
	SHA     string `json:"sha,omitempty"`
	Branch  string `json:"branch,omitempty"`
}

// writeResponse is the reply to a successful write.
type writeResponse struct {
	Content struct {
		SHA string `json:"sha"`
	} `json:"content"`
	Commit struct {
		SHA string `json:"sha"`
	} `json:"commit"`
}

// errorResponse is the GitHub API error envelope.
type errorResponse struct {
	Message string `json:"message"`
}
