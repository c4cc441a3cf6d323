package response

type SubmitCrawlResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

// HealthResponse reports each dependency as "healthy" or "unhealthy".
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
