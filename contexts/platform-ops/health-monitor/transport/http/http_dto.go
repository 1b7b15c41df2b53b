package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ServiceStatusDTO struct {
	Service             string `json:"service"`
	State               string `json:"state"`
	LastHealthyAt       string `json:"last_healthy_at,omitempty"`
	ConsecutiveFailures int    `json:"consecutive_failures"`
}

type ReportResponse struct {
	Status string `json:"status"`
	Data   struct {
		State       string             `json:"state"`
		Services    []ServiceStatusDTO `json:"services"`
		GeneratedAt string             `json:"generated_at"`
	} `json:"data"`
}

type ProbeResultDTO struct {
	Service    string `json:"service"`
	URL        string `json:"url"`
	Healthy    bool   `json:"healthy"`
	StatusCode int    `json:"status_code,omitempty"`
	LatencyMs  int64  `json:"latency_ms"`
	CheckedAt  string `json:"checked_at"`
	Detail     string `json:"detail,omitempty"`
}

type HistoryResponse struct {
	Status string           `json:"status"`
	Data   []ProbeResultDTO `json:"data"`
}

type ProbeSweepResponse struct {
	Status string           `json:"status"`
	Data   []ProbeResultDTO `json:"data"`
}
