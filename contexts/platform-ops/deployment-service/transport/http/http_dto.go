package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type MappingDTO struct {
	Service      string `json:"service"`
	OriginalPort int    `json:"original_port"`
	NewPort      int    `json:"new_port"`
	Protocol     string `json:"protocol"`
}

type TableResponse struct {
	Status string `json:"status"`
	Data   struct {
		Mappings []MappingDTO `json:"mappings"`
		Source   string       `json:"source"`
		LoadedAt string       `json:"loaded_at,omitempty"`
	} `json:"data"`
}

type RenderResponse struct {
	Status string `json:"status"`
	Data   struct {
		Markdown string `json:"markdown"`
	} `json:"data"`
}

type ApplyComposeRequest struct {
	Compose string `json:"compose" validate:"required"`
}

type ApplyComposeResponse struct {
	Status string `json:"status"`
	Data   struct {
		Compose  string   `json:"compose"`
		Warnings []string `json:"warnings,omitempty"`
	} `json:"data"`
}

type DiffDTO struct {
	Service  string `json:"service"`
	WantPort int    `json:"want_port"`
	GotPort  int    `json:"got_port"`
}

type DiffResponse struct {
	Status string    `json:"status"`
	Data   []DiffDTO `json:"data"`
}

type AuditFindingDTO struct {
	Service string `json:"service"`
	Check   string `json:"check"`
	Pass    bool   `json:"pass"`
	Detail  string `json:"detail,omitempty"`
}

type AuditResponse struct {
	Status string            `json:"status"`
	Data   []AuditFindingDTO `json:"data"`
}
