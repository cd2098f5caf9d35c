package models

// Messages returned with non-validation failures.
const (
	MsgAccessBlocked   = "Access blocked"
	MsgUnauthenticated = "Authentication required"
	MsgNotFound        = "Not found"
	MsgInternal        = "Something went wrong, please try again"
)

// APIResponse wraps every JSON body the API returns.
type APIResponse struct {
	Success    bool        `json:"success"`
	Data       interface{} `json:"data,omitempty"`
	Error      string      `json:"error,omitempty"`
	Errors     interface{} `json:"errors,omitempty"`
	NextCursor string      `json:"nextCursor,omitempty"`
	PrevCursor string      `json:"prevCursor,omitempty"`
}

func NewSuccessResponse(data interface{}) APIResponse {
	return APIResponse{
		Success: true,
		Data:    data,
	}
}

// NewPageResponse lifts the page cursors next to the data.
func NewPageResponse[T any](page Page[T]) APIResponse {
	items := page.Items
	if items == nil {
		items = []T{}
	}
	return APIResponse{
		Success:    true,
		Data:       items,
		NextCursor: page.NextCursor,
		PrevCursor: page.PrevCursor,
	}
}

func NewErrorResponse(message string) APIResponse {
	return APIResponse{
		Success: false,
		Error:   message,
	}
}

func NewValidationErrorResponse(errors map[string]string) APIResponse {
	return APIResponse{
		Success: false,
		Error:   "Validation failed",
		Errors:  errors,
	}
}
