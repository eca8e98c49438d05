package server

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

const (
	CodeNotFound           = "NOT_FOUND"
	CodeStoreUninitialized = "STORE_UNINITIALIZED"
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeInvalidRoot        = "INVALID_ROOT"
	CodePathOutsideRoot    = "PATH_OUTSIDE_ROOT"
	CodeFileNotFound       = "FILE_NOT_FOUND"
	CodeInvalidRange       = "INVALID_RANGE"
	CodeMutationFailed     = "MUTATION_FAILED"
	CodeInternal           = "INTERNAL"
)

type IndexRequest struct {
	Root string `json:"root"`
}

// DeleteRequest removes lines StartLine..EndLine of File. Relative files resolve against the root.
type DeleteRequest struct {
	Root      string `json:"root"`
	File      string `json:"file" binding:"required"`
	StartLine int    `json:"start_line" binding:"required"`
	EndLine   int    `json:"end_line" binding:"required"`
}

type InsertRequest struct {
	Root      string `json:"root"`
	File      string `json:"file" binding:"required"`
	StartLine int    `json:"start_line" binding:"required"`
	Content   string `json:"content"`
}
