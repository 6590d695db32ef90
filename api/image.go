package api

type ImageList struct {
	Images []string `json:"images"`
}

type TagList struct {
	Tags []string `json:"tags"`
}

type TagStatus struct {
	Name   string `json:"name"`
	Exists bool   `json:"exists"`
}

// AcquireRequest names a local path, file:// URL or http(s) URL to copy into
// the images directory. Uploads use a multipart "file" field instead.
type AcquireRequest struct {
	Source string `json:"source" binding:"required"`
}

type AcquireResponse struct {
	ID string `json:"id"`
}

type RegisterRequest struct {
	Tags []string `json:"tags"`
}

type RetagRequest struct {
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
}

type DeleteRequest struct {
	IDs   []string `json:"ids" binding:"required"`
	Force bool     `json:"force"`
}

type DeleteResponse struct {
	Committed bool `json:"committed"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
