package clientcli

import (
	"time"
)

// UploadOptions configures an upload operation.
type UploadOptions struct {
	LocalPath   string
	RemotePath  string
	ContentType string // optional, auto-detect if empty
	Recursive   bool
	IfMatch     string // optional, only overwrite this version
}

// UploadResult represents the result of uploading a single file.
type UploadResult struct {
	LocalPath    string    `json:"local_path"`
	RemotePath   string    `json:"remote_path"`
	ContentType  string    `json:"content_type"`
	ETag         string    `json:"etag"`
	Size         int64     `json:"size_bytes"`
	LastModified time.Time `json:"last_modified"`
	Err          error     `json:"-"` // nil on success
}

// DownloadOptions configures a download operation.
type DownloadOptions struct {
	RemotePath string
	LocalPath  string // empty = derive from remote, "-" = stdout
}

// DownloadResult represents the result of downloading a file.
type DownloadResult struct {
	RemotePath   string    `json:"remote_path"`
	LocalPath    string    `json:"local_path"`
	ETag         string    `json:"etag"`
	ContentType  string    `json:"content_type"`
	Size         int64     `json:"size_bytes"`
	LastModified time.Time `json:"last_modified"`
}

// DeleteOptions configures a delete operation.
type DeleteOptions struct {
	Paths []string
}

// DeleteResult represents the result of deleting a single file.
type DeleteResult struct {
	Path    string `json:"path"`
	Deleted bool   `json:"deleted"`
	Err     error  `json:"-"` // nil on success
}

// ListOptions configures a list operation.
type ListOptions struct {
	Directory string
	Recursive bool // descend into sub-directories
}

// ListResult contains the entries of a directory listing.
type ListResult struct {
	Directory    string      `json:"directory"`
	LastModified time.Time   `json:"last_modified,omitzero"`
	Items        []EntryInfo `json:"items"`
}

// EntryInfo is a single listing entry. Directory entries carry a trailing slash.
type EntryInfo struct {
	Path         string    `json:"path"`
	Directory    bool      `json:"directory"`
	LastModified time.Time `json:"last_modified"`
}
