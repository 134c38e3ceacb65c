package apiclient

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

// File mirrors the server's file record representation.
type File struct {
	FileID       string    `json:"file_id"`
	Key          string    `json:"key"`
	OriginalName string    `json:"original_name"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"content_type"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

// FileList is the response of GET /files.
type FileList struct {
	Files []File `json:"files"`
	Count int    `json:"count"`
	Skip  int64  `json:"skip"`
	Limit int64  `json:"limit"`
}

// FileDetail is the response of GET /files/{id}.
type FileDetail struct {
	File File  `json:"file"`
	Jobs []Job `json:"jobs"`
}

// UploadResult is the response of POST /upload.
type UploadResult struct {
	FileID   string `json:"file_id"`
	Key      string `json:"key"`
	Message  string `json:"message"`
	Metadata struct {
		OriginalName string `json:"original_name"`
		Size         int64  `json:"size"`
		ContentType  string `json:"content_type"`
		Status       string `json:"status"`
	} `json:"metadata"`
}

// ListFiles fetches file records, newest first.
func (c *Client) ListFiles(skip, limit int64, status string) (*FileList, error) {
	q := url.Values{}
	q.Set("skip", fmt.Sprint(skip))
	q.Set("limit", fmt.Sprint(limit))
	if status != "" {
		q.Set("status", status)
	}

	var out FileList
	if err := c.get("/files?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetFile fetches one file record with its jobs.
func (c *Client) GetFile(fileID string) (*FileDetail, error) {
	var out FileDetail
	if err := c.get("/files/"+url.PathEscape(fileID), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadFile streams a local file to POST /upload. The multipart body is
// produced through a pipe, so the file is never read into memory whole.
func (c *Client) UploadFile(path string) (*UploadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		part, err := mw.CreateFormFile("file", filepath.Base(path))
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, f); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/upload", pr)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	// No timeout: the upload takes as long as the file is large.
	var out UploadResult
	if err := c.doWith(&http.Client{}, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
