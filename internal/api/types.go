package api

import "encoding/json"

// RequestType is the value of the "type" discriminator sent to the endpoint.
type RequestType string

const (
	TypeText         RequestType = "text"
	TypeGetUploadURL RequestType = "get_upload_url"
	TypeDocument     RequestType = "document"
	TypeCheckStatus  RequestType = "check_status"
)

// Request is one variant of the endpoint's request union. The set of
// implementations is closed to this package.
type Request interface {
	Type() RequestType
	isRequest()
}

type TextRequest struct {
	Text       string `json:"text"`
	TargetLang string `json:"target_lang"`
}

type UploadURLRequest struct {
	FileName string `json:"file_name"`
}

type DocumentRequest struct {
	FileName   string `json:"file_name"`
	TargetLang string `json:"target_lang"`
}

type StatusRequest struct {
	JobID string `json:"jobId"`
}

func (TextRequest) Type() RequestType      { return TypeText }
func (UploadURLRequest) Type() RequestType { return TypeGetUploadURL }
func (DocumentRequest) Type() RequestType  { return TypeDocument }
func (StatusRequest) Type() RequestType    { return TypeCheckStatus }

func (TextRequest) isRequest()      {}
func (UploadURLRequest) isRequest() {}
func (DocumentRequest) isRequest()  {}
func (StatusRequest) isRequest()    {}

func (r TextRequest) MarshalJSON() ([]byte, error) {
	type fields TextRequest
	return json.Marshal(struct {
		Type RequestType `json:"type"`
		fields
	}{r.Type(), fields(r)})
}

func (r UploadURLRequest) MarshalJSON() ([]byte, error) {
	type fields UploadURLRequest
	return json.Marshal(struct {
		Type RequestType `json:"type"`
		fields
	}{r.Type(), fields(r)})
}

func (r DocumentRequest) MarshalJSON() ([]byte, error) {
	type fields DocumentRequest
	return json.Marshal(struct {
		Type RequestType `json:"type"`
		fields
	}{r.Type(), fields(r)})
}

func (r StatusRequest) MarshalJSON() ([]byte, error) {
	type fields StatusRequest
	return json.Marshal(struct {
		Type RequestType `json:"type"`
		fields
	}{r.Type(), fields(r)})
}

type TextResponse struct {
	TranslatedText string `json:"translatedText"`
}

// UploadTarget is a short-lived presigned PUT destination. Use it once.
type UploadTarget struct {
	UploadURL string `json:"uploadUrl"`
	MIMEType  string `json:"mimeType"`
}

type JobHandle struct {
	JobID string `json:"jobId"`
}

// JobStatus is the remote job state. Values outside the known set are kept
// as-is and treated as non-terminal.
type JobStatus string

const (
	StatusPending    JobStatus = "PENDING"
	StatusInProgress JobStatus = "IN_PROGRESS"
	StatusCompleted  JobStatus = "COMPLETED"
	StatusFailed     JobStatus = "FAILED"
)

// Terminal reports whether no further status changes are expected.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job is the result of a status check. DownloadURL is set only when Status
// is COMPLETED.
type Job struct {
	JobID       string    `json:"jobId,omitempty"`
	Status      JobStatus `json:"status"`
	DownloadURL string    `json:"downloadUrl,omitempty"`
}
