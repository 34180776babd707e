package models

import "time"

type SubmissionsGetResponse struct {
	Submissions []Submission `json:"submissions" yaml:"submissions"`
}

type Submission struct {
	ID            string    `json:"id" yaml:"id"`
	Sender        string    `json:"sender" yaml:"sender"`
	Channel       string    `json:"channel" yaml:"channel"`
	URL           string    `json:"url" yaml:"url"`
	Status        string    `json:"status" yaml:"status"`
	Error         string    `json:"error,omitempty" yaml:"error,omitempty"`
	DocumentID    string    `json:"documentId,omitempty" yaml:"documentId,omitempty"`
	DocumentURL   string    `json:"documentUrl,omitempty" yaml:"documentUrl,omitempty"`
	Attempts      int64     `json:"attempts" yaml:"attempts"`
	CreatedAt     time.Time `json:"createdAt" yaml:"createdAt"`
	LastUpdatedAt time.Time `json:"lastUpdatedAt" yaml:"lastUpdatedAt"`
}
