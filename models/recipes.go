package models

type RecipesPostRequest struct {
	URL string `json:"url"`
}

type RecipesPostResponse struct {
	SubmissionID string    `json:"submissionId,omitempty" yaml:"submissionId,omitempty"`
	URL          string    `json:"url" yaml:"url"`
	Stage        string    `json:"stage" yaml:"stage"`
	Recipe       *Recipe   `json:"recipe,omitempty" yaml:"recipe,omitempty"`
	Document     *Document `json:"document,omitempty" yaml:"document,omitempty"`
	Duplicate    bool      `json:"duplicate,omitempty" yaml:"duplicate,omitempty"`
	// Pending is set when publishing failed and will be retried.
	Pending bool `json:"pending,omitempty" yaml:"pending,omitempty"`
	// Error is set when a stage failed.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}
