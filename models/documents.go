package models

// Document identifies a recipe page created in the target document store.
type Document struct {
	ID  string `json:"id" yaml:"id"`
	URL string `json:"url,omitempty" yaml:"url,omitempty"`
}
