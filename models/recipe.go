package models

// Recipe is the structured result of reading a recipe web page.
type Recipe struct {
	Title       string   `json:"title" yaml:"title"`
	Ingredients []string `json:"ingredients" yaml:"ingredients"`
	Steps       []string `json:"steps" yaml:"steps"`
}
