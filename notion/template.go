package notion

import (
	"github.com/a-h/recipesms/models"
)

const (
	IngredientsHeading = "Ingredients"
	StepsHeading       = "Instructions"

	// MaxChildren is the number of blocks Notion accepts in a single request.
	MaxChildren = 100
	// MaxTextLength is the longest content Notion accepts in a single rich text object.
	MaxTextLength = 2000
)

type Page struct {
	Parent     Parent              `json:"parent"`
	Properties map[string]Property `json:"properties"`
	Children   []Block             `json:"children,omitempty"`
}

type Parent struct {
	DatabaseID string `json:"database_id"`
}

type Property struct {
	Title []RichText `json:"title"`
}

type RichText struct {
	Type string `json:"type,omitempty"`
	Text Text   `json:"text"`
}

type Text struct {
	Content string `json:"content"`
}

type BlockType string

const (
	BlockTypeHeading2         BlockType = "heading_2"
	BlockTypeToDo             BlockType = "to_do"
	BlockTypeBulletedListItem BlockType = "bulleted_list_item"
)

// Block is a Notion block. Exactly one of the content fields is set, matching Type.
type Block struct {
	Object           string       `json:"object"`
	Type             BlockType    `json:"type"`
	Heading2         *TextContent `json:"heading_2,omitempty"`
	ToDo             *ToDoContent `json:"to_do,omitempty"`
	BulletedListItem *TextContent `json:"bulleted_list_item,omitempty"`
}

type TextContent struct {
	RichText []RichText `json:"rich_text"`
}

type ToDoContent struct {
	RichText []RichText `json:"rich_text"`
	Checked  bool       `json:"checked"`
}

// NewPage lays a recipe out as a page: a heading, one unchecked to-do per ingredient,
// a second heading and one bullet per step.
func NewPage(databaseID, titleProperty string, recipe models.Recipe) Page {
	children := make([]Block, 0, 2+len(recipe.Ingredients)+len(recipe.Steps))
	children = append(children, Heading(IngredientsHeading))
	for _, ingredient := range recipe.Ingredients {
		children = append(children, ToDo(ingredient))
	}
	children = append(children, Heading(StepsHeading))
	for _, step := range recipe.Steps {
		children = append(children, Bullet(step))
	}
	return Page{
		Parent: Parent{DatabaseID: databaseID},
		Properties: map[string]Property{
			titleProperty: {Title: richText(recipe.Title)},
		},
		Children: children,
	}
}

func Heading(s string) Block {
	return Block{
		Object:   "block",
		Type:     BlockTypeHeading2,
		Heading2: &TextContent{RichText: richText(s)},
	}
}

func ToDo(s string) Block {
	return Block{
		Object: "block",
		Type:   BlockTypeToDo,
		ToDo:   &ToDoContent{RichText: richText(s)},
	}
}

func Bullet(s string) Block {
	return Block{
		Object:           "block",
		Type:             BlockTypeBulletedListItem,
		BulletedListItem: &TextContent{RichText: richText(s)},
	}
}

// richText splits s into as many text objects as needed to stay within MaxTextLength.
func richText(s string) []RichText {
	runes := []rune(s)
	if len(runes) <= MaxTextLength {
		return []RichText{{Type: "text", Text: Text{Content: s}}}
	}
	rt := make([]RichText, 0, len(runes)/MaxTextLength+1)
	for len(runes) > 0 {
		n := min(len(runes), MaxTextLength)
		rt = append(rt, RichText{Type: "text", Text: Text{Content: string(runes[:n])}})
		runes = runes[n:]
	}
	return rt
}

// split divides blocks into the first request's children and the batches appended afterwards.
func split(blocks []Block) (first []Block, rest [][]Block) {
	if len(blocks) <= MaxChildren {
		return blocks, nil
	}
	first, blocks = blocks[:MaxChildren], blocks[MaxChildren:]
	for len(blocks) > 0 {
		n := min(len(blocks), MaxChildren)
		rest = append(rest, blocks[:n])
		blocks = blocks[n:]
	}
	return first, rest
}
