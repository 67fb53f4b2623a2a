package models

// Chunk is a titled block of page text keyed to one navigable section.
type Chunk struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Text  string `json:"text"`
	Href  string `json:"href"`
}

// SearchResult is a single web search hit.
type SearchResult struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	URL     string `json:"url"`
}

// Source is a citation rendered under an answer.
type Source struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// TeamMember is a roster entry used by the person lookup fast path.
type TeamMember struct {
	Name string `yaml:"name" json:"name"`
	Role string `yaml:"role" json:"role"`
	Dino string `yaml:"dino" json:"dino"`
}
