package checklist

// Item is a single compliance question within a checklist section.
type Item struct {
	ID        string `json:"id"`
	Question  string `json:"question"`
	Reference string `json:"reference"`
}

// Section groups checklist items under a named part of a standard.
type Section struct {
	Section string `json:"section"`
	Title   string `json:"title"`
	Items   []Item `json:"items"`
}

// Checklist is the question set for one accounting standard.
type Checklist struct {
	Framework string    `json:"framework,omitempty"`
	Standard  string    `json:"standard,omitempty"`
	Sections  []Section `json:"sections"`
}

// QuestionCount returns the total number of items across all sections.
func (c Checklist) QuestionCount() int {
	total := 0
	for _, section := range c.Sections {
		total += len(section.Items)
	}
	return total
}
