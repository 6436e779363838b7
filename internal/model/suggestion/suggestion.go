package suggestion

// Suggestion is a preset question the view offers as a one-click prompt.
type Suggestion struct {
	ID       string `json:"id"`
	Question string `json:"question"`
	Topic    string `json:"topic"`
}

// Seed provides the quick questions shown under the chat window.
func Seed() []Suggestion {
	return []Suggestion{
		{ID: "corn-planting", Question: "What's the best time to plant corn?", Topic: "crops"},
		{ID: "soil-ph", Question: "How do I test my soil pH?", Topic: "soil"},
		{ID: "crop-disease", Question: "What are signs of crop disease?", Topic: "crops"},
		{ID: "soil-health", Question: "How to improve soil health naturally?", Topic: "soil"},
	}
}
