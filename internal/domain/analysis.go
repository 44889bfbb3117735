package domain

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// AnalysisSnapshot is the latest sentiment read for a room. It is a full-state
// read, each poll tick replaces the prior snapshot wholesale.
type AnalysisSnapshot struct {
	Sentiment      Sentiment `json:"sentiment"`
	Confidence     float64   `json:"confidence"`
	KeyPoints      []string  `json:"key_points"`
	Recommendation string    `json:"recommendation_to_salesperson"`
}
