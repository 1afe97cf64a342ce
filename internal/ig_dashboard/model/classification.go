package model

type Sentiment string

const (
	SentimentPositive Sentiment = "Positive"
	SentimentNeutral  Sentiment = "Neutral"
	SentimentNegative Sentiment = "Negative"
)

type EngagementLevel string

const (
	EngagementHigh   EngagementLevel = "High"
	EngagementMedium EngagementLevel = "Medium"
	EngagementLow    EngagementLevel = "Low"
)

// 分类器提示词中列出的类别
const (
	CategoryTech          = "Tech"
	CategoryUIUX          = "UI-UX"
	CategoryProductDesign = "Product Design"
	CategoryAI            = "AI"
	CategoryOther         = "Other"
	// CategoryGeneral 只出现在默认结果中
	CategoryGeneral = "General"
)

var Categories = []string{CategoryTech, CategoryUIUX, CategoryProductDesign, CategoryAI, CategoryOther}

type ClassificationResult struct {
	Category             string          `json:"category"`
	Sentiment            Sentiment       `json:"sentiment"`
	EngagementPrediction EngagementLevel `json:"engagement_prediction"`
	ContentQuality       int             `json:"content_quality"`
	TrendingPotential    int             `json:"trending_potential"`
}

// DefaultClassification AI 不可用或调用失败时统一返回的结果
func DefaultClassification() ClassificationResult {
	return ClassificationResult{
		Category:             CategoryGeneral,
		Sentiment:            SentimentPositive,
		EngagementPrediction: EngagementMedium,
		ContentQuality:       75,
		TrendingPotential:    60,
	}
}
