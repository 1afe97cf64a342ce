package classifier

import (
	"fmt"
	"strings"
)

const promptTemplate = `Analyze this Instagram post:
Caption: %s
Hashtags: %s

Provide analysis in JSON format:
{
    "category": "Tech/UI-UX/Product Design/AI/Other",
    "sentiment": "Positive/Neutral/Negative",
    "engagement_prediction": "High/Medium/Low",
    "content_quality": <score 0-100>,
    "trending_potential": <score 0-100>
}
Output the JSON object only, no other text.`

func buildPrompt(caption string, hashtags []string) string {
	return fmt.Sprintf(promptTemplate, caption, strings.Join(hashtags, ", "))
}

func cleanJSONResponse(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	// 模型有时会在 JSON 前后附带说明文字
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		content = content[start : end+1]
	}
	return content
}
