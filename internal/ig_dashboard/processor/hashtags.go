package processor

import (
	"regexp"
	"sort"
	"strings"
)

// maxCaptionHashtags 每条帖子最多保留的话题标签数
const maxCaptionHashtags = 5

// hashtagPattern "#" 后接一个或多个单词字符（含 Unicode 字母、数字、下划线）
var hashtagPattern = regexp.MustCompile(`#[\p{L}\p{N}_]+`)

// ExtractHashtags 按出现顺序返回 caption 中最多 5 个标签
func ExtractHashtags(caption string) []string {
	found := hashtagPattern.FindAllString(caption, maxCaptionHashtags)
	if found == nil {
		return []string{}
	}
	return found
}

// NormalizeHashtags 去空白、补 "#"、去重，保持首次出现顺序
func NormalizeHashtags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || t == "#" {
			continue
		}
		if !strings.HasPrefix(t, "#") {
			t = "#" + t
		}
		key := strings.ToLower(t)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}
	return out
}

// Preset 预置话题组
type Preset struct {
	Name     string   `json:"name"`
	Hashtags []string `json:"hashtags"`
}

var presets = []Preset{
	{Name: "Tech", Hashtags: []string{"#tech", "#technology", "#ai", "#machinelearning", "#coding", "#programming",
		"#developer", "#software", "#innovation", "#startup", "#techtrends", "#digitaltransformation"}},
	{Name: "UI/UX Design", Hashtags: []string{"#ux", "#ui", "#design", "#userexperience", "#webdesign", "#appdesign",
		"#designthinking", "#prototype", "#wireframe", "#figma", "#sketch", "#adobe"}},
	{Name: "Product Design", Hashtags: []string{"#productdesign", "#industrialdesign", "#design", "#innovation",
		"#designprocess", "#prototype", "#usercentered", "#designstrategy"}},
	{Name: "AI", Hashtags: []string{"#ai", "#artificialintelligence", "#machinelearning", "#deeplearning", "#chatgpt",
		"#automation", "#neural", "#algorithm", "#aiart", "#generativeai"}},
}

var defaultHashtags = []string{"#ui", "#design", "#tech"}

// DefaultHashtags 未选择标签时使用，返回副本
func DefaultHashtags() []string {
	return append([]string(nil), defaultHashtags...)
}

// Presets 返回预置话题组的副本
func Presets() []Preset {
	out := make([]Preset, len(presets))
	for i, p := range presets {
		out[i] = Preset{Name: p.Name, Hashtags: append([]string(nil), p.Hashtags...)}
	}
	return out
}

// AllHashtags 全部预置标签，去重后排序
func AllHashtags() []string {
	seen := map[string]bool{}
	var all []string
	for _, p := range presets {
		for _, h := range p.Hashtags {
			if !seen[h] {
				seen[h] = true
				all = append(all, h)
			}
		}
	}
	sort.Strings(all)
	return all
}
