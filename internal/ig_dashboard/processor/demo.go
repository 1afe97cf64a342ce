package processor

import (
	"fmt"
	"time"

	"ig-dashboard/internal/ig_dashboard/model"
)

// demoCycleDays 演示数据时间戳按天回退，以 30 天为周期
const demoCycleDays = 30

// DemoPosts 生成 limit 条确定性的演示数据（未应用时间窗口过滤）。
// kind 不是 all 时所有条目都使用该类型，否则按 post/carousel/reel 循环。
func DemoPosts(hashtags []string, kind model.PostKind, limit int, now time.Time) []model.Post {
	topic := "design"
	if len(hashtags) > 0 {
		topic = hashtags[0]
	}

	tags := []string{"#design"}
	if len(hashtags) > 0 {
		tags = hashtags[:min(3, len(hashtags))]
	}

	posts := make([]model.Post, 0, max(limit, 0))
	for i := 0; i < limit; i++ {
		k := kind
		if k == model.KindAll || k == "" {
			k = model.CycleKind(i)
		}
		n := int64(i)

		posts = append(posts, model.Post{
			ID:        fmt.Sprintf("post_%d", i),
			Creator:   fmt.Sprintf("designer_%d", i%10),
			Thumbnail: fmt.Sprintf("https://picsum.photos/300/200?random=%d", i),
			Likes:     1500 + n*100,
			Comments:  45 + n*5,
			Shares:    20 + n*2,
			Views:     5000 + n*200,
			Caption:   fmt.Sprintf("Amazing %s inspiration! Check out this innovative approach to modern design solutions.", topic),
			Kind:      k,
			URL:       fmt.Sprintf("%smock_%d", postURLPrefix, i),
			Timestamp: now.Add(-time.Duration(i%demoCycleDays) * day),
			Hashtags:  append([]string(nil), tags...),
		})
	}
	return posts
}
