package app

// Category steers which prompt set is used for a project.
type Category struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Color       string `json:"color"`
}

var categories = []Category{
	{Name: "default", DisplayName: "通用", Description: "适用于大多数内容类型", Icon: "📄", Color: "#6b7280"},
	{Name: "knowledge", DisplayName: "知识科普", Description: "科学知识、技能教学、原理讲解", Icon: "🧪", Color: "#2563eb"},
	{Name: "business", DisplayName: "商业财经", Description: "商业分析、投资理财、行业观察", Icon: "📈", Color: "#059669"},
	{Name: "opinion", DisplayName: "观点评论", Description: "时事评论、观点输出、深度讨论", Icon: "💬", Color: "#d97706"},
	{Name: "experience", DisplayName: "经验分享", Description: "个人经历、生活经验、方法论", Icon: "🌟", Color: "#7c3aed"},
	{Name: "speech", DisplayName: "演讲脱口秀", Description: "演讲、脱口秀、访谈对话", Icon: "🎤", Color: "#dc2626"},
	{Name: "content_review", DisplayName: "内容解说", Description: "影视解说、游戏解说、内容盘点", Icon: "🎬", Color: "#0891b2"},
	{Name: "entertainment", DisplayName: "娱乐内容", Description: "综艺娱乐、直播切片、搞笑内容", Icon: "🎭", Color: "#db2777"},
}

// Categories returns all known content categories.
func Categories() []Category {
	return categories
}

// validCategory reports whether name is a known category.
func validCategory(name string) bool {
	for _, c := range categories {
		if c.Name == name {
			return true
		}
	}
	return false
}
