package domain

var defaultCatalog = []Application{
	{
		ID:          "zip-upload",
		Name:        "解压上传",
		Description: "上传 ZIP 压缩包到 OSS 并自动解压，生成可访问链接。",
		URL:         "/tools/zip-upload",
	},
	{
		ID:          "contract-review",
		Name:        "合同审核",
		Description: "上传合同自动生成摘要并标出风险条款。",
		URL:         "/tools/contract-review",
	},
	{
		ID:          "video-generator",
		Name:        "视频生成",
		Description: "输入脚本自动生成短视频，支持字幕合成。",
		URL:         "/tools/video-generator",
	},
}

// DefaultCatalog returns the fixed set of applications, in display order.
// Both the admin grid and the marketplace read from it.
func DefaultCatalog() []Application {
	out := make([]Application, len(defaultCatalog))
	copy(out, defaultCatalog)
	return out
}
