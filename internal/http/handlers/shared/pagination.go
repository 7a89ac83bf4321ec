package shared

// NormalizePagination 归一化列表接口的分页参数。
// 页码从 1 开始，每页默认 20 条，上限 100 条。
func NormalizePagination(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}
