package response

/* ========================================================================
 * Response Types - 响应类型定义
 * ======================================================================== */

// Result 标准 API 响应结构
type Result struct {
	Code int    `json:"code" example:"0" doc:"业务码，0 表示成功"`
	Msg  string `json:"msg" example:"ok" doc:"响应消息"`
	Data any    `json:"data" doc:"响应数据；版本冲突时包含 client_version / current_version"`
}

// Page 分页数据
type Page struct {
	List     any   `json:"list"`
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Pages    int   `json:"pages"`
}
