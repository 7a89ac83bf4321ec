package repository

import "time"

// PostListFilter 查询文章列表的过滤条件
type PostListFilter struct {
	Page          int
	PageSize      int
	Type          string
	Search        string
	OnlyPublished bool
	OrderBy       string
}

// SessionListFilter 查询会话列表的过滤条件
type SessionListFilter struct {
	Page        int
	PageSize    int
	UserID      uint
	IPAddress   string
	LoginType   string
	ActiveOnly  bool
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// UserLoginLogListFilter 查询登录日志列表的过滤条件
type UserLoginLogListFilter struct {
	Page        int
	PageSize    int
	UserID      uint
	Email       string
	Status      string
	FailReason  string
	ClientIP    string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// NotificationListFilter 查询通知列表的过滤条件
type NotificationListFilter struct {
	Page       int
	PageSize   int
	UserID     uint
	Type       string
	UnreadOnly bool
}
