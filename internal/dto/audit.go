package dto

// AuditQuery mirrors supported audit listing filters.
type AuditQuery struct {
	EntityType string `form:"entityType"`
	EntityID   *int64 `form:"entityId"`
	UserID     *int64 `form:"userId"`
	Page       int    `form:"page"`
	PageSize   int    `form:"pageSize"`
}
