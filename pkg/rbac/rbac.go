package rbac

// 权限常量
const (
	PermissionReadRequest     = "request:read"
	PermissionDecideRequest   = "request:decide"
	PermissionBackfillRequest = "request:backfill"
	PermissionManageUsers     = "user:manage"
	PermissionReadMessage     = "message:read"
	PermissionManageMessage   = "message:manage"
	PermissionReplayOutbox    = "outbox:replay"
)

// 角色常量
const (
	RoleAdmin = "admin"
	RoleHR    = "hr"
)

// 角色权限映射
var rolePermissions = map[string][]string{
	RoleHR: {
		PermissionReadRequest,
		PermissionDecideRequest,
		PermissionReadMessage,
		PermissionManageMessage,
	},
	RoleAdmin: {
		PermissionReadRequest,
		PermissionDecideRequest,
		PermissionBackfillRequest,
		PermissionManageUsers,
		PermissionReadMessage,
		PermissionManageMessage,
		PermissionReplayOutbox,
	},
}

// IsValidRole 检查角色是否存在
func IsValidRole(role string) bool {
	_, ok := rolePermissions[role]
	return ok
}

// HasPermission 检查角色是否有指定权限
func HasPermission(role string, permission string) bool {
	for _, p := range rolePermissions[role] {
		if p == permission {
			return true
		}
	}
	return false
}

// CheckPermission 检查角色是否有指定权限（返回错误而不是布尔值，便于处理）
func CheckPermission(userID, role, permission string) error {
	if !HasPermission(role, permission) {
		return &PermissionDeniedError{
			UserID:     userID,
			Role:       role,
			Permission: permission,
		}
	}
	return nil
}

// ComplementaryRole admin <-> hr
func ComplementaryRole(role string) string {
	if role == RoleAdmin {
		return RoleHR
	}
	return RoleAdmin
}

// PermissionDeniedError 表示权限不足的错误
type PermissionDeniedError struct {
	UserID     string
	Role       string
	Permission string
}

func (e *PermissionDeniedError) Error() string {
	return "insufficient permissions"
}
