package shared

// Platform permissions, rendered as resource:action strings.
const (
	PermUserRead  = "user:read"
	PermUserWrite = "user:write"

	PermRoleRead  = "role:read"
	PermRoleWrite = "role:write"

	PermEmployeeRead  = "employee:read"
	PermEmployeeWrite = "employee:write"

	PermDepartmentRead  = "department:read"
	PermDepartmentWrite = "department:write"

	PermPayrollRead  = "payroll:read"
	PermPayrollWrite = "payroll:write"
)

// CoreScopes lists every permission the platform seeds at install time.
func CoreScopes() []string {
	return []string{
		PermUserRead,
		PermUserWrite,
		PermRoleRead,
		PermRoleWrite,
		PermEmployeeRead,
		PermEmployeeWrite,
		PermDepartmentRead,
		PermDepartmentWrite,
		PermPayrollRead,
		PermPayrollWrite,
	}
}
