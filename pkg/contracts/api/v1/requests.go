// Package v1 defines request payload contracts for the SitePulse HTTP API.
package v1

// LoginRequest is the POST /api/auth/login payload.
type LoginRequest struct {
	Username string `json:"username" validate:"required,min=3,max=32"`
	Password string `json:"password" validate:"required,min=8"`
}

// CreateUserRequest is the POST /api/users payload.
type CreateUserRequest struct {
	Username string `json:"username" validate:"required,min=3,max=32,alphanum"`
	Password string `json:"password" validate:"required,min=8"`
	FullName string `json:"full_name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Role     string `json:"role" validate:"required,oneof=admin inspector project_manager builder property_developer"`
}

// UpdateUserRequest is the PUT /api/users/{username} payload.
type UpdateUserRequest struct {
	FullName *string `json:"full_name,omitempty"`
	Email    *string `json:"email,omitempty" validate:"omitempty,email"`
	Role     *string `json:"role,omitempty" validate:"omitempty,oneof=admin inspector project_manager builder property_developer"`
	IsActive *bool   `json:"is_active,omitempty"`
}

// ChangePasswordRequest is the POST /api/users/{username}/password payload.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8"`
}

// PortfolioRequest creates or updates a portfolio.
type PortfolioRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	Owner       string `json:"owner_username"`
}

// ProjectRequest creates or updates a project.
type ProjectRequest struct {
	PortfolioID string `json:"portfolio_id" validate:"required"`
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	Manager     string `json:"manager_username"`
}

// BuildingRequest creates or updates a building.
type BuildingRequest struct {
	ProjectID    string `json:"project_id" validate:"required"`
	Name         string `json:"name" validate:"required"`
	Address      string `json:"address"`
	TotalUnits   int    `json:"total_units" validate:"min=0"`
	BuildingType string `json:"building_type"`
}

// TradeMappingEntry is one row of a mapping replacement set.
type TradeMappingEntry struct {
	Room      string `json:"room" validate:"required"`
	Component string `json:"component" validate:"required"`
	Trade     string `json:"trade" validate:"required"`
}

// ReplaceMappingsRequest replaces the active trade-mapping set.
type ReplaceMappingsRequest struct {
	Mappings []TradeMappingEntry `json:"mappings" validate:"required,min=1,dive"`
}

// DefectUpdateRequest transitions a defect through the workflow.
type DefectUpdateRequest struct {
	Status     string `json:"status" validate:"required,oneof=open assigned in_progress completed approved rejected"`
	AssignedTo string `json:"assigned_to"`
	Note       string `json:"note"`
}

// GrantAccessRequest grants a user access to a resource.
type GrantAccessRequest struct {
	Username     string `json:"username" validate:"required"`
	ResourceType string `json:"resource_type" validate:"required,oneof=portfolio project building"`
	ResourceID   string `json:"resource_id" validate:"required"`
	Level        string `json:"permission_level" validate:"required,oneof=read write admin"`
}
