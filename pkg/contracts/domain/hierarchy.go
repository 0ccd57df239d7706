package domain

import "time"

// Portfolio groups development projects under one owner.
type Portfolio struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name" validate:"required"`
	Description string    `json:"description,omitempty" db:"description"`
	Owner       string    `json:"owner_username,omitempty" db:"owner_username"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Project is a development project inside a portfolio.
type Project struct {
	ID          string    `json:"id" db:"id"`
	PortfolioID string    `json:"portfolio_id" db:"portfolio_id"`
	Name        string    `json:"name" db:"name" validate:"required"`
	Description string    `json:"description,omitempty" db:"description"`
	Status      string    `json:"status" db:"status"`
	Manager     string    `json:"manager_username,omitempty" db:"manager_username"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Building is a physical building inside a project; inspections attach here.
type Building struct {
	ID           string    `json:"id" db:"id"`
	ProjectID    string    `json:"project_id" db:"project_id"`
	Name         string    `json:"name" db:"name" validate:"required"`
	Address      string    `json:"address,omitempty" db:"address"`
	TotalUnits   int       `json:"total_units" db:"total_units"`
	BuildingType string    `json:"building_type,omitempty" db:"building_type"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
