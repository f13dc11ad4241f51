package models

import "time"

type Resource string

const (
	ResourceDashboard       Resource = "dashboard"
	ResourceProducts        Resource = "products"
	ResourceCategories      Resource = "categories"
	ResourceUsers           Resource = "users"
	ResourceOrders          Resource = "orders"
	ResourceSettings        Resource = "settings"
	ResourceNews            Resource = "news"
	ResourcePartners        Resource = "partners"
	ResourceTestimonials    Resource = "testimonials"
	ResourceContactMessages Resource = "contact_messages"
	ResourceAuth            Resource = "auth"
	ResourcePermissions     Resource = "permissions"
)

type Action string

const (
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

type Permission struct {
	ID          string    `json:"id"`
	Resource    Resource  `json:"resource"`
	Action      Action    `json:"action"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

type UserPermission struct {
	ID           string
	UserID       string
	PermissionID string
	IsGranted    bool
	CreatedAt    time.Time
}

// Requirement is one (resource, action) pair a route demands.
type Requirement struct {
	Resource Resource
	Action   Action
}

func Require(resource Resource, action Action) Requirement {
	return Requirement{Resource: resource, Action: action}
}

func (r Requirement) String() string {
	return string(r.Resource) + ":" + string(r.Action)
}
