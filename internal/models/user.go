package models

// User is an identity that can hold account memberships. Authentication and
// profile lifecycle are owned elsewhere; this subsystem only reads users.
type User struct {
	BaseModel

	Email    string `gorm:"not null;uniqueIndex" json:"email"`
	Name     string `json:"name"`
	IsActive bool   `gorm:"default:true" json:"is_active"`

	Accesses []AccountAccess `gorm:"foreignKey:UserID" json:"accesses,omitempty"`
}
