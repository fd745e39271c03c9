package models

import "gorm.io/datatypes"

// Account is an isolated tenant whose membership and data are scoped
// independently of other accounts.
type Account struct {
	BaseModel

	Name      string         `gorm:"not null" json:"name"`
	ShortName string         `gorm:"not null;uniqueIndex" json:"short_name"`
	Settings  datatypes.JSON `json:"settings,omitempty"`

	Accesses []AccountAccess `gorm:"foreignKey:AccountID" json:"accesses,omitempty"`
}
