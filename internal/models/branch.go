package models

import "time"

// Branch is a physical pharmacy location. Most entities are partitioned by branch.
type Branch struct {
	ID          string `gorm:"size:36;primaryKey"`
	Name        string `gorm:"size:100;not null;unique"`
	Code        string `gorm:"size:50;not null;unique"`
	Address     string `gorm:"size:255"`
	Phone       string `gorm:"size:50"`
	ManagerName string `gorm:"size:100"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Users []User
}
