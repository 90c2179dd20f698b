package models

// Student is a row of the school's student directory. The directory is owned by
// the school platform; this service only reads it.
type Student struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Username    string `gorm:"size:150" json:"username"`
	FullName    string `gorm:"column:fullname;size:255" json:"fullname"`
	PhoneNumber string `gorm:"size:32;index" json:"phone_number"`
	ClassNameID *uint  `json:"class_name_id"`
	Section     string `gorm:"size:32" json:"section"`
}

// TableName maps the model to the directory table of the school platform.
func (Student) TableName() string {
	return "Users_student"
}

// DisplayName prefers the username, which is what parents see on their reports.
func (s Student) DisplayName() string {
	if s.Username != "" {
		return s.Username
	}
	return s.FullName
}
