package models

// Course is a course offering returned by the directory service.
type Course struct {
	ID   int64
	Name string
	Code string
}

// Class is a teaching class returned by the directory service.
type Class struct {
	ID   int64
	Name string
	Code string
}

// Department is an academic department returned by the directory service.
type Department struct {
	ID   int64
	Name string
	Code string
}

// Student is a student enrolled in a class.
type Student struct {
	ID       int64
	FullName string
}

// Notification is a message delivered through the notification service.
type Notification struct {
	RecipientID int64
	Title       string
	Message     string
	Type        string
	Priority    string
	Metadata    map[string]any
}
