package model

// Member is a club member record.
type Member struct {
	ID        string `json:"_id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Course    Ref    `json:"course"`
	Position  Ref    `json:"position"`
	Year      Text   `json:"year"`
	Batch     string `json:"batch"`
	RollNo    string `json:"rollNo"`
	Gender    string `json:"gender"`
	DOB       string `json:"dob"`
	Phone     string `json:"phone"`
	LinkedIn  string `json:"linkedin"`
	Portfolio string `json:"portfolio,omitempty"`
	GitHub    string `json:"github,omitempty"`
	Instagram string `json:"instagram,omitempty"`
	Image     string `json:"image"`
}

// Course is an academic course members and admins are enrolled in.
type Course struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
}

// Position is a club role (office) defined per batch.
type Position struct {
	ID    string `json:"_id"`
	Title string `json:"title"`
	Batch string `json:"batch"`
}

// Event is a club event.
type Event struct {
	ID               string `json:"_id"`
	Title            string `json:"title"`
	Description      string `json:"description"`
	Date             string `json:"date"`
	Venue            string `json:"venue"`
	RegistrationLink string `json:"registrationLink,omitempty"`
	Batch            string `json:"batch"`
	Image            string `json:"image"`
}

// Genders lists the gender codes accepted by the backend.
var Genders = []string{"M", "F", "O"}
