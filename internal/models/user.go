package models

import "time"

// User is a registered account with its profile data. The password hash
// never leaves the user service.
type User struct {
	ID             string           `json:"id"`
	Name           string           `json:"name"`
	Email          string           `json:"email"`
	HashedPassword string           `json:"-"`
	DOB            *string          `json:"dob"`
	Gender         *string          `json:"gender"`
	Hometown       *string          `json:"hometown"`
	Languages      []string         `json:"languages"`
	Interests      []string         `json:"interests"`
	PictureURL     string           `json:"profilePictureURL"`
	ThumbnailURL   string           `json:"thumbnailURL"`
	Skills         []Skill          `json:"skills"`
	WorkExperience []WorkExperience `json:"workExperience"`
	Education      []Education      `json:"education"`
	Awards         []Award          `json:"awards"`
	CreatedAt      time.Time        `json:"createdAt"`
	UpdatedAt      time.Time        `json:"updatedAt"`
}

type Skill struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Level     *string   `json:"level"`
	CreatedAt time.Time `json:"createdAt"`
}

// WorkExperience is one job on a profile. Section dates are YYYY-MM-DD
// strings and a nil EndDate means ongoing.
type WorkExperience struct {
	ID           string    `json:"id"`
	Organization string    `json:"organization"`
	Role         string    `json:"role"`
	Location     string    `json:"location"`
	Description  *string   `json:"description"`
	StartDate    string    `json:"startDate"`
	EndDate      *string   `json:"endDate"`
	CreatedAt    time.Time `json:"createdAt"`
}

type Education struct {
	ID            string    `json:"id"`
	Institute     string    `json:"institute"`
	InstituteType string    `json:"instituteType"`
	Description   *string   `json:"description"`
	StartDate     string    `json:"startDate"`
	EndDate       *string   `json:"endDate"`
	CreatedAt     time.Time `json:"createdAt"`
}

type Award struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

// UserSummary is the display info other services embed next to posts,
// comments and connection lists.
type UserSummary struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ThumbnailURL string `json:"thumbnailURL"`
}

// Credentials is what the auth service needs to check a password.
type Credentials struct {
	UserID         string `json:"userID"`
	HashedPassword string `json:"hashedPassword"`
}
