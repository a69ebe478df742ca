package model

const (
	UserTypeAdmin   = "admin"
	UserTypeManager = "manager"
	UserTypeStaff   = "staff"
	UserTypeTutor   = "tutor"
)

type User struct {
	ID         int64  `json:"id"`
	Email      string `json:"email"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	UserType   string `json:"user_type"`
	IsActive   bool   `json:"is_active"`
	IsVerified bool   `json:"is_verified"`
	IsApproved bool   `json:"is_approved"`
}

func (u User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// TutorProfile is the sidecar record returned for tutor accounts, both as
// tutor_profile and as tutor in the login response.
type TutorProfile struct {
	ID                int64    `json:"id"`
	TutorID           string   `json:"tutor_id"`
	YearsOfExperience int      `json:"years_of_experience"`
	HourlyRate        float64  `json:"hourly_rate"`
	Subjects          []string `json:"subjects,omitempty"`
}

type Credentials struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	User         *User         `json:"user"`
	TutorProfile *TutorProfile `json:"tutor_profile,omitempty"`
	Tutor        *TutorProfile `json:"tutor,omitempty"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type RefreshResponse struct {
	AccessToken string `json:"access_token"`
}

// AuthClaims are the fields the development backend puts in its JWTs.
type AuthClaims struct {
	UserID   int64
	Email    string
	UserType string
	Type     string
	TokenID  string
}
