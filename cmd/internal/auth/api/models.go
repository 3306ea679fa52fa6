package authapi

type authenticateRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// accessTokenResponse is the body of both refresh and login responses.
// A failed refresh answers {"ok":false,"access_token":""} whatever the cause.
type accessTokenResponse struct {
	OK          bool   `json:"ok"`
	AccessToken string `json:"access_token"`
}

type meResponse struct {
	SubjectID string `json:"subject_id"`
	Role      string `json:"role"`
}
