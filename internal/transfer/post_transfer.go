package transfer

import "github.com/golang-jwt/jwt/v5"

type PostCreation struct {
	SocialAccountID int64    `json:"social_account_id"`
	Platform        string   `json:"platform"`
	PostType        string   `json:"post_type"`
	Content         string   `json:"content"`
	MediaURL        string   `json:"media_url"`
	MediaType       string   `json:"media_type"`
	CarouselURLs    []string `json:"carousel_urls"`
	LocationID      string   `json:"location_id"`
	ScheduledAt     string   `json:"scheduled_at"`
}

type CustomClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// GraphErrorResponse is the error envelope shared by the Instagram and
// Facebook Graph APIs.
type GraphErrorResponse struct {
	Error struct {
		Message      string `json:"message"`
		Type         string `json:"type"`
		Code         int    `json:"code"`
		ErrorSubcode int    `json:"error_subcode"`
		IsTransient  bool   `json:"is_transient"`
		FbtraceID    string `json:"fbtrace_id"`
	} `json:"error"`
}
