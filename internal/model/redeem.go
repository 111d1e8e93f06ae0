package model

// Redeem is a single-use promotional reward token issued by a partner
// company. A token is created unredeemed at version 1 and is mutated
// exactly once, when a user claims it.
type Redeem struct {
	Token    string `json:"token"`
	Company  string `json:"company"`
	Redeemed bool   `json:"redeemed"`
	Username string `json:"username,omitempty"`
	Reward   int    `json:"reward"`
	Version  int    `json:"version"`
}

// NewRedeem creates an unredeemed token at version 1.
func NewRedeem(token, company string, reward int) *Redeem {
	return &Redeem{
		Token:   token,
		Company: company,
		Reward:  reward,
		Version: 1,
	}
}

// RedeemRequest is the DTO for redeeming a token for a user.
type RedeemRequest struct {
	Username string `json:"username" validate:"required,notblank,max=255"`
	Token    string `json:"token" validate:"required,notblank,max=255"`
}

// CreateRedeemsRequest is the DTO for bulk-issuing new tokens.
type CreateRedeemsRequest struct {
	Company string   `json:"company" validate:"required,notblank,max=255"`
	Reward  *int     `json:"reward" validate:"required,gte=1"`
	Tokens  []string `json:"tokens" validate:"required,min=1,dive,required,notblank,max=255"`
}
