package dto

import (
	domainidentity "bchat/internal/domain/identity"
	domainprofile "bchat/internal/domain/profile"
)

type AuthResponse struct {
	Token   string  `json:"token"`
	Email   string  `json:"email"`
	Profile Profile `json:"profile"`
}

func NewAuthResponse(identity *domainidentity.Identity, p *domainprofile.Profile, token string) AuthResponse {
	resp := AuthResponse{Token: token, Profile: MapProfile(p)}
	if identity != nil {
		resp.Email = identity.Email
	}
	return resp
}
