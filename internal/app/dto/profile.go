package dto

import (
	"time"

	domainprofile "bchat/internal/domain/profile"
)

type Profile struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	Online      bool      `json:"online_status"`
	LastSeen    time.Time `json:"last_seen"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type ProfileList struct {
	Items []Profile `json:"items"`
}

func MapProfile(p *domainprofile.Profile) Profile {
	if p == nil {
		return Profile{}
	}
	return Profile{
		ID:          p.ID,
		DisplayName: p.DisplayName,
		AvatarURL:   p.AvatarURL,
		Online:      p.Online,
		LastSeen:    p.LastSeen,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func MapProfiles(profiles []domainprofile.Profile) ProfileList {
	items := make([]Profile, 0, len(profiles))
	for i := range profiles {
		items = append(items, MapProfile(&profiles[i]))
	}
	return ProfileList{Items: items}
}
