package model

import (
	"bytes"
	"encoding/json"
	"time"
)

type Account struct {
	ID        string
	PublicKey string
	Email     string
	IsAdmin   bool
	CreatedAt int64
}

// Text is a form field value. Browser clients sometimes persist numeric
// inputs (budget, duration, ids) as JSON numbers, so numbers and null decode
// into their string form.
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*t = ""
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*t = Text(n.String())
		return nil
	}
}

func (t Text) Empty() bool {
	return len(bytes.TrimSpace([]byte(t))) == 0
}

type ClientDraft struct {
	Name      Text `json:"name"`
	Phone     Text `json:"phone"`
	Email     Text `json:"email"`
	Address   Text `json:"address"`
	VKProfile Text `json:"vkProfile"`
}

func (d ClientDraft) Empty() bool {
	return d.Name.Empty() && d.Phone.Empty() && d.Email.Empty() && d.Address.Empty() && d.VKProfile.Empty()
}

type ProjectDraft struct {
	Name             Text `json:"name"`
	Budget           Text `json:"budget"`
	Description      Text `json:"description"`
	StartDate        Text `json:"startDate"`
	ShootingStyleID  Text `json:"shootingStyleId"`
	ShootingTime     Text `json:"shooting_time"`
	ShootingDuration Text `json:"shooting_duration"`
	ShootingAddress  Text `json:"shooting_address"`
}

func (d ProjectDraft) Empty() bool {
	return d.Name.Empty() && d.Budget.Empty() && d.Description.Empty() && d.StartDate.Empty() &&
		d.ShootingStyleID.Empty() && d.ShootingTime.Empty() && d.ShootingDuration.Empty() && d.ShootingAddress.Empty()
}

// Substantive reports whether the draft carries enough to be worth offering
// back to the user.
func (d ProjectDraft) Substantive() bool {
	return !d.Name.Empty() || !d.Budget.Empty() || !d.Description.Empty()
}

// OpenCard is the payload of an open-card marker; the marker's timestamp
// lives on the enclosing record.
type OpenCard struct {
	ClientID   Text `json:"clientId"`
	ClientName Text `json:"clientName"`
}

// ActivitySession mirrors the browser's authSession entry.
type ActivitySession struct {
	ID              string `json:"sessionId,omitempty"`
	IsAuthenticated bool   `json:"isAuthenticated"`
	UserID          Text   `json:"userId"`
	UserEmail       string `json:"userEmail"`
	IsAdmin         bool   `json:"isAdmin"`
	CurrentPage     string `json:"currentPage"`
	LastActivity    int64  `json:"lastActivity"`
}

type SessionWarningConfig struct {
	WarningMinutes        int `json:"warningMinutes"`
	SessionTimeoutMinutes int `json:"sessionTimeoutMinutes"`
}

func DefaultSessionWarningConfig() SessionWarningConfig {
	return SessionWarningConfig{WarningMinutes: 1, SessionTimeoutMinutes: 7}
}

func (c SessionWarningConfig) Warning() time.Duration {
	return time.Duration(c.WarningMinutes) * time.Minute
}

func (c SessionWarningConfig) Timeout() time.Duration {
	return time.Duration(c.SessionTimeoutMinutes) * time.Minute
}
