package entities

import (
	"fmt"
	"strings"
)

// Channel is the delivery route chosen for an alert.
type Channel string

const (
	ChannelPush  Channel = "push"
	ChannelEmail Channel = "email"
)

func (c Channel) Valid() bool { return c == ChannelPush || c == ChannelEmail }

func ParseChannel(s string) (Channel, error) {
	c := Channel(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("unknown channel %q", s)
	}
	return c, nil
}

type UserPreferences struct {
	PreferredChannel       Channel `json:"preferredChannel"`
	AllowPushNotifications bool    `json:"allowPushNotifications"`
}

type Profile struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

type Notifications struct {
	UserPreferences
	Thresholds map[SensorKind]SafeRange `json:"thresholds"`
}

type UserSettings struct {
	Profile       Profile       `json:"profile"`
	Notifications Notifications `json:"notifications"`
}

func DefaultSettings() *UserSettings {
	return &UserSettings{
		Profile: Profile{
			Name:      "Alex Doe",
			Email:     "alex.doe@example.com",
			AvatarURL: "https://i.pravatar.cc/150?u=alexdoe",
		},
		Notifications: Notifications{
			UserPreferences: UserPreferences{
				PreferredChannel:       ChannelPush,
				AllowPushNotifications: true,
			},
			Thresholds: DefaultThresholds(),
		},
	}
}

// Clone returns a deep copy safe to hand to another goroutine.
func (s *UserSettings) Clone() *UserSettings {
	if s == nil {
		return nil
	}
	out := *s
	out.Notifications.Thresholds = make(map[SensorKind]SafeRange, len(s.Notifications.Thresholds))
	for k, v := range s.Notifications.Thresholds {
		out.Notifications.Thresholds[k] = v
	}
	return &out
}

// Threshold falls back to the factory default when a kind is missing from the record.
func (s *UserSettings) Threshold(kind SensorKind) SafeRange {
	if r, ok := s.Notifications.Thresholds[kind]; ok {
		return r
	}
	return DefaultThresholds()[kind]
}

// Normalize fills gaps left by partially persisted records.
func (s *UserSettings) Normalize() {
	def := DefaultSettings()
	if s.Notifications.Thresholds == nil {
		s.Notifications.Thresholds = def.Notifications.Thresholds
	}
	for _, k := range AllKinds {
		if _, ok := s.Notifications.Thresholds[k]; !ok {
			s.Notifications.Thresholds[k] = def.Notifications.Thresholds[k]
		}
	}
	if !s.Notifications.PreferredChannel.Valid() {
		s.Notifications.PreferredChannel = def.Notifications.PreferredChannel
	}
}

// SettingsPatch is a typed partial update; nil fields are left untouched.
type SettingsPatch struct {
	Thresholds             map[SensorKind]SafeRange `json:"thresholds,omitempty"`
	PreferredChannel       *Channel                 `json:"preferredChannel,omitempty"`
	AllowPushNotifications *bool                    `json:"allowPushNotifications,omitempty"`
	ProfileName            *string                  `json:"name,omitempty"`
	ProfileEmail           *string                  `json:"email,omitempty"`
}

func (p SettingsPatch) Validate() error {
	for k, r := range p.Thresholds {
		if !k.Valid() {
			return fmt.Errorf("%w: %q", ErrUnknownKind, k)
		}
		if err := r.Validate(); err != nil {
			return fmt.Errorf("%s: %w", k, err)
		}
	}
	if p.PreferredChannel != nil && !p.PreferredChannel.Valid() {
		return fmt.Errorf("unknown channel %q", *p.PreferredChannel)
	}
	return nil
}

// Apply merges the patch into s. Callers validate first.
func (p SettingsPatch) Apply(s *UserSettings) {
	if s.Notifications.Thresholds == nil {
		s.Notifications.Thresholds = make(map[SensorKind]SafeRange, len(p.Thresholds))
	}
	for k, r := range p.Thresholds {
		s.Notifications.Thresholds[k] = r
	}
	if p.PreferredChannel != nil {
		s.Notifications.PreferredChannel = *p.PreferredChannel
	}
	if p.AllowPushNotifications != nil {
		s.Notifications.AllowPushNotifications = *p.AllowPushNotifications
	}
	if p.ProfileName != nil {
		s.Profile.Name = *p.ProfileName
	}
	if p.ProfileEmail != nil {
		s.Profile.Email = *p.ProfileEmail
	}
}
