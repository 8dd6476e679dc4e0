package selector

import (
	"context"

	"github.com/LeonardoBeccarini/aquamonitor/internal/model/entities"
	"github.com/LeonardoBeccarini/aquamonitor/internal/model/messages"
)

// RuleSelector is a static rendition of the routing policy:
// push is never used when disallowed, an open app gets push,
// high urgency with the app closed goes to email, otherwise the preferred channel.
type RuleSelector struct{}

func (RuleSelector) Select(_ context.Context, req messages.ChannelRequest) (messages.ChannelDecision, error) {
	prefs := req.UserPreferences
	switch {
	case !prefs.AllowPushNotifications:
		return messages.ChannelDecision{
			Channel: entities.ChannelEmail,
			Reason:  "Push notifications are disabled, so the alert is sent by email.",
		}, nil
	case req.AppContext.IsAppOpen:
		return messages.ChannelDecision{
			Channel: entities.ChannelPush,
			Reason:  "The app is open, so a push notification is seen immediately.",
		}, nil
	case req.Urgency == messages.UrgencyHigh:
		return messages.ChannelDecision{
			Channel: entities.ChannelEmail,
			Reason:  "High urgency while the app is closed; email makes sure the alert is not missed.",
		}, nil
	case prefs.PreferredChannel.Valid():
		return messages.ChannelDecision{
			Channel: prefs.PreferredChannel,
			Reason:  "Using the user's preferred channel.",
		}, nil
	default:
		return messages.ChannelDecision{
			Channel: entities.ChannelPush,
			Reason:  "No preferred channel set; defaulting to push.",
		}, nil
	}
}
