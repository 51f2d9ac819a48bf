package ws

import (
	"strings"

	"github.com/leafsii/feed-backend/internal/store"
)

// ParseTopics splits a comma separated topics parameter
func ParseTopics(param string) []string {
	if param == "" {
		return nil
	}
	var topics []string
	for _, t := range strings.Split(param, ",") {
		if t = strings.TrimSpace(t); t != "" {
			topics = append(topics, t)
		}
	}
	return topics
}

// TopicChannels maps a client topic to bus channels or patterns. Raw
// feed:* channel names are accepted as-is; unknown topics map to nothing.
func TopicChannels(topic string) []string {
	switch topic {
	case "events":
		return []string{store.PatternEvents}
	case "leaderboard":
		return []string{store.ChannelLeaderboard}
	case "comments":
		return []string{store.ChannelCommentCreated}
	case "likes":
		return []string{
			store.ChannelPostLiked,
			store.ChannelPostUnliked,
			store.ChannelCommentLiked,
			store.ChannelCommentUnliked,
		}
	}
	if strings.HasPrefix(topic, "feed:") {
		return []string{topic}
	}
	return nil
}

// EventType names the stream event for a bus channel
func EventType(channel string) string {
	switch {
	case channel == store.ChannelLeaderboard:
		return "leaderboard_update"
	case strings.HasPrefix(channel, "feed:events:"):
		return strings.TrimPrefix(channel, "feed:events:")
	default:
		return "update"
	}
}
