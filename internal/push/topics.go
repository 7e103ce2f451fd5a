package push

import "fmt"

func TopicStatusChanged(sessionID string) string {
	return fmt.Sprintf(topicStatusChanged, sessionID)
}

func TopicTimeUpdate(sessionID string) string {
	return fmt.Sprintf(topicTimeUpdate, sessionID)
}
