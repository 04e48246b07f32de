package main

import "log"

const (
	NotifyConfigChange = "CONFIG_CHANGE"
	NotifyConfigFlush  = "CONFIG_FLUSH"
)

// Notifier tells a user's other instances that their synced data moved.
// The originating instance is excluded so a client never reacts to its
// own upload.
type Notifier interface {
	NotifyUser(userID, excludeInstanceID, event string)
}

// LogNotifier is the standalone-server implementation: it only records
// the notification. Deployments with a push channel plug in their own.
type LogNotifier struct{}

func (LogNotifier) NotifyUser(userID, excludeInstanceID, event string) {
	log.Printf("sync notify user=%s exclude=%s event=%s", userID, excludeInstanceID, event)
}
