package models

// Payloads of the view events a quiz session publishes.

type PanelEvent struct {
	Panel   string `json:"panel"`
	Visible bool   `json:"visible"`
}

type ChaptersEvent struct {
	Chapters []Chapter `json:"chapters"`
}

type TimerEvent struct {
	Clock string `json:"clock"`
}

type NotificationEvent struct {
	Message string `json:"message"`
}
