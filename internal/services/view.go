package services

import (
	"context"
	"log"
	"sync"
	"time"

	"quizrunner-backend/internal/models"
	"quizrunner-backend/internal/quiz"
)

const (
	EventPanel        = "panel"
	EventChapters     = "chapters"
	EventQuestion     = "question"
	EventTimer        = "timer"
	EventResults      = "results"
	EventNotification = "notification"
	EventState        = "state"

	publishTimeout = 2 * time.Second
	outboxSize     = 256
)

type EventPublisher interface {
	Publish(ctx context.Context, identity string, msg models.WSMessage) error
}

// SessionView renders a quiz session by publishing events to the browser
// identity's updates channel. Render calls only enqueue; one goroutine per
// view publishes in order, so a slow Redis never blocks the session lock.
type SessionView struct {
	identity string
	pub      EventPublisher

	mu     sync.Mutex
	closed bool
	outbox chan models.WSMessage
	done   chan struct{}
}

func NewSessionView(identity string, pub EventPublisher) *SessionView {
	v := &SessionView{
		identity: identity,
		pub:      pub,
		outbox:   make(chan models.WSMessage, outboxSize),
		done:     make(chan struct{}),
	}
	go v.run()
	return v
}

func (v *SessionView) ShowPanel(panel quiz.Panel, visible bool) {
	v.publish(EventPanel, models.PanelEvent{Panel: string(panel), Visible: visible})
}

func (v *SessionView) RenderChapters(chapters []models.Chapter) {
	if chapters == nil {
		chapters = []models.Chapter{}
	}
	v.publish(EventChapters, models.ChaptersEvent{Chapters: chapters})
}

func (v *SessionView) RenderQuestion(q quiz.QuestionView) {
	v.publish(EventQuestion, q)
}

func (v *SessionView) RenderTimer(text string) {
	v.publish(EventTimer, models.TimerEvent{Clock: text})
}

func (v *SessionView) RenderResults(sub quiz.Submission) {
	v.publish(EventResults, sub)
}

func (v *SessionView) Notify(message string) {
	v.publish(EventNotification, models.NotificationEvent{Message: message})
}

func (v *SessionView) publish(eventType string, payload interface{}) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return
	}
	select {
	case v.outbox <- models.WSMessage{Type: eventType, Payload: payload}:
	default:
		log.Printf("view %s: outbox full, dropping %s event", v.identity, eventType)
	}
}

func (v *SessionView) run() {
	defer close(v.done)

	for msg := range v.outbox {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		if err := v.pub.Publish(ctx, v.identity, msg); err != nil {
			log.Printf("view %s: failed to publish %s event: %v", v.identity, msg.Type, err)
		}
		cancel()
	}
}

// Close publishes whatever is queued and stops the sender. Later render
// calls are dropped.
func (v *SessionView) Close() {
	v.mu.Lock()
	if !v.closed {
		v.closed = true
		close(v.outbox)
	}
	v.mu.Unlock()

	<-v.done
}
