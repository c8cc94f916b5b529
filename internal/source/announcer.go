package source

import (
	"time"

	"github.com/nerrad567/gray-logic-automata/internal/automation"
	"github.com/nerrad567/gray-logic-automata/internal/infrastructure/mqtt"
)

// Publisher is the subset of *mqtt.Client the announcer needs.
type Publisher interface {
	PublishJSON(topic string, v any) error
	IsConnected() bool
}

// RunMessage is published for every recorded run.
type RunMessage struct {
	EntryID    int64             `json:"entry_id"`
	Automation string            `json:"automation"`
	Title      string            `json:"title"`
	State      string            `json:"state"`
	Error      string            `json:"error,omitempty"`
	Data       map[string]string `json:"data"`
	DurationMS int64             `json:"duration_ms"`
	Retry      bool              `json:"retry"`
	Timestamp  time.Time         `json:"timestamp"`
}

// Announcer publishes recorded runs to MQTT. It implements
// automation.RunObserver.
type Announcer struct {
	pub    Publisher
	logger Logger
}

// NewAnnouncer creates an announcer. A nil logger discards errors.
func NewAnnouncer(pub Publisher, logger Logger) *Announcer {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Announcer{pub: pub, logger: logger}
}

// RunRecorded implements automation.RunObserver. Runs recorded while the
// broker is unreachable are not announced.
func (a *Announcer) RunRecorded(run automation.Run) {
	if !a.pub.IsConnected() {
		return
	}

	id := run.Entry.Automation.String()
	msg := RunMessage{
		EntryID:    run.Entry.ID,
		Automation: id,
		Title:      run.Title,
		State:      string(run.Entry.State),
		Error:      run.Entry.ErrorMessage(),
		Data:       run.Entry.Data.Values(),
		DurationMS: run.Duration.Milliseconds(),
		Retry:      run.Retry,
		Timestamp:  run.Entry.CreatedAt,
	}
	if err := a.pub.PublishJSON(mqtt.Topics{}.Run(id), msg); err != nil {
		a.logger.Error("announcing run failed", "automation", id, "error", err)
	}
}
