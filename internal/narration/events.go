package narration

// Events receives narration lifecycle notifications. Implementations must
// not call back into the Orchestrator synchronously.
type Events interface {
	NarrationStarted(text string)
	NarrationFinished(text string, err error)
	NarrationSkipped(text string, err error)
	QueueFlushed(dropped int)
}

// NopEvents discards all notifications
type NopEvents struct{}

func (NopEvents) NarrationStarted(string)         {}
func (NopEvents) NarrationFinished(string, error) {}
func (NopEvents) NarrationSkipped(string, error)  {}
func (NopEvents) QueueFlushed(int)                {}
