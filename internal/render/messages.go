package render

// Message is sent from a presentation to the quiz session. SelectionChanged
// and Submitted are the only implementations.
type Message interface {
	presentation() uint64
}

// SelectionChanged records the answer currently picked on a presentation.
type SelectionChanged struct {
	PresentationID uint64
	Answer         string
}

// Submitted asks the session to grade the current selection.
type Submitted struct {
	PresentationID uint64
}

func (m SelectionChanged) presentation() uint64 { return m.PresentationID }
func (m Submitted) presentation() uint64        { return m.PresentationID }

// PresentationOf returns the presentation a message belongs to.
func PresentationOf(m Message) uint64 {
	return m.presentation()
}
