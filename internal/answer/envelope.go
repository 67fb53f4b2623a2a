package answer

import (
	"encoding/json"

	"github.com/seanblong/siteanswer/pkg/models"
)

// Used names where an answer came from.
type Used string

const (
	UsedSite Used = "site"
	UsedWeb  Used = "web"
	UsedNone Used = "none"
)

// State is the terminal state the orchestrator reached.
type State string

const (
	StateLocalMatch   State = "local_match"
	StateAwaitConsent State = "await_consent"
	StateWebMatch     State = "web_match"
	StateNone         State = "none"
)

// Envelope is the answer returned to the chat widget. It can only be built
// through Site, Web and None, so a site answer never asks for consent and a
// web answer always carries its search-result sources.
type Envelope struct {
	used    Used
	state   State
	answer  string
	sources []models.Source
	askWeb  bool
}

// Site is an answer drawn from page content.
func Site(answer string, source models.Source) Envelope {
	return Envelope{
		used:    UsedSite,
		state:   StateLocalMatch,
		answer:  answer,
		sources: []models.Source{source},
	}
}

// Web is an answer drawn from web search results.
func Web(answer string, sources []models.Source) Envelope {
	return Envelope{
		used:    UsedWeb,
		state:   StateWebMatch,
		answer:  answer,
		sources: append([]models.Source(nil), sources...),
	}
}

// None is a non-answer. askWeb asks the user for permission to search.
func None(answer string, askWeb bool) Envelope {
	state := StateNone
	if askWeb {
		state = StateAwaitConsent
	}
	return Envelope{used: UsedNone, state: state, answer: answer, askWeb: askWeb}
}

// Used reports which source produced the answer.
func (e Envelope) Used() Used { return e.used }

// State is the reason code behind the answer.
func (e Envelope) State() State { return e.state }

// Answer is the text shown to the user.
func (e Envelope) Answer() string { return e.answer }

// AskWeb reports whether the client should offer a web search.
func (e Envelope) AskWeb() bool { return e.askWeb }

// Sources returns a copy of the cited sources, in rank order.
func (e Envelope) Sources() []models.Source {
	return append([]models.Source{}, e.sources...)
}

type envelopeJSON struct {
	Used    Used            `json:"used"`
	Answer  string          `json:"answer"`
	Sources []models.Source `json:"sources"`
	AskWeb  bool            `json:"askWeb,omitempty"`
}

// MarshalJSON writes {used, answer, sources, askWeb?}. sources is never null.
func (e Envelope) MarshalJSON() ([]byte, error) {
	return json.Marshal(envelopeJSON{
		Used:    e.used,
		Answer:  e.answer,
		Sources: e.Sources(),
		AskWeb:  e.askWeb,
	})
}
