package intent

import (
	"regexp"
	"strings"

	"github.com/seanblong/siteanswer/pkg/models"
)

var (
	fllRe        = regexp.MustCompile(`\bfll\b|\bfirst lego league\b`)
	definitionRe = regexp.MustCompile(`(what\s+is|define|meaning|stand\s*for|explain)`)
)

// FLLDefinition is the canned answer for "what is FLL" style questions.
const FLLDefinition = "FLL stands for FIRST LEGO League, a global robotics program from FIRST " +
	"for students ages 9 to 16. Teams design, build and program a LEGO robot to solve " +
	"missions on a themed table, research a real-world problem for the Innovation Project, " +
	"and are judged on the FIRST core values."

// FLLSource is the fixed source attached to the FLL definition.
var FLLSource = models.Source{
	Title: "FIRST LEGO League",
	URL:   "https://www.firstlegoleague.org/",
}

// Definition is a canned answer that bypasses local scoring.
type Definition struct {
	Answer string
	Source models.Source
}

// DefinitionFor returns the canned definition when the question asks what
// the acronym means. Generic scoring would otherwise surface any section
// that happens to mention the league.
func DefinitionFor(question string) (Definition, bool) {
	q := strings.ToLower(question)
	if fllRe.MatchString(q) && definitionRe.MatchString(q) {
		return Definition{Answer: FLLDefinition, Source: FLLSource}, true
	}
	return Definition{}, false
}
