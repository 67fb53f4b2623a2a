package intent

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/seanblong/siteanswer/pkg/models"
)

var rosterRe = regexp.MustCompile(`who (are|'s|is) the team|team members?`)

// roleCategories pairs a question pattern with the roles it can name. The
// same pattern is matched against the question and the member's role.
var roleCategories = []*regexp.Regexp{
	regexp.MustCompile(`media|photo|video`),
	regexp.MustCompile(`outreach|community|events`),
	regexp.MustCompile(`scheduler|project`),
	regexp.MustCompile(`hardware|assets`),
	regexp.MustCompile(`materials|logistics`),
	regexp.MustCompile(`email`),
	regexp.MustCompile(`treasurer|attendance`),
}

// RosterSource is the section every roster answer points at.
var RosterSource = models.Source{Title: "About", URL: "#about"}

// Roster answers people questions from the configured team list.
type Roster struct {
	Members []models.TeamMember
}

// NewRoster creates a Roster over members.
func NewRoster(members []models.TeamMember) *Roster {
	return &Roster{Members: members}
}

// Match is a roster answer.
type Match struct {
	Answer string
	Source models.Source
}

// Lookup resolves roster, first-name and role questions. Members are checked
// in order; for each member a first-name hit wins over a role hit.
//
// The first-name check is a plain substring match, so a name that is also a
// common word ("will", "mark") answers unrelated questions.
func (r *Roster) Lookup(question string) (Match, bool) {
	if r == nil || len(r.Members) == 0 {
		return Match{}, false
	}
	q := strings.ToLower(question)

	if rosterRe.MatchString(q) {
		names := make([]string, len(r.Members))
		for i, m := range r.Members {
			names[i] = m.Name
		}
		return Match{
			Answer: fmt.Sprintf("Our current team members are: %s.", strings.Join(names, ", ")),
			Source: RosterSource,
		}, true
	}

	for _, m := range r.Members {
		first := strings.ToLower(strings.SplitN(strings.TrimSpace(m.Name), " ", 2)[0])
		if first != "" && strings.Contains(q, first) {
			return Match{
				Answer: fmt.Sprintf("%s is our %s. Favorite dino: %s.", m.Name, m.Role, m.Dino),
				Source: RosterSource,
			}, true
		}
		role := strings.ToLower(m.Role)
		for _, re := range roleCategories {
			if re.MatchString(q) && re.MatchString(role) {
				return Match{
					Answer: fmt.Sprintf("%s leads %s.", m.Name, role),
					Source: RosterSource,
				}, true
			}
		}
	}
	return Match{}, false
}
