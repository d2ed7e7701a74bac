// Package match defines the result records returned by the matching service
// and the display formatting shared by the HTML table, the CSV export and the CLI.
package match

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Columns is the fixed display order of the result table.
var Columns = []string{"Similarity", "Name", "Email", "Skills", "Education", "Experience", "Resume"}

// MatchResult describes how well one uploaded resume matches the job description.
type MatchResult struct {
	Similarity     float64 `json:"similarity"`
	Name           string  `json:"name"`
	Email          string  `json:"email"`
	Skills         Skills  `json:"skills"`
	Education      string  `json:"education"`
	Experience     string  `json:"experience"`
	ResumeFileName string  `json:"resumeFileName"`
	ResumeFileLink string  `json:"resumeFileLink"`
}

// wireResult mirrors MatchResult with the snake_case keys the matching
// service emits for the resume fields. Other keys match case-insensitively.
type wireResult struct {
	Similarity     *float64 `json:"similarity"`
	Name           *string  `json:"name"`
	Email          *string  `json:"email"`
	Skills         Skills   `json:"skills"`
	Education      *string  `json:"education"`
	Experience     *string  `json:"experience"`
	ResumeFileName *string  `json:"resumeFileName"`
	ResumeFileLink *string  `json:"resumeFileLink"`
	SnakeFileName  *string  `json:"resume_file_name"`
	SnakeFileLink  *string  `json:"resume_file_link"`
}

// UnmarshalJSON accepts both camelCase and snake_case resume keys.
// Absent or null fields decode to their zero value.
func (m *MatchResult) UnmarshalJSON(data []byte) error {
	var w wireResult
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	*m = MatchResult{
		Similarity:     deref(w.Similarity),
		Name:           deref(w.Name),
		Email:          deref(w.Email),
		Skills:         w.Skills,
		Education:      deref(w.Education),
		Experience:     deref(w.Experience),
		ResumeFileName: firstSet(w.ResumeFileName, w.SnakeFileName),
		ResumeFileLink: firstSet(w.ResumeFileLink, w.SnakeFileLink),
	}
	return nil
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func firstSet(vals ...*string) string {
	for _, v := range vals {
		if v != nil {
			return *v
		}
	}
	return ""
}

// Skills holds either a list of skills or a single free-text value.
// The matching service may send either shape.
type Skills struct {
	List []string
	Text string
	// IsList reports whether the value arrived as a sequence.
	IsList bool
}

// SkillList builds a sequence-shaped Skills value.
func SkillList(items ...string) Skills {
	return Skills{List: items, IsList: true}
}

// SkillText builds a bare-string Skills value.
func SkillText(s string) Skills {
	return Skills{Text: s}
}

// String joins a sequence with ", " and returns a bare string unchanged.
func (s Skills) String() string {
	if s.IsList {
		return strings.Join(s.List, ", ")
	}
	return s.Text
}

// MarshalJSON keeps the shape the value was received in.
func (s Skills) MarshalJSON() ([]byte, error) {
	if s.IsList {
		if s.List == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(s.List)
	}
	return json.Marshal(s.Text)
}

// UnmarshalJSON accepts a string, an array of scalars, or null.
func (s *Skills) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = Skills{}
		return nil
	}

	switch data[0] {
	case '"':
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		*s = SkillText(text)
		return nil

	case '[':
		var raw []any
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		list := make([]string, 0, len(raw))
		for _, item := range raw {
			list = append(list, scalarString(item))
		}
		*s = SkillList(list...)
		return nil

	default:
		// Numbers and booleans are kept as their literal text.
		var v any
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		if _, isObject := v.(map[string]any); isObject {
			return fmt.Errorf("skills: unsupported JSON object")
		}
		*s = SkillText(scalarString(v))
		return nil
	}
}

func scalarString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		b, _ := json.Marshal(val)
		return string(b)
	}
}

// FormatSimilarity renders a [0,1] ratio as a percentage with two decimals.
func FormatSimilarity(ratio float64) string {
	return fmt.Sprintf("%.2f%%", ratio*100)
}

// ResultSet is one successful submission's results, in server order.
type ResultSet struct {
	ID        string        `json:"id"`
	Results   []MatchResult `json:"results"`
	CreatedAt time.Time     `json:"created_at"`
}

// Len returns the number of results in the set.
func (rs *ResultSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.Results)
}
