package stub

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Fixtures script the stub's responses. The first rule whose match string is
// a case-insensitive substring of the submitted query wins; queries matching
// no rule complete with a generic result.
type Fixtures struct {
	Rules []Rule `yaml:"rules"`
}

// Rule maps queries to a canned outcome.
type Rule struct {
	// Match is the substring to look for in the query.
	Match string `yaml:"match"`
	// Result is returned verbatim (re-encoded as JSON) on completion.
	Result any `yaml:"result"`
	// Error, when set, makes the job fail with this message.
	Error string `yaml:"error"`
	// Delay holds a Go duration ("2s") the job stays running before it
	// settles. YAML has no duration type so it travels as a string.
	Delay string `yaml:"delay"`

	delay      time.Duration
	resultJSON json.RawMessage
}

// LoadFixtures reads and validates a fixture file.
func LoadFixtures(path string) (*Fixtures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	var f Fixtures
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}
	if err := f.compile(); err != nil {
		return nil, err
	}
	return &f, nil
}

// compile resolves delays and pre-encodes results so serving is cheap.
func (f *Fixtures) compile() error {
	for i := range f.Rules {
		r := &f.Rules[i]
		if r.Match == "" {
			return fmt.Errorf("rule %d: match must not be empty", i)
		}
		if r.Delay != "" {
			d, err := time.ParseDuration(r.Delay)
			if err != nil {
				return fmt.Errorf("rule %d: bad delay %q: %w", i, r.Delay, err)
			}
			r.delay = d
		}
		if r.Result != nil {
			b, err := json.Marshal(r.Result)
			if err != nil {
				return fmt.Errorf("rule %d: encode result: %w", i, err)
			}
			r.resultJSON = b
		}
	}
	return nil
}

// find returns the first rule matching query, or nil.
func (f *Fixtures) find(query string) *Rule {
	if f == nil {
		return nil
	}
	q := strings.ToLower(query)
	for i := range f.Rules {
		if strings.Contains(q, strings.ToLower(f.Rules[i].Match)) {
			return &f.Rules[i]
		}
	}
	return nil
}
