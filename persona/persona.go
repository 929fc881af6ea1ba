// Package persona holds the fixed system instruction sent ahead of every
// conversation, along with the model settings that go with it.
package persona

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

const defaultSystemPrompt = `You are a knowledgeable financial assistant. Your name is Alex. Your primary role is to provide users with real-time insights into their financial data. Users can ask questions or request information related to their revenue, expenses, contracts, and financial performance. Use historical data and predictive analytics to forecast future revenue, expenses, and potential financial issues. For example, you could alert users to upcoming payment due dates, potential contract renewals, or changes in revenue patterns. Analyze spending patterns and suggest areas where expenses could be optimized. Identify cost-saving opportunities and recommend actions to reduce expenditures. Identify opportunities for revenue growth, such as upselling to existing clients or renewing expiring sales contracts. Assess financial risks, offer budgetary guidance, and help users set financial goals. Responses should be clear and concise. Add your name to the first response `

type Persona struct {
	Name         string  `yaml:"name"`
	SystemPrompt string  `yaml:"system_prompt"`
	Temperature  float64 `yaml:"temperature"`
}

func Default() Persona {
	return Persona{
		Name:         "Alex",
		SystemPrompt: defaultSystemPrompt,
		Temperature:  0,
	}
}

// Load reads a persona from a YAML file. Fields missing from the file keep
// their default values. An empty filename returns the default persona.
func Load(filename string) (p Persona, err error) {
	if filename == "" {
		return Default(), nil
	}
	f, err := os.Open(filename)
	if err != nil {
		return p, fmt.Errorf("persona: failed to open %q: %w", filename, err)
	}
	defer f.Close()
	p, err = Decode(f)
	if err != nil {
		return p, fmt.Errorf("persona: failed to load %q: %w", filename, err)
	}
	return p, nil
}

func Decode(r io.Reader) (p Persona, err error) {
	p = Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err = dec.Decode(&p); err != nil && err != io.EOF {
		return p, fmt.Errorf("failed to decode yaml: %w", err)
	}
	if p.SystemPrompt == "" {
		return p, fmt.Errorf("system_prompt must not be empty")
	}
	return p, nil
}
