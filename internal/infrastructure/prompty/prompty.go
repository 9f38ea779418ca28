// Package prompty loads .prompty prompt templates and executes them against a
// chat-completion model.
//
// A .prompty file is YAML front matter delimited by "---" lines followed by a
// body. The body is split into messages by lines that consist solely of a
// role name and a colon ("system:", "user:" or "assistant:"). Each message is
// a Jinja template rendered with the caller's inputs.
package prompty

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nikolalohinski/gonja/v2"
	"github.com/nikolalohinski/gonja/v2/exec"
	"gopkg.in/yaml.v3"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Prompty struct {
	Name        string               `yaml:"name"`
	Description string               `yaml:"description"`
	Model       ModelSpec            `yaml:"model"`
	Inputs      map[string]InputSpec `yaml:"inputs"`
	Sample      map[string]any       `yaml:"sample"`

	messages []messageTemplate
}

type ModelSpec struct {
	API           string        `yaml:"api"`
	Configuration Configuration `yaml:"configuration"`
	Parameters    Parameters    `yaml:"parameters"`
}

type Configuration struct {
	Type            string `yaml:"type"`
	AzureDeployment string `yaml:"azure_deployment"`
	Model           string `yaml:"model"`
}

type Parameters struct {
	MaxTokens   int64    `yaml:"max_tokens"`
	Temperature *float64 `yaml:"temperature"`
}

// InputSpec declares a template input. Inputs without a default must be
// supplied on every render.
type InputSpec struct {
	Type        string `yaml:"type"`
	Description string `yaml:"description"`
	Default     any    `yaml:"default"`
}

type Message struct {
	Role    string
	Content string
}

type messageTemplate struct {
	role string
	tmpl *exec.Template
}

// Deployment returns the model or deployment name the template asks for, or
// an empty string if it leaves the choice to the caller.
func (p *Prompty) Deployment() string {
	if p.Model.Configuration.AzureDeployment != "" {
		return p.Model.Configuration.AzureDeployment
	}
	return p.Model.Configuration.Model
}

func Load(path string) (*Prompty, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt %s: %w", path, err)
	}
	p, err := Parse(filepath.Base(path), data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse prompt %s: %w", path, err)
	}
	return p, nil
}

func Parse(name string, data []byte) (*Prompty, error) {
	front, body, err := splitFrontMatter(data)
	if err != nil {
		return nil, err
	}

	p := &Prompty{}
	if len(front) > 0 {
		if err := yaml.Unmarshal(front, p); err != nil {
			return nil, fmt.Errorf("invalid front matter: %w", err)
		}
	}
	if p.Model.API != "" && p.Model.API != "chat" {
		return nil, fmt.Errorf("unsupported model api %q", p.Model.API)
	}

	sections := splitRoles(body)
	if len(sections) == 0 {
		return nil, fmt.Errorf("prompt has no messages")
	}
	for i, s := range sections {
		tmpl, err := gonja.FromString(s.Content)
		if err != nil {
			return nil, fmt.Errorf("%s#%d: invalid %s message: %w", name, i, s.Role, err)
		}
		p.messages = append(p.messages, messageTemplate{role: s.Role, tmpl: tmpl})
	}

	return p, nil
}

// Render executes every message template with inputs, preserving order.
// Declared inputs missing from inputs take their default, or fail the render
// when they have none.
func (p *Prompty) Render(inputs map[string]any) ([]Message, error) {
	data := make(map[string]any, len(inputs)+len(p.Inputs))
	for k, spec := range p.Inputs {
		if _, ok := inputs[k]; ok {
			continue
		}
		if spec.Default == nil {
			return nil, fmt.Errorf("missing input %q", k)
		}
		data[k] = spec.Default
	}
	for k, v := range inputs {
		data[k] = v
	}

	out := make([]Message, 0, len(p.messages))
	for _, m := range p.messages {
		var buf bytes.Buffer
		if err := m.tmpl.Execute(&buf, exec.NewContext(data)); err != nil {
			return nil, fmt.Errorf("failed to render %s message: %w", m.role, err)
		}
		out = append(out, Message{Role: m.role, Content: strings.TrimSpace(buf.String())})
	}
	return out, nil
}

func splitFrontMatter(data []byte) (front, body []byte, err error) {
	const delim = "---"

	trimmed := bytes.TrimLeft(data, "\ufeff \t\r\n")
	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, data, nil
	}

	rest := trimmed[len(delim):]
	nl := bytes.IndexByte(rest, '\n')
	if nl < 0 {
		return nil, nil, fmt.Errorf("unterminated front matter")
	}
	rest = rest[nl+1:]

	offset := 0
	for _, line := range bytes.SplitAfter(rest, []byte("\n")) {
		if string(bytes.TrimSpace(line)) == delim {
			return rest[:offset], rest[offset+len(line):], nil
		}
		offset += len(line)
	}
	return nil, nil, fmt.Errorf("unterminated front matter")
}

// splitRoles cuts body at role marker lines. Text before the first marker is
// treated as a system message.
func splitRoles(body []byte) []Message {
	var (
		sections []Message
		role     = RoleSystem
		buf      strings.Builder
	)

	flush := func() {
		if content := strings.TrimSpace(buf.String()); content != "" {
			sections = append(sections, Message{Role: role, Content: content})
		}
		buf.Reset()
	}

	sc := bufio.NewScanner(bytes.NewReader(body))
	for sc.Scan() {
		line := sc.Text()
		if r, ok := roleMarker(line); ok {
			flush()
			role = r
			continue
		}
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	flush()

	return sections
}

func roleMarker(line string) (string, bool) {
	s := strings.TrimSpace(line)
	r, ok := strings.CutSuffix(s, ":")
	if !ok {
		return "", false
	}
	switch r = strings.ToLower(strings.TrimSpace(r)); r {
	case RoleSystem, RoleUser, RoleAssistant:
		return r, true
	}
	return "", false
}
