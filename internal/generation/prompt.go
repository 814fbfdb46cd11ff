package generation

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"text/template"
	"text/template/parse"
)

const (
	inputTextField          = "InputText"
	formatInstructionsField = "FormatInstructions"
)

// promptData is the data passed to the prompt template.
type promptData struct {
	InputText          string
	FormatInstructions string
}

// PromptTemplate is a parsed user template. It must reference {{.InputText}};
// {{.FormatInstructions}} is filled in automatically and appended when the
// template does not reference it.
type PromptTemplate struct {
	tmpl              *template.Template
	hasFormatSlot     bool
	formatInstruction string
}

// ParsePromptTemplate parses text as a Go text/template.
func ParsePromptTemplate(text string) (*PromptTemplate, error) {
	tmpl, err := template.New("prompt").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPromptTemplate, err)
	}

	if tmpl.Tree == nil || !referencesField(tmpl.Tree.Root, inputTextField) {
		return nil, fmt.Errorf("%w: template must contain {{.%s}}", ErrPromptTemplate, inputTextField)
	}

	return &PromptTemplate{
		tmpl:              tmpl,
		hasFormatSlot:     referencesField(tmpl.Tree.Root, formatInstructionsField),
		formatInstruction: FormatInstructions(),
	}, nil
}

// LoadPromptTemplate reads and parses the template file at path.
func LoadPromptTemplate(path string) (*PromptTemplate, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read prompt template from %s: %v", ErrPromptTemplate, path, err)
	}
	return ParsePromptTemplate(string(content))
}

// Compile substitutes the input text and format instructions into the template.
func (p *PromptTemplate) Compile(inputText string) (string, error) {
	data := promptData{
		InputText:          inputText,
		FormatInstructions: p.formatInstruction,
	}

	var buf bytes.Buffer
	if err := p.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("%w: failed to execute prompt template: %v", ErrPromptTemplate, err)
	}

	if !p.hasFormatSlot {
		out := strings.TrimRight(buf.String(), "\n")
		return out + "\n\n" + p.formatInstruction, nil
	}
	return buf.String(), nil
}

// CompilePrompt parses tmplText and compiles it with inputText in one step.
func CompilePrompt(tmplText, inputText string) (string, error) {
	p, err := ParsePromptTemplate(tmplText)
	if err != nil {
		return "", err
	}
	return p.Compile(inputText)
}

func referencesField(node parse.Node, field string) bool {
	switch n := node.(type) {
	case *parse.ListNode:
		if n == nil {
			return false
		}
		for _, child := range n.Nodes {
			if referencesField(child, field) {
				return true
			}
		}
	case *parse.ActionNode:
		return pipeReferencesField(n.Pipe, field)
	case *parse.IfNode:
		return branchReferencesField(&n.BranchNode, field)
	case *parse.RangeNode:
		return branchReferencesField(&n.BranchNode, field)
	case *parse.WithNode:
		return branchReferencesField(&n.BranchNode, field)
	}
	return false
}

func branchReferencesField(b *parse.BranchNode, field string) bool {
	return pipeReferencesField(b.Pipe, field) ||
		referencesField(b.List, field) ||
		referencesField(b.ElseList, field)
}

func pipeReferencesField(pipe *parse.PipeNode, field string) bool {
	if pipe == nil {
		return false
	}
	for _, cmd := range pipe.Cmds {
		for _, arg := range cmd.Args {
			if f, ok := arg.(*parse.FieldNode); ok && len(f.Ident) > 0 && f.Ident[0] == field {
				return true
			}
		}
	}
	return false
}
