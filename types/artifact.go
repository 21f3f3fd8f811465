package types

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// FigureInfo describes one cropped figure produced by diagram extraction.
type FigureInfo struct {
	FigureID int    `json:"figure_id"`
	Page     int    `json:"page"`
	Path     string `json:"path"`
}

// DiagramMeta is the artifact written by the diagram-extraction step.
type DiagramMeta struct {
	Figures []FigureInfo `json:"figures"`
	Preview string       `json:"preview,omitempty"`
}

// DiagramTarget is one entry of the LLM diagram-mapping artifact: which
// question (and which side of an internal choice) a figure belongs to.
type DiagramTarget struct {
	QuestionIdentifier string `json:"question_identifier"`
	ChoiceLocation     string `json:"choice_location"`
}

// DiagramMapping maps a figure label ("figure-3") to its target question.
type DiagramMapping map[string]DiagramTarget

// MarksInfo is one entry of the LLM marks-mapping artifact.
type MarksInfo struct {
	QuestionType string     `json:"question_type"`
	Marks        MarksValue `json:"marks"`
}

// MarksMapping maps "question-<id>" keys to marks/type classifications.
type MarksMapping map[string]MarksInfo

// MarksValue tolerates the shapes LLMs actually emit for marks: a string,
// a bare number, or an array of either. Numbers are coerced to strings at
// this boundary so everything downstream deals in strings only.
type MarksValue struct {
	Scalar string
	List   []string
}

func (m MarksValue) IsList() bool {
	return m.List != nil
}

func (m MarksValue) IsZero() bool {
	return m.Scalar == "" && m.List == nil
}

func (m *MarksValue) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case nil:
		*m = MarksValue{}
	case string:
		m.Scalar = v
	case json.Number:
		m.Scalar = v.String()
	case []interface{}:
		list := make([]string, 0, len(v))
		for _, item := range v {
			list = append(list, stringifyMarks(item))
		}
		m.List = list
	default:
		m.Scalar = stringifyMarks(v)
	}
	return nil
}

func (m MarksValue) MarshalJSON() ([]byte, error) {
	if m.IsList() {
		return json.Marshal(m.List)
	}
	return json.Marshal(m.Scalar)
}

func stringifyMarks(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}

// LayoutBox is a detected region in page-pixel coordinates.
type LayoutBox struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// LayoutRegion is one detection returned by the layout service.
type LayoutRegion struct {
	Label      string    `json:"label"`
	Confidence float64   `json:"confidence"`
	Box        LayoutBox `json:"box"`
}

type LayoutResponse struct {
	Regions []LayoutRegion `json:"regions"`
}
